// types.go
package config

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/xtding233/fairwheel/internal/wheel"
)

// RawConfig is a YAML config file as written. Pointer fields distinguish
// "not set" from zero so later files only override what they name.
type RawConfig struct {
	Pool    PoolConfig    `yaml:"pool"`
	History HistoryConfig `yaml:"history"`
	Server  ServerConfig  `yaml:"server"`
	Spin    SpinRaw       `yaml:"spin"`
	Blink   BlinkRaw      `yaml:"blink"`
	Log     LogRaw        `yaml:"log"`
}

type PoolConfig struct {
	Path  string `yaml:"path"`
	Watch *bool  `yaml:"watch,omitempty"`
}

type HistoryConfig struct {
	Path string `yaml:"path"` // empty disables the history database
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type SpinRaw struct {
	FastMs        *int     `yaml:"fast_ms,omitempty"`
	SlowMs        *int     `yaml:"slow_ms,omitempty"`
	Growth        *float64 `yaml:"growth,omitempty"`
	Rounds        *int     `yaml:"rounds,omitempty"`
	RolloutFactor *float64 `yaml:"rollout_factor,omitempty"`
}

type BlinkRaw struct {
	Count   *int `yaml:"count,omitempty"`
	DelayMs *int `yaml:"delay_ms,omitempty"`
}

type LogRaw struct {
	Level  string `yaml:"level"` // zerolog level name
	Pretty *bool  `yaml:"pretty,omitempty"`
}

// Settings are the resolved values the binaries run with.
type Settings struct {
	PoolPath    string
	Watch       bool
	HistoryPath string
	Addr        string
	Spin        wheel.SpinConfig
	LogLevel    zerolog.Level
	LogPretty   bool
}

const (
	DefaultPoolPath = "names.csv"
	DefaultAddr     = "127.0.0.1:7070"
)

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }
