package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "WHEEL_"

type envOverrides struct {
	PoolPath      *string  `env:"POOL_PATH"`
	PoolWatch     *bool    `env:"POOL_WATCH"`
	HistoryPath   *string  `env:"HISTORY_PATH"`
	ServerAddr    *string  `env:"SERVER_ADDR"`
	FastMs        *int     `env:"SPIN_FAST_MS"`
	SlowMs        *int     `env:"SPIN_SLOW_MS"`
	Growth        *float64 `env:"SPIN_GROWTH"`
	Rounds        *int     `env:"SPIN_ROUNDS"`
	RolloutFactor *float64 `env:"SPIN_ROLLOUT_FACTOR"`
	BlinkCount    *int     `env:"BLINK_COUNT"`
	BlinkDelayMs  *int     `env:"BLINK_DELAY_MS"`
	LogLevel      *string  `env:"LOG_LEVEL"`
	LogPretty     *bool    `env:"LOG_PRETTY"`
}

// ApplyEnv overlays WHEEL_* variables onto cfg. A nil environ reads the
// process environment.
func ApplyEnv(cfg RawConfig, environ map[string]string) (RawConfig, error) {
	var o envOverrides
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&o, opts); err != nil {
		return RawConfig{}, fmt.Errorf("parse env: %w", err)
	}

	var over RawConfig
	if o.PoolPath != nil {
		over.Pool.Path = *o.PoolPath
	}
	over.Pool.Watch = o.PoolWatch
	if o.HistoryPath != nil {
		over.History.Path = *o.HistoryPath
	}
	if o.ServerAddr != nil {
		over.Server.Addr = *o.ServerAddr
	}
	over.Spin = SpinRaw{
		FastMs:        o.FastMs,
		SlowMs:        o.SlowMs,
		Growth:        o.Growth,
		Rounds:        o.Rounds,
		RolloutFactor: o.RolloutFactor,
	}
	over.Blink = BlinkRaw{Count: o.BlinkCount, DelayMs: o.BlinkDelayMs}
	if o.LogLevel != nil {
		over.Log.Level = *o.LogLevel
	}
	over.Log.Pretty = o.LogPretty

	return mergeRaw(cfg, over), nil
}
