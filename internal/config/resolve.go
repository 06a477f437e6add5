// resolve.go
package config

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/xtding233/fairwheel/internal/wheel"
)

// Resolve fills defaults for unset keys and clamps the spin settings.
func Resolve(raw RawConfig) (Settings, error) {
	s := Settings{
		PoolPath:    raw.Pool.Path,
		Watch:       true,
		HistoryPath: raw.History.Path,
		Addr:        raw.Server.Addr,
		Spin:        wheel.DefaultSpinConfig(),
		LogLevel:    zerolog.InfoLevel,
	}
	if s.PoolPath == "" {
		s.PoolPath = DefaultPoolPath
	}
	if s.Addr == "" {
		s.Addr = DefaultAddr
	}
	if raw.Pool.Watch != nil {
		s.Watch = *raw.Pool.Watch
	}

	if v := raw.Spin.FastMs; v != nil {
		s.Spin.FastDelay = ms(*v)
	}
	if v := raw.Spin.SlowMs; v != nil {
		s.Spin.SlowDelay = ms(*v)
	}
	if v := raw.Spin.Growth; v != nil {
		s.Spin.Growth = *v
	}
	if v := raw.Spin.Rounds; v != nil {
		s.Spin.Rounds = *v
	}
	if v := raw.Spin.RolloutFactor; v != nil {
		s.Spin.RolloutFactor = *v
	}
	if v := raw.Blink.Count; v != nil {
		s.Spin.BlinkCount = *v
	}
	if v := raw.Blink.DelayMs; v != nil {
		s.Spin.BlinkDelay = ms(*v)
	}
	s.Spin = s.Spin.Clamp()

	if raw.Log.Level != "" {
		lvl, err := zerolog.ParseLevel(strings.ToLower(raw.Log.Level))
		if err != nil {
			return Settings{}, err
		}
		s.LogLevel = lvl
	}
	if raw.Log.Pretty != nil {
		s.LogPretty = *raw.Log.Pretty
	}
	return s, nil
}
