package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"
)

// ValidateRaw checks semantic constraints of a RawConfig. Values below a
// minimum (negative counts or delays included) are not errors; Resolve
// clamps them.
func ValidateRaw(cfg RawConfig) error {
	var errs []string

	// spin: out-of-range numbers are clamped by Resolve, only non-numbers fail
	if g := cfg.Spin.Growth; g != nil && (math.IsNaN(*g) || math.IsInf(*g, 0)) {
		errs = append(errs, "spin.growth must be a finite number")
	}
	if f := cfg.Spin.RolloutFactor; f != nil && math.IsNaN(*f) {
		errs = append(errs, "spin.rollout_factor must be a number")
	}

	if cfg.Log.Level != "" {
		if _, err := zerolog.ParseLevel(strings.ToLower(cfg.Log.Level)); err != nil {
			errs = append(errs, fmt.Sprintf("log.level %q is not a known level", cfg.Log.Level))
		}
	}
	if strings.TrimSpace(cfg.Pool.Path) != cfg.Pool.Path {
		errs = append(errs, "pool.path must not have surrounding spaces")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
