package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFiles reads the given YAML files and merges them in order, later
// files overriding earlier ones. Missing files are skipped.
func LoadFiles(paths ...string) (RawConfig, error) {
	var merged RawConfig
	for _, p := range paths {
		if p == "" {
			continue
		}
		cfg, err := readYAML(p)
		if err != nil {
			return RawConfig{}, fmt.Errorf("read %s: %w", p, err)
		}
		merged = mergeRaw(merged, cfg)
	}
	return merged, nil
}

// Load is the full pipeline used by the binaries: files, then WHEEL_*
// environment overrides, then validation and resolution.
func Load(paths ...string) (Settings, error) {
	raw, err := LoadFiles(paths...)
	if err != nil {
		return Settings{}, err
	}
	raw, err = ApplyEnv(raw, nil)
	if err != nil {
		return Settings{}, err
	}
	if err := ValidateRaw(raw); err != nil {
		return Settings{}, err
	}
	return Resolve(raw)
}

// readYAML loads a YAML file into RawConfig. Missing files return zero cfg, no error.
func readYAML(path string) (RawConfig, error) {
	var cfg RawConfig
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return RawConfig{}, nil
		}
		return RawConfig{}, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return RawConfig{}, err
	}
	return cfg, nil
}

// mergeRaw overlays b onto a: set fields in b win.
func mergeRaw(a, b RawConfig) RawConfig {
	out := a

	if b.Pool.Path != "" {
		out.Pool.Path = b.Pool.Path
	}
	if b.Pool.Watch != nil {
		out.Pool.Watch = b.Pool.Watch
	}
	if b.History.Path != "" {
		out.History.Path = b.History.Path
	}
	if b.Server.Addr != "" {
		out.Server.Addr = b.Server.Addr
	}

	// spin
	if b.Spin.FastMs != nil {
		out.Spin.FastMs = b.Spin.FastMs
	}
	if b.Spin.SlowMs != nil {
		out.Spin.SlowMs = b.Spin.SlowMs
	}
	if b.Spin.Growth != nil {
		out.Spin.Growth = b.Spin.Growth
	}
	if b.Spin.Rounds != nil {
		out.Spin.Rounds = b.Spin.Rounds
	}
	if b.Spin.RolloutFactor != nil {
		out.Spin.RolloutFactor = b.Spin.RolloutFactor
	}

	// blink
	if b.Blink.Count != nil {
		out.Blink.Count = b.Blink.Count
	}
	if b.Blink.DelayMs != nil {
		out.Blink.DelayMs = b.Blink.DelayMs
	}

	if b.Log.Level != "" {
		out.Log.Level = b.Log.Level
	}
	if b.Log.Pretty != nil {
		out.Log.Pretty = b.Log.Pretty
	}
	return out
}
