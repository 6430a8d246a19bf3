package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml"
)

// Load resolves the configuration in four layers, later layers winning:
// built-in defaults, the TOML file at path (optional), FEDSIM_-prefixed
// environment variables, and dotted-path overrides ("strategy.name=fedavg").
func Load(path string, overrides []string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}

		tree, err := toml.Load(string(data))
		if err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}

		if err := tree.Unmarshal(&cfg); err != nil {
			return nil, fmt.Errorf("error unmarshaling config: %w", err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "FEDSIM_"}); err != nil {
		return nil, fmt.Errorf("error parsing environment: %w", err)
	}

	if err := applyOverrides(&cfg, overrides); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyOverrides re-marshals the config through a TOML tree so that
// dotted keys address the same names the file format uses.
func applyOverrides(cfg *Config, overrides []string) error {
	if len(overrides) == 0 {
		return nil
	}

	data, err := toml.Marshal(*cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config for overrides: %w", err)
	}

	tree, err := toml.LoadBytes(data)
	if err != nil {
		return fmt.Errorf("error reloading config tree: %w", err)
	}

	for _, ov := range overrides {
		key, raw, ok := strings.Cut(ov, "=")
		if !ok {
			return fmt.Errorf("invalid override %q: want key=value", ov)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return fmt.Errorf("invalid override %q: empty key", ov)
		}

		keyPath := strings.Split(key, ".")
		if !tree.HasPath(keyPath) {
			return fmt.Errorf("unknown config key %q", key)
		}
		tree.SetPath(keyPath, coerce(raw))
	}

	next := Default()
	if err := tree.Unmarshal(&next); err != nil {
		return fmt.Errorf("error applying overrides: %w", err)
	}
	*cfg = next

	return nil
}

// coerce picks the narrowest TOML type a raw override value fits.
func coerce(raw string) any {
	raw = strings.TrimSpace(raw)
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseBool(raw); err == nil {
		return v
	}

	return raw
}

// Marshal renders the resolved configuration back to TOML, as it is
// printed at startup and snapshotted into the run directory.
func (c *Config) Marshal() ([]byte, error) {
	return toml.Marshal(*c)
}
