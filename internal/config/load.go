package config

import "os"

// Load builds a Config starting from Default(), overlaying path (if it
// exists) and then environment variables, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := (FileLoader{}).Load(path, cfg); err != nil {
				return nil, err
			}
		}
	}

	if err := (EnvLoader{Prefix: "WARDFLUX_"}).Load(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
