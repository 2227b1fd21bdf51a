package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileLoader loads configuration from a local YAML file (flag -config,
// default /etc/wardflux/monitor-core.yaml).
type FileLoader struct{}

// Load reads path and merges it onto dst, which must already hold defaults.
func (FileLoader) Load(path string, dst *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read file %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("config: unmarshal %q: %w", path, err)
	}

	return nil
}
