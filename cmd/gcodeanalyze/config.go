package main

import (
	"fmt"
	"os"

	"github.com/briksprint/gcode-core/analyzer"
)

// DefaultConfigPath is used by the CLI when --config is not given.
const DefaultConfigPath = "config.yaml"

// LoadConfig reads the process-wide configuration from path, falling
// back to analyzer.DefaultConfig() when path does not exist so the
// CLI works without any config file at all.
func LoadConfig(path string) (*analyzer.Config, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return analyzer.DefaultConfig(), nil
		}
		return nil, fmt.Errorf("stat config %s: %w", path, err)
	}
	return analyzer.LoadConfig(path)
}
