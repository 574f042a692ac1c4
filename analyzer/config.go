package analyzer

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/briksprint/gcode-core/llm"
	"gopkg.in/yaml.v3"
)

// Config is the full set of options recognized by the analysis core
// (§6 "Configuration options recognized by the core").
type Config struct {
	OutputDir      string `yaml:"output_dir"`
	GCodeStoreDir  string `yaml:"gcode_store_dir"`
	LLMProvider    string `yaml:"llm_provider"`
	LLMModel       string `yaml:"llm_model"`
	GlobalRPM      int    `yaml:"global_rpm"`
	GlobalTPM      int    `yaml:"global_tpm"`
	UserRPM        int    `yaml:"user_rpm"`
	UserDailyLimit int    `yaml:"user_daily_limit"`
	SnippetWindow  int    `yaml:"snippet_window"`
	MaxConcurrent  int    `yaml:"max_concurrent_llm_calls"`
}

// DefaultConfig mirrors the §6 defaults.
func DefaultConfig() *Config {
	return &Config{
		OutputDir:      "output",
		GCodeStoreDir:  "",
		LLMProvider:    string(llm.ProviderGemini),
		LLMModel:       "",
		GlobalRPM:      60,
		GlobalTPM:      100000,
		UserRPM:        10,
		UserDailyLimit: 200,
		SnippetWindow:  50,
		MaxConcurrent:  llm.DefaultParallelism,
	}
}

// LoadConfig reads and parses a YAML config file, falling back to
// DefaultConfig for any field the file omits. Matches the teacher's
// config.go load-then-resolve-paths shape.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if !filepath.IsAbs(cfg.OutputDir) {
		dir, _ := os.Getwd()
		cfg.OutputDir = filepath.Join(dir, cfg.OutputDir)
	}
	if cfg.GCodeStoreDir == "" {
		cfg.GCodeStoreDir = filepath.Join(cfg.OutputDir, "analysis_store")
	} else if !filepath.IsAbs(cfg.GCodeStoreDir) {
		dir, _ := os.Getwd()
		cfg.GCodeStoreDir = filepath.Join(dir, cfg.GCodeStoreDir)
	}

	return cfg, nil
}
