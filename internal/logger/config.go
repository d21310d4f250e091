package logger

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds logging configuration
type Config struct {
	Level          string `yaml:"level"`
	ConsoleEnabled bool   `yaml:"console_enabled"`
	ConsoleFormat  string `yaml:"console_format"`
	FileEnabled    bool   `yaml:"file_enabled"`
	FilePath       string `yaml:"file_path"`
	FileFormat     string `yaml:"file_format"`
	FileMaxSizeMB  int    `yaml:"file_max_size_mb"`
	FileMaxBackups int    `yaml:"file_max_backups"`
	FileMaxAgeDays int    `yaml:"file_max_age_days"`
	FileCompress   bool   `yaml:"file_compress"`
}

// LoggingConfig wraps the Config for YAML parsing
type LoggingConfig struct {
	Logging Config `yaml:"logging"`
}

// envOverrides are applied on top of the file configuration.
// Pointer fields stay nil when the variable is unset.
type envOverrides struct {
	Level         string `env:"LOG_LEVEL"`
	ConsoleFormat string `env:"LOG_CONSOLE_FORMAT"`
	FileEnabled   *bool  `env:"LOG_FILE_ENABLED"`
	FilePath      string `env:"LOG_FILE_PATH"`
}

// DefaultConfig returns the logging defaults
func DefaultConfig() Config {
	return Config{
		Level:          "INFO",
		ConsoleEnabled: true,
		ConsoleFormat:  "text",
		FileEnabled:    false,
		FilePath:       "logs/questd.log",
		FileFormat:     "text",
		FileMaxSizeMB:  10,
		FileMaxBackups: 5,
		FileMaxAgeDays: 30,
	}
}

// LoadConfig loads logging configuration from a YAML file
// and applies environment variable overrides
func LoadConfig(configPath string) (Config, error) {
	config := DefaultConfig()

	// Try to load from file if it exists
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err == nil {
			var loggingConfig LoggingConfig
			if err := yaml.Unmarshal(data, &loggingConfig); err == nil {
				config.merge(loggingConfig.Logging)
			}
		}
		// Silently use defaults if file doesn't exist or can't be parsed
	}

	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return config, fmt.Errorf("failed to parse logging env: %w", err)
	}
	if overrides.Level != "" {
		config.Level = overrides.Level
	}
	if overrides.ConsoleFormat != "" {
		config.ConsoleFormat = overrides.ConsoleFormat
	}
	if overrides.FileEnabled != nil {
		config.FileEnabled = *overrides.FileEnabled
	}
	if overrides.FilePath != "" {
		config.FilePath = overrides.FilePath
	}

	return config, nil
}

// merge copies explicitly set file values over the defaults
func (c *Config) merge(loaded Config) {
	if loaded.Level != "" {
		c.Level = loaded.Level
	}
	// Only override bool if explicitly set in YAML
	c.ConsoleEnabled = loaded.ConsoleEnabled
	if loaded.ConsoleFormat != "" {
		c.ConsoleFormat = loaded.ConsoleFormat
	}
	c.FileEnabled = loaded.FileEnabled
	if loaded.FilePath != "" {
		c.FilePath = loaded.FilePath
	}
	if loaded.FileFormat != "" {
		c.FileFormat = loaded.FileFormat
	}
	if loaded.FileMaxSizeMB > 0 {
		c.FileMaxSizeMB = loaded.FileMaxSizeMB
	}
	if loaded.FileMaxBackups > 0 {
		c.FileMaxBackups = loaded.FileMaxBackups
	}
	if loaded.FileMaxAgeDays > 0 {
		c.FileMaxAgeDays = loaded.FileMaxAgeDays
	}
	c.FileCompress = loaded.FileCompress
}
