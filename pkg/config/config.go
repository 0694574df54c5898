package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"historyvault/internal/compress"
	"historyvault/internal/domain/models"
	"historyvault/internal/storage"
	"historyvault/pkg/util"
)

// Config is the YAML surface an embedding application uses to set up the
// vault.
type Config struct {
	Scope    string `yaml:"scope"`     // local or global
	BasePath string `yaml:"base_path"` // overrides both scope bases when set
	Engine   struct {
		MaxParallelism        int      `yaml:"max_parallelism"`
		BufferSize            int      `yaml:"buffer_size"`
		AutoCreateDirectories *bool    `yaml:"auto_create_directories"`
		DefaultTimeframes     []string `yaml:"default_timeframes"`
	} `yaml:"engine"`
	Compression struct {
		Enabled *bool  `yaml:"enabled"`
		Level   string `yaml:"level"` // fastest, optimal, smallest
	} `yaml:"compression"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment
// variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("HISTORYVAULT_SCOPE"); v != "" {
		c.Scope = v
	}
	if v := os.Getenv("HISTORYVAULT_BASE_PATH"); v != "" {
		c.BasePath = v
	}
	if v := os.Getenv("HISTORYVAULT_MAX_PARALLELISM"); v != "" {
		c.Engine.MaxParallelism = util.ParseIntDefault(v, c.Engine.MaxParallelism)
	}
	if v := os.Getenv("HISTORYVAULT_COMPRESSION_LEVEL"); v != "" {
		c.Compression.Level = v
	}
	if v := os.Getenv("HISTORYVAULT_AUTO_CREATE"); v != "" {
		b := util.ParseBoolDefault(v, true)
		c.Engine.AutoCreateDirectories = &b
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks the configuration for values that cannot map onto engine
// options.
func (c *Config) Validate() error {
	if _, ok := storage.ParseScope(c.Scope); !ok {
		return fmt.Errorf("scope must be 'local' or 'global', got '%s'", c.Scope)
	}
	if _, ok := compress.ParseLevel(strings.ToLower(c.Compression.Level)); !ok {
		return fmt.Errorf("compression.level must be 'fastest', 'optimal' or 'smallest', got '%s'", c.Compression.Level)
	}
	if c.Engine.MaxParallelism < 0 {
		return fmt.Errorf("engine.max_parallelism must be >= 0")
	}
	if c.Engine.BufferSize < 0 {
		return fmt.Errorf("engine.buffer_size must be >= 0")
	}
	for _, code := range c.Engine.DefaultTimeframes {
		if _, ok := models.ParseInterval(code); !ok {
			return fmt.Errorf("unknown timeframe code '%s'", code)
		}
	}
	return nil
}

// ParsedScope returns the configured scope.
func (c *Config) ParsedScope() storage.Scope {
	s, _ := storage.ParseScope(c.Scope)
	return s
}

// ParsedLevel returns the configured compression level.
func (c *Config) ParsedLevel() compress.Level {
	l, _ := compress.ParseLevel(strings.ToLower(c.Compression.Level))
	return l
}

// ParsedTimeframes returns the configured default timeframes.
func (c *Config) ParsedTimeframes() []models.Interval {
	out := make([]models.Interval, 0, len(c.Engine.DefaultTimeframes))
	for _, code := range c.Engine.DefaultTimeframes {
		if iv, ok := models.ParseInterval(code); ok {
			out = append(out, iv)
		}
	}
	return out
}
