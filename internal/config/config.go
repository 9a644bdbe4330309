// Package config loads the cascade YAML configuration.
//
// Every key is optional; missing keys keep their Default value:
//
//	database: cascade.db
//	schema: ./schema
//	user_id: cli
//	engine:
//	  max_depth: 10
//	  max_steps: 10000
//	  cache_ttl: 60s
//	  optimistic_locking: true
//	directory:
//	  model: User
//	  name_field: name
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full configuration.
type Config struct {
	Database  string    `yaml:"database"`
	Schema    string    `yaml:"schema"`
	UserID    string    `yaml:"user_id"`
	Engine    Engine    `yaml:"engine"`
	Directory Directory `yaml:"directory"`
}

// Engine holds the propagation knobs.
type Engine struct {
	MaxDepth          int           `yaml:"max_depth"`
	MaxSteps          int           `yaml:"max_steps"`
	CacheTTL          time.Duration `yaml:"cache_ttl"`
	OptimisticLocking bool          `yaml:"optimistic_locking"`
}

// Directory names the model LIST_NAMES summaries resolve user ids
// against. An empty Model disables name resolution.
type Directory struct {
	Model     string `yaml:"model"`
	NameField string `yaml:"name_field"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database: "cascade.db",
		Schema:   "./schema",
		UserID:   "cli",
		Engine: Engine{
			MaxDepth:          10,
			MaxSteps:          10000,
			CacheTTL:          60 * time.Second,
			OptimisticLocking: true,
		},
	}
}

// Load reads a configuration file over the defaults. Unknown keys are
// rejected. The result is validated.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads a configuration document over the defaults. An empty
// document yields the defaults.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if c.Database == "" {
		errs = append(errs, errors.New("database must not be empty"))
	}
	if c.Engine.MaxDepth < 1 {
		errs = append(errs, fmt.Errorf("engine.max_depth must be at least 1, got %d", c.Engine.MaxDepth))
	}
	if c.Engine.MaxSteps < 1 {
		errs = append(errs, fmt.Errorf("engine.max_steps must be at least 1, got %d", c.Engine.MaxSteps))
	}
	if c.Engine.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("engine.cache_ttl must be positive, got %s", c.Engine.CacheTTL))
	}
	if (c.Directory.Model == "") != (c.Directory.NameField == "") {
		errs = append(errs, errors.New("directory.model and directory.name_field must be set together"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
