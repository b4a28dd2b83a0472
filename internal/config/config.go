// Package config loads sprocmap settings from YAML. Command-line flags
// override loaded values in package main.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/phobologic/sprocmap/internal/callsite"
	"github.com/phobologic/sprocmap/internal/catalog"
	"github.com/phobologic/sprocmap/internal/lang"
)

// FileName is the config file looked up in the analyzed root.
const FileName = ".sprocmap.yaml"

// EnvCatalogDSN fills Catalog.DSN when the config leaves it empty.
const EnvCatalogDSN = "SPROCMAP_CATALOG_DSN"

// Config is the analysis configuration read from .sprocmap.yaml.
type Config struct {
	Languages   []string       `yaml:"languages"`
	Exclude     []string       `yaml:"exclude"`
	MaxFileSize int64          `yaml:"max_file_size"`
	Workers     int            `yaml:"workers"`
	PriorReport string         `yaml:"prior_report"`
	Catalog     CatalogConfig  `yaml:"catalog"`
	CallSite    CallSiteConfig `yaml:"callsite"`
	Output      OutputConfig   `yaml:"output"`
}

// CatalogConfig selects where procedure definitions are read from.
type CatalogConfig struct {
	Driver   string        `yaml:"driver"`
	DSN      string        `yaml:"dsn"`
	Dir      string        `yaml:"dir"`
	Timeout  time.Duration `yaml:"timeout"`
	Retries  int           `yaml:"retries"`
	NameLike string        `yaml:"name_like"`
}

// CallSiteConfig adds call-site patterns to the built-in set.
type CallSiteConfig struct {
	Patterns []PatternConfig `yaml:"patterns"`

	// ReplaceDefaults drops the built-in patterns instead of extending them.
	ReplaceDefaults bool `yaml:"replace_defaults"`
}

// PatternConfig is one configured call-site expression. Group defaults to 1.
type PatternConfig struct {
	Name  string `yaml:"name"`
	Expr  string `yaml:"expr"`
	Group int    `yaml:"group"`
}

// OutputConfig names the files reports are written to. Empty fields are skipped.
type OutputConfig struct {
	JSON   string `yaml:"json"`
	Text   string `yaml:"text"`
	SQLite string `yaml:"sqlite"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		MaxFileSize: 1 << 20,
		Workers:     runtime.NumCPU(),
		Catalog: CatalogConfig{
			Driver:  catalog.DriverSQLServer,
			Timeout: 30 * time.Second,
			Retries: 2,
		},
	}
}

// Load reads the config at path over the defaults. Unknown keys are errors.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadDefault loads FileName from root when it exists, and the defaults
// otherwise.
func LoadDefault(root string) (*Config, error) {
	cfg, err := Load(filepath.Join(root, FileName))
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Parse decodes YAML over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv fills unset values from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if c.Catalog.DSN == "" {
		c.Catalog.DSN = getenv(EnvCatalogDSN)
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	for _, l := range c.Languages {
		if _, ok := lang.Languages[l]; !ok {
			return fmt.Errorf("unknown language %q", l)
		}
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	if c.MaxFileSize < 0 {
		return fmt.Errorf("max_file_size must be >= 0, got %d", c.MaxFileSize)
	}
	if c.Catalog.DSN != "" && !slices.Contains(catalog.Drivers(), c.Catalog.Driver) {
		return fmt.Errorf("unsupported catalog driver %q", c.Catalog.Driver)
	}
	if c.Catalog.DSN != "" && c.Catalog.Dir != "" {
		return errors.New("catalog dsn and dir are mutually exclusive")
	}
	if c.Catalog.Retries < 0 {
		return fmt.Errorf("catalog retries must be >= 0, got %d", c.Catalog.Retries)
	}
	_, err := c.Recognizer()
	return err
}

// Recognizer builds the call-site recognizer from the configured patterns.
func (c *Config) Recognizer() (*callsite.Recognizer, error) {
	extra := make([]callsite.Pattern, 0, len(c.CallSite.Patterns))
	for i, pc := range c.CallSite.Patterns {
		name := pc.Name
		if name == "" {
			name = fmt.Sprintf("custom-%d", i+1)
		}
		group := pc.Group
		if group == 0 {
			group = 1
		}
		p, err := callsite.Compile(name, pc.Expr, group)
		if err != nil {
			return nil, fmt.Errorf("callsite: %w", err)
		}
		extra = append(extra, p)
	}
	if c.CallSite.ReplaceDefaults {
		return callsite.New(extra...), nil
	}
	return callsite.Default.With(extra...), nil
}

// RetryPolicy returns the catalog retry policy.
func (c *Config) RetryPolicy() catalog.RetryPolicy {
	p := catalog.DefaultRetryPolicy()
	p.MaxAttempts = c.Catalog.Retries + 1
	p.Timeout = c.Catalog.Timeout
	return p
}
