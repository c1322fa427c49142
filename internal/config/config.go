// Package config loads the service configuration from config.yaml and the
// environment
package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/baely/tab/internal/catalog"
	"github.com/baely/tab/internal/common/errors"
)

// DefaultPath is read when CONFIG_PATH is not set
const DefaultPath = "config.yaml"

// Config is the process configuration. Database and Up credentials are read
// by the services that use them.
type Config struct {
	Port      int                `yaml:"port"`
	Hosts     []string           `yaml:"hosts"`
	Snapshot  string             `yaml:"snapshot"`
	LogLevel  string             `yaml:"log_level"`
	LogFormat string             `yaml:"log_format"`
	Stream    Stream             `yaml:"stream"`
	Beverages []catalog.Beverage `yaml:"beverages"`
}

// Stream configures the live account feed
type Stream struct {
	Buffer    int           `yaml:"buffer"`
	Heartbeat time.Duration `yaml:"heartbeat"`
}

// Default returns the configuration used for any key the file leaves out
func Default() *Config {
	return &Config{
		Port:      8080,
		Hosts:     []string{"*"},
		Snapshot:  "accounts.json",
		LogLevel:  "info",
		LogFormat: "json",
		Stream: Stream{
			Buffer:    16,
			Heartbeat: 15 * time.Second,
		},
	}
}

// Load reads the file named by CONFIG_PATH (or config.yaml) and applies
// environment overrides
func Load() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = DefaultPath
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrNotFound, "config file %s", path)
		}
		return nil, errors.Wrap(err, "failed to open config")
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return nil, errors.Wrap(err, "%s", path)
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a YAML document over the defaults
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, errors.Wrap(errors.ErrInvalidInput, "invalid config: %v", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides file values with PORT, SNAPSHOT_PATH and LOG_LEVEL
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := strings.TrimSpace(getenv("PORT")); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(errors.ErrInvalidInput, "invalid PORT %q", v)
		}
		c.Port = port
	}
	if v := strings.TrimSpace(getenv("SNAPSHOT_PATH")); v != "" {
		c.Snapshot = v
	}
	if v := strings.TrimSpace(getenv("LOG_LEVEL")); v != "" {
		c.LogLevel = v
	}
	return c.validate()
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return errors.Wrap(errors.ErrInvalidInput, "port %d out of range", c.Port)
	}
	if c.Snapshot == "" {
		return errors.Wrap(errors.ErrInvalidInput, "snapshot path is empty")
	}
	if c.Stream.Buffer <= 0 {
		return errors.Wrap(errors.ErrInvalidInput, "stream buffer must be positive")
	}
	if c.Stream.Heartbeat < 0 {
		return errors.Wrap(errors.ErrInvalidInput, "stream heartbeat must not be negative")
	}
	if len(c.Hosts) == 0 {
		c.Hosts = []string{"*"}
	}
	return nil
}

// Addr is the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Catalog builds the beverage catalog
func (c *Config) Catalog() (*catalog.Catalog, error) {
	return catalog.New(c.Beverages)
}
