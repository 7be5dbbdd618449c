package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	defaultInterval = 2 * time.Second
	defaultRetries  = 3
	defaultMarket   = "KRX"
)

// ErrNoCodes is returned by Validate when no instruments are configured.
var ErrNoCodes = errors.New("feed: no codes configured")

// Config describes which instruments a Feed polls and how often.
// Zero values are replaced by defaults in Normalize. Retries cannot be
// turned off: zero or a negative count means 3.
type Config struct {
	Codes    []string `json:"codes" yaml:"codes" toml:"codes"`
	Market   string   `json:"market" yaml:"market" toml:"market"`
	Interval string   `json:"interval" yaml:"interval" toml:"interval"`
	Retries  int      `json:"retries" yaml:"retries" toml:"retries"`
	Seed     int64    `json:"seed" yaml:"seed" toml:"seed"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Normalize fills unset fields with defaults and upper-cases codes.
// Retries of zero or less become 3.
func (c Config) Normalize() Config {
	codes := make([]string, 0, len(c.Codes))
	for _, code := range c.Codes {
		if code = strings.ToUpper(strings.TrimSpace(code)); code != "" {
			codes = append(codes, code)
		}
	}
	c.Codes = codes
	if c.Market == "" {
		c.Market = defaultMarket
	}
	if c.Interval == "" {
		c.Interval = defaultInterval.String()
	}
	if c.Retries <= 0 {
		c.Retries = defaultRetries
	}
	return c
}

// Validate checks a normalized config.
func (c Config) Validate() error {
	if len(c.Codes) == 0 {
		return ErrNoCodes
	}
	d, err := time.ParseDuration(c.Interval)
	if err != nil {
		return fmt.Errorf("feed: interval: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("feed: interval must be positive, got %s", c.Interval)
	}
	return nil
}

// Period returns the parsed polling interval, or the default when the
// interval does not parse.
func (c Config) Period() time.Duration {
	d, err := time.ParseDuration(c.Interval)
	if err != nil || d <= 0 {
		return defaultInterval
	}
	return d
}
