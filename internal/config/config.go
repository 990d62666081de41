// Package config reads and writes the global ~/.chatty/config.toml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultHistoryPageSize is used when history_page_size is unset.
const DefaultHistoryPageSize = 50

// Config represents the global config file.
type Config struct {
	DefaultProfile string `toml:"default_profile"`
	// CountryCode is the ISO 3166 region phone numbers without a country
	// prefix are read in, e.g. "US".
	CountryCode string `toml:"country_code"`
	// SIMIMSI supplies the region when country_code is unset.
	SIMIMSI                string          `toml:"sim_imsi"`
	HistoryPageSize        int             `toml:"history_page_size"`
	RequestDeliveryReports bool            `toml:"request_delivery_reports"`
	Accounts               []AccountConfig `toml:"accounts"`
}

// AccountConfig declares one protocol account.
type AccountConfig struct {
	ID       string `toml:"id"`
	Protocol string `toml:"protocol"`
	// Enabled defaults to true when omitted.
	Enabled            *bool `toml:"enabled"`
	SupportsEncryption bool  `toml:"supports_encryption"`
}

// IsEnabled reports whether the account should connect at startup.
func (a AccountConfig) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// Load reads config from the given path. Returns nil config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.applyDefaults()
	return &cfg, cfg.Validate()
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = &Config{}
		cfg.applyDefaults()
		return cfg, nil
	}
	return cfg, err
}

func (c *Config) applyDefaults() {
	if c.HistoryPageSize <= 0 {
		c.HistoryPageSize = DefaultHistoryPageSize
	}
	c.CountryCode = strings.ToUpper(strings.TrimSpace(c.CountryCode))
}

// Validate checks that account IDs are present and unique.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Accounts))
	for i, a := range c.Accounts {
		if a.ID == "" {
			return fmt.Errorf("accounts[%d]: missing id", i)
		}
		if a.Protocol == "" {
			return fmt.Errorf("account %q: missing protocol", a.ID)
		}
		if seen[a.ID] {
			return fmt.Errorf("account %q: declared twice", a.ID)
		}
		seen[a.ID] = true
	}
	return nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
