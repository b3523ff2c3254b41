// Package config defines the configuration of the stemma tooling.
package config

import (
	"fmt"
	"io"
	"os"

	"github.com/pelletier/go-toml/v2"
	"gitlab.com/stemma-project/stemma/internal/log"
)

// Logging contains the logging configuration.
type Logging struct {
	// Format is the log format, "text" or "json".
	Format string `toml:"format,omitempty"`
	// Level is the minimum level to log at.
	Level string `toml:"level,omitempty"`
}

// RepairStore contains the repair payload store configuration.
type RepairStore struct {
	// Path is the directory of the badger database. Empty means in-memory.
	Path string `toml:"path,omitempty"`
}

// Cfg is a container for all config derived from config.toml.
type Cfg struct {
	Logging     Logging     `toml:"logging,omitempty"`
	RepairStore RepairStore `toml:"repair_store,omitempty"`
}

// Load decodes the TOML configuration from reader and validates it.
func Load(reader io.Reader) (Cfg, error) {
	cfg := Cfg{
		Logging: Logging{Format: log.FormatText, Level: "info"},
	}

	decoder := toml.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		return Cfg{}, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Cfg{}, err
	}

	return cfg, nil
}

// LoadFile loads the configuration from the file at path.
func LoadFile(path string) (Cfg, error) {
	file, err := os.Open(path)
	if err != nil {
		return Cfg{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	return Load(file)
}

// Validate checks the configuration for semantic errors.
func (cfg *Cfg) Validate() error {
	switch cfg.Logging.Format {
	case log.FormatText, log.FormatJSON:
	default:
		return fmt.Errorf("invalid logging format %q", cfg.Logging.Format)
	}

	return nil
}
