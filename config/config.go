// Package config holds the runtime settings shared by runcount and counterctl.
//
// runcount consumes no command-line arguments, so every setting can be
// supplied through the environment. counterctl uses the environment values
// as flag defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"runcount/common"
	"runcount/log"
)

const (
	EnvLogLevel = "RUNCOUNT_LOG_LEVEL"
	EnvTempExt  = "RUNCOUNT_TEMP_EXT"
	EnvLock     = "RUNCOUNT_LOCK"
	EnvSection  = "RUNCOUNT_SECTION"

	DefaultTempExt = "tmp"
)

var (
	ErrInvalidTempExt = errors.New("temporary extension must be a non-empty name without separators")
	ErrInvalidSection = errors.New("section name must not be empty")
)

// Config is the program configuration
type Config struct {
	LogLevel log.LogLevel
	// TempExt replaces the executable's extension to form the staging path.
	TempExt string
	// Lock serializes concurrent launches through an advisory lock file.
	Lock    bool
	Section string
}

func Default() *Config {
	return &Config{
		LogLevel: log.WARNING,
		TempExt:  DefaultTempExt,
		Lock:     false,
		Section:  common.ResourceSectionName,
	}
}

// FromEnv returns the defaults overridden by any RUNCOUNT_* variables set.
func FromEnv() (*Config, error) {
	cfg := Default()

	if v, ok := os.LookupEnv(EnvLogLevel); ok && v != "" {
		level, err := log.ParseLevel(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvLogLevel, err)
		}
		cfg.LogLevel = level
	}
	if v, ok := os.LookupEnv(EnvTempExt); ok && v != "" {
		cfg.TempExt = NormalizeTempExt(v)
	}
	if v, ok := os.LookupEnv(EnvLock); ok && v != "" {
		lock, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvLock, err)
		}
		cfg.Lock = lock
	}
	if v, ok := os.LookupEnv(EnvSection); ok {
		cfg.Section = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NormalizeTempExt accepts an extension written with or without its dot.
func NormalizeTempExt(ext string) string {
	return strings.TrimPrefix(ext, ".")
}

func (c *Config) Validate() error {
	if c.TempExt == "" || strings.ContainsAny(c.TempExt, `/\.`) {
		return fmt.Errorf("%w: %q", ErrInvalidTempExt, c.TempExt)
	}
	if c.Section == "" {
		return ErrInvalidSection
	}
	return nil
}
