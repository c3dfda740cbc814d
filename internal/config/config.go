// Package config loads the YAML project configuration. Environment variables
// override file values at runtime and are never written back.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/FocuswithJustin/JuniperScript/core/errors"
	"github.com/FocuswithJustin/JuniperScript/core/quote"
	"github.com/FocuswithJustin/JuniperScript/core/reftext"
	"github.com/FocuswithJustin/JuniperScript/internal/fileutil"
)

// CurrentVersion is written by Save. Files with a newer version are refused.
const CurrentVersion = 1

// Env var names used as overrides.
const (
	EnvLogLevel    = "JS_LOG_LEVEL"
	EnvLogFormat   = "JS_LOG_FORMAT"
	EnvLogFile     = "JS_LOG_FILE"
	EnvControlData = "JS_CONTROL_DATA"
)

// LoggingConfig mirrors the logging package options.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty"`
	Compress   bool   `yaml:"compress,omitempty"`
}

// ReferenceConfig names a reference-text layer: a directory of saved book
// scripts in one language.
type ReferenceConfig struct {
	Language  string           `yaml:"language"`
	HeSaid    string           `yaml:"he_said,omitempty"`
	Dir       string           `yaml:"dir,omitempty"`
	Secondary *ReferenceConfig `yaml:"secondary,omitempty"`
}

// Config is a project's configuration.
type Config struct {
	ConfigVersion int              `yaml:"config_version"`
	Quotes        quote.System     `yaml:"quotes"`
	ControlData   string           `yaml:"control_data,omitempty"`
	Reference     *ReferenceConfig `yaml:"reference,omitempty"`
	Logging       LoggingConfig    `yaml:"logging"`
}

// Defaults returns the configuration used when no file sets a value.
func Defaults() Config {
	return Config{
		ConfigVersion: CurrentVersion,
		Quotes:        quote.Default(),
		Logging:       LoggingConfig{Level: "info", Format: "text", MaxSizeMB: 10, MaxBackups: 3, MaxAgeDays: 28},
	}
}

// Load reads path, if it exists, over the defaults and applies environment
// overrides. An empty path skips the file. Relative paths in the file are
// resolved against its directory.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return cfg, errors.NewIO("read", path, err)
		default:
			var fileCfg Config
			if err := yaml.Unmarshal(data, &fileCfg); err != nil {
				return cfg, &errors.ParseError{Format: "config", Path: path, Message: err.Error(), Err: errors.ErrInvalidInput}
			}
			if fileCfg.ConfigVersion > CurrentVersion {
				return cfg, errors.NewUnsupported("config version", strconv.Itoa(fileCfg.ConfigVersion))
			}
			mergeInto(&cfg, &fileCfg)
			resolvePaths(&cfg, filepath.Dir(path))
		}
	}
	applyEnvOverrides(&cfg)
	if err := cfg.Quotes.Validate(); err != nil {
		return cfg, errors.Wrap(err, "config quotes")
	}
	return cfg, nil
}

// Save writes cfg to path as YAML.
func Save(path string, cfg Config) error {
	cfg.ConfigVersion = CurrentVersion
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "encode config")
	}
	return fileutil.WriteFileAtomic(path, data, 0o644)
}

func mergeInto(dst, src *Config) {
	if len(src.Quotes.Levels) > 0 || src.Quotes.DialogueOpener != "" {
		dst.Quotes = src.Quotes
	}
	if v := strings.TrimSpace(src.ControlData); v != "" {
		dst.ControlData = v
	}
	if src.Reference != nil {
		dst.Reference = src.Reference
	}
	if v := strings.TrimSpace(src.Logging.Level); v != "" {
		dst.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(src.Logging.Format); v != "" {
		dst.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(src.Logging.File); v != "" {
		dst.Logging.File = v
	}
	if src.Logging.MaxSizeMB > 0 {
		dst.Logging.MaxSizeMB = src.Logging.MaxSizeMB
	}
	if src.Logging.MaxBackups > 0 {
		dst.Logging.MaxBackups = src.Logging.MaxBackups
	}
	if src.Logging.MaxAgeDays > 0 {
		dst.Logging.MaxAgeDays = src.Logging.MaxAgeDays
	}
	dst.Logging.Compress = src.Logging.Compress
}

func resolvePaths(cfg *Config, base string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	cfg.ControlData = abs(cfg.ControlData)
	cfg.Logging.File = abs(cfg.Logging.File)
	for r := cfg.Reference; r != nil; r = r.Secondary {
		r.Dir = abs(r.Dir)
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvControlData)); v != "" {
		cfg.ControlData = v
	}
}

// EnvOverrideFor returns the env var name if the field is overridden by
// environment variables.
func EnvOverrideFor(key string) (string, bool) {
	names := map[string]string{
		"logging.level":  EnvLogLevel,
		"logging.format": EnvLogFormat,
		"logging.file":   EnvLogFile,
		"control_data":   EnvControlData,
	}
	name, ok := names[key]
	if !ok || os.Getenv(name) == "" {
		return "", false
	}
	return name, true
}

// NewReferenceText builds the empty layer chain described by r. Books are
// added by the caller.
func (r *ReferenceConfig) NewReferenceText() *reftext.ReferenceText {
	if r == nil {
		return nil
	}
	rt := reftext.New(r.Language, r.HeSaid)
	rt.Secondary = r.Secondary.NewReferenceText()
	return rt
}
