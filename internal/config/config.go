// Package config provides configuration file handling for augprov.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"github.com/hercules-team/augeasproviders/internal/logging"
	"github.com/hercules-team/augeasproviders/internal/tree"
)

// DefaultFile is the configuration file read when none is given.
const DefaultFile = "augprov.toml"

// Config holds the tool settings.
type Config struct {
	// Root is the directory all target files are resolved against.
	Root string `toml:"root" yaml:"root"`

	// SaveMode is one of overwrite, backup, newfile or noop.
	SaveMode string `toml:"save_mode" yaml:"save_mode"`

	LogLevel string `toml:"log_level" yaml:"log_level"`
	ShowDiff bool   `toml:"show_diff" yaml:"show_diff"`

	// Targets overrides the default file per resource type.
	Targets map[string]string `toml:"targets,omitempty" yaml:"targets,omitempty"`

	// Lenses overrides the default lens per resource type.
	Lenses map[string]string `toml:"lenses,omitempty" yaml:"lenses,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Root:     "/",
		SaveMode: tree.SaveOverwrite.String(),
		LogLevel: "info",
	}
}

// Load reads a Config from a file. The format follows the extension:
// .toml, .ini or .conf, .yaml or .yml. A missing file yields the defaults.
func Load(filename string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(filename)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".toml", "":
		err = toml.Unmarshal(data, cfg)
	case ".ini", ".conf":
		err = loadINI(data, cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", filename, err)
	}
	return cfg, nil
}

// loadINI reads the global settings from the default section and the
// maps from [targets] and [lenses].
func loadINI(data []byte, cfg *Config) error {
	f, err := ini.Load(data)
	if err != nil {
		return err
	}
	global := f.Section("")
	if global.HasKey("root") {
		cfg.Root = global.Key("root").String()
	}
	if global.HasKey("save_mode") {
		cfg.SaveMode = global.Key("save_mode").String()
	}
	if global.HasKey("log_level") {
		cfg.LogLevel = global.Key("log_level").String()
	}
	if global.HasKey("show_diff") {
		cfg.ShowDiff, err = global.Key("show_diff").Bool()
		if err != nil {
			return fmt.Errorf("show_diff: %w", err)
		}
	}
	if f.HasSection("targets") {
		cfg.Targets = f.Section("targets").KeysHash()
	}
	if f.HasSection("lenses") {
		cfg.Lenses = f.Section("lenses").KeysHash()
	}
	return nil
}

// Validate checks the settings.
func (c *Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("root must not be empty")
	}
	if _, err := tree.ParseSaveMode(c.SaveMode); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	for typ, file := range c.Targets {
		if file == "" {
			return fmt.Errorf("target for %s must not be empty", typ)
		}
	}
	return nil
}

// Mode returns the parsed save mode.
func (c *Config) Mode() tree.SaveMode {
	m, _ := tree.ParseSaveMode(c.SaveMode)
	return m
}

// TargetFor returns the configured file and lens for a resource type.
// Either is empty when not configured.
func (c *Config) TargetFor(typ string) (file, lens string) {
	return c.Targets[typ], c.Lenses[typ]
}

// Encode returns the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes the Config to a file as TOML.
func (c *Config) Save(filename string) error {
	data, err := c.Encode()
	if err != nil {
		return err
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
