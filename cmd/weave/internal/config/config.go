package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the project configuration file
const FileName = "weave.yaml"

// Config represents the weave.yaml configuration
type Config struct {
	// Compilation settings
	Compile *CompileConfig `yaml:"compile,omitempty"`

	// Type lookup settings
	TypeLookup *TypeLookupConfig `yaml:"typelookup,omitempty"`

	// Watch mode and dev hub settings
	Dev *DevConfig `yaml:"dev,omitempty"`
}

// CompileConfig contains compilation settings
type CompileConfig struct {
	// Directory scanned for .weave files
	SrcDir string `yaml:"src"`

	// Directory generated files are written to, next to the template when empty
	OutDir string `yaml:"out,omitempty"`

	// Package clause of generated files
	Package string `yaml:"package"`

	// Number of templates compiled at once
	Jobs int `yaml:"jobs,omitempty"`

	// Import path prefix of the dom, reactive and scheduler packages
	Runtime string `yaml:"runtime,omitempty"`
}

// TypeLookupConfig contains type lookup settings
type TypeLookupConfig struct {
	// Directory holding cached lookups
	CacheDir string `yaml:"cacheDir"`

	// Extra environment for the go command, e.g. GOFLAGS=-mod=mod
	Env []string `yaml:"env,omitempty"`
}

// DevConfig contains watch mode settings
type DevConfig struct {
	// Hub host
	Host string `yaml:"host,omitempty"`

	// Hub port
	Port int `yaml:"port,omitempty"`

	// Quiet period before a burst of file events triggers a compile
	Debounce time.Duration `yaml:"debounce,omitempty"`
}

// Load loads configuration from weave.yaml
func Load(projectPath string) (*Config, error) {
	configPath := filepath.Join(projectPath, FileName)

	// Return default config if no file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, err
	}

	applyDefaults(&config)
	return &config, nil
}

// Save saves configuration to weave.yaml
func Save(config *Config, projectPath string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(projectPath, FileName), data, 0644)
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Compile: &CompileConfig{
			SrcDir:  ".",
			Package: "main",
			Jobs:    4,
		},
		TypeLookup: &TypeLookupConfig{
			CacheDir: ".weave/cache",
		},
		Dev: &DevConfig{
			Host:     "localhost",
			Port:     5174,
			Debounce: 100 * time.Millisecond,
		},
	}
}

// applyDefaults applies default values to missing configuration
func applyDefaults(config *Config) {
	defaults := DefaultConfig()

	if config.Compile == nil {
		config.Compile = defaults.Compile
	} else {
		if config.Compile.SrcDir == "" {
			config.Compile.SrcDir = defaults.Compile.SrcDir
		}
		if config.Compile.Package == "" {
			config.Compile.Package = defaults.Compile.Package
		}
		if config.Compile.Jobs <= 0 {
			config.Compile.Jobs = defaults.Compile.Jobs
		}
	}

	if config.TypeLookup == nil {
		config.TypeLookup = defaults.TypeLookup
	} else if config.TypeLookup.CacheDir == "" {
		config.TypeLookup.CacheDir = defaults.TypeLookup.CacheDir
	}

	if config.Dev == nil {
		config.Dev = defaults.Dev
	} else {
		if config.Dev.Host == "" {
			config.Dev.Host = defaults.Dev.Host
		}
		if config.Dev.Port == 0 {
			config.Dev.Port = defaults.Dev.Port
		}
		if config.Dev.Debounce == 0 {
			config.Dev.Debounce = defaults.Dev.Debounce
		}
	}
}
