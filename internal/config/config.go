// Package config manages the .cruxvault project configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigDir  = ".cruxvault"
	DefaultConfigFile = "config.yaml"
	DefaultStoreFile  = "store.db"
	DefaultAuditFile  = "audit.log"

	DirPermSecure  = 0700 // Directory: owner rwx only
	FilePermSecure = 0600 // File: owner rw only
)

var ErrNoProject = errors.New("not in a cruxvault project")

// StorageConfig selects where the encrypted store lives
type StorageConfig struct {
	Path string `yaml:"path"`
}

// AuditConfig controls audit event emission
type AuditConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Path     string `yaml:"path"`
	LogReads bool   `yaml:"log_reads"`
}

// Config is the full project configuration
type Config struct {
	Storage     StorageConfig `yaml:"storage"`
	DefaultTags []string      `yaml:"default_tags"`
	Audit       AuditConfig   `yaml:"audit"`
}

// Default returns the configuration used when no file exists
func Default() *Config {
	return &Config{
		Storage: StorageConfig{Path: filepath.Join(DefaultConfigDir, DefaultStoreFile)},
		Audit: AuditConfig{
			Enabled: true,
			Path:    filepath.Join(DefaultConfigDir, DefaultAuditFile),
		},
	}
}

// FindRoot walks from start towards the filesystem root looking for a
// directory containing .cruxvault. Returns ErrNoProject if none is found.
func FindRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("failed to resolve start directory: %w", err)
	}

	for {
		if info, err := os.Stat(filepath.Join(dir, DefaultConfigDir)); err == nil && info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNoProject
		}
		dir = parent
	}
}

// Initialize creates the .cruxvault directory under root and writes the
// default configuration if none exists.
func Initialize(root string) (*Config, error) {
	dir := filepath.Join(root, DefaultConfigDir)
	if err := os.MkdirAll(dir, DirPermSecure); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	path := filepath.Join(dir, DefaultConfigFile)
	if _, err := os.Stat(path); err == nil {
		return Load(root)
	}

	cfg := Default()
	if err := Save(root, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads the configuration under root, falling back to defaults when
// the file is missing or unreadable.
func Load(root string) (*Config, error) {
	path := filepath.Join(root, DefaultConfigDir, DefaultConfigFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = Default().Storage.Path
	}
	return cfg, nil
}

// Save writes the configuration under root
func Save(root string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	path := filepath.Join(root, DefaultConfigDir, DefaultConfigFile)
	if err := os.WriteFile(path, data, FilePermSecure); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// StorePath resolves the configured store location against root
func (c *Config) StorePath(root string) string {
	if filepath.IsAbs(c.Storage.Path) {
		return c.Storage.Path
	}
	return filepath.Join(root, c.Storage.Path)
}

// AuditPath resolves the configured audit log location against root
func (c *Config) AuditPath(root string) string {
	if filepath.IsAbs(c.Audit.Path) {
		return c.Audit.Path
	}
	return filepath.Join(root, c.Audit.Path)
}
