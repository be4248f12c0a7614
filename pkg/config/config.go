// Package config provides configuration management for the pph CLI tool
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Davincible/pph/pkg/crypto/mnemonic"
	"github.com/Davincible/pph/pkg/pph"
	"github.com/Davincible/pph/pkg/storage"
)

// Config represents the main configuration structure
type Config struct {
	Version  string          `json:"version"`
	Defaults DefaultSettings `json:"defaults"`
	Security SecurityConfig  `json:"security"`
	UI       UIConfig        `json:"ui"`
	Storage  StorageConfig   `json:"storage"`
}

// DefaultSettings contains default values for new databases
type DefaultSettings struct {
	Threshold         int `json:"threshold"`           // Default: 2
	IsolatedCheckBits int `json:"isolated_check_bits"` // Default: 2
	Iterations        int `json:"iterations"`          // PBKDF2 rounds
	PasswordWords     int `json:"password_words"`      // Words in generated passwords (12-24)
}

// SecurityConfig contains security-related settings
type SecurityConfig struct {
	MinPasswordLength int    `json:"min_password_length"`
	SealDatabase      bool   `json:"seal_database"` // Encrypt the database file at rest
	KDFTime           uint32 `json:"kdf_time"`
	KDFMemory         uint32 `json:"kdf_memory"` // KiB
	KDFThreads        uint8  `json:"kdf_threads"`
}

// UIConfig contains user interface settings
type UIConfig struct {
	UseColor  bool   `json:"use_color"`
	Verbosity string `json:"verbosity"` // quiet, normal, verbose
}

// StorageConfig contains storage-related settings
type StorageConfig struct {
	DatabasePath string `json:"database_path"`
}

// ConfigManager manages configuration loading and saving
type ConfigManager struct {
	config     *Config
	configPath string
}

// NewConfigManager loads the configuration, writing defaults on first use.
func NewConfigManager() (*ConfigManager, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	return NewConfigManagerAt(configPath)
}

// NewConfigManagerAt is NewConfigManager with an explicit file path.
func NewConfigManagerAt(configPath string) (*ConfigManager, error) {
	cm := &ConfigManager{configPath: configPath}

	err := cm.LoadConfig()
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		cm.config = DefaultConfig()
		if err := cm.SaveConfig(); err != nil {
			return nil, fmt.Errorf("failed to save default config: %w", err)
		}
	default:
		return nil, err
	}

	return cm, nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: "1.0.0",
		Defaults: DefaultSettings{
			Threshold:         2,
			IsolatedCheckBits: 2,
			Iterations:        pph.DefaultIterations,
			PasswordWords:     12,
		},
		Security: SecurityConfig{
			MinPasswordLength: 8,
			SealDatabase:      false,
			KDFTime:           storage.DefaultKDFParams.Time,
			KDFMemory:         storage.DefaultKDFParams.Memory,
			KDFThreads:        storage.DefaultKDFParams.Threads,
		},
		UI: UIConfig{
			UseColor:  true,
			Verbosity: "normal",
		},
		Storage: StorageConfig{
			DatabasePath: "~/.pph/passwords.json",
		},
	}
}

// LoadConfig loads the configuration from disk. Missing fields keep their
// default values.
func (cm *ConfigManager) LoadConfig() error {
	data, err := os.ReadFile(cm.configPath)
	if err != nil {
		return err
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", cm.configPath, err)
	}

	cm.config = config
	return nil
}

// SaveConfig saves the configuration to disk
func (cm *ConfigManager) SaveConfig() error {
	configDir := filepath.Dir(cm.configPath)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cm.config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(cm.configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// GetConfig returns the current configuration
func (cm *ConfigManager) GetConfig() *Config {
	return cm.config
}

func (cm *ConfigManager) Path() string {
	return cm.configPath
}

// Validate checks the configured defaults against the database limits.
func (c *Config) Validate() error {
	d := c.Defaults
	if d.Threshold < 1 || d.Threshold > pph.MaxShareIndex {
		return fmt.Errorf("defaults.threshold must be between 1 and %d", pph.MaxShareIndex)
	}
	if d.IsolatedCheckBits < 0 || d.IsolatedCheckBits > pph.MaxCheckBits {
		return fmt.Errorf("defaults.isolated_check_bits must be between 0 and %d", pph.MaxCheckBits)
	}
	if d.Iterations < 1 || d.Iterations > pph.MaxIterations {
		return fmt.Errorf("defaults.iterations must be between 1 and %d", pph.MaxIterations)
	}
	if _, err := mnemonic.EntropyBitsFromWordCount(d.PasswordWords); err != nil {
		return fmt.Errorf("defaults.password_words: %w", err)
	}
	if c.Security.MinPasswordLength < 1 {
		return fmt.Errorf("security.min_password_length must be positive")
	}
	if err := c.KDFParams().Validate(); err != nil {
		return fmt.Errorf("security: %w", err)
	}
	return nil
}

// DatabasePath returns the configured database path with a leading ~ expanded.
func (c *Config) DatabasePath() (string, error) {
	return expandHome(c.Storage.DatabasePath)
}

// KDFParams returns the key derivation parameters for sealed databases.
func (c *Config) KDFParams() storage.KDFParams {
	return storage.KDFParams{
		Time:    c.Security.KDFTime,
		Memory:  c.Security.KDFMemory,
		Threads: c.Security.KDFThreads,
	}
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, strings.TrimPrefix(path, "~")), nil
}

// getConfigPath returns the configuration file path
func getConfigPath() (string, error) {
	if customPath := os.Getenv("PPH_CONFIG"); customPath != "" {
		return customPath, nil
	}

	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "pph", "config.json"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", "pph", "config.json"), nil
}
