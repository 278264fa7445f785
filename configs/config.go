package configs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Config holds the persisted user settings. The file lives in the user config
// directory next to the certificate PEM files and is written back whenever a
// setting changes, so choices survive restarts.
type Config struct {
	// DefaultGame is the game launched when no positional argument is given.
	DefaultGame string `json:"defaultGame"`
	// DefaultStatus is the presence mode used on startup: offline, online or mobile.
	DefaultStatus string `json:"defaultStatus"`
	// LastPromptedVersion records the newest release tag the user has already
	// been told about, so every update prompts at most once.
	LastPromptedVersion string `json:"lastPromptedVersion"`
	// ConnectToMuc forwards lobby (multi-user chat) presence untouched when true.
	ConnectToMuc bool `json:"connectToMuc"`
	// LogLevel controls logger verbosity: DEBUG, INFO, WARN, ERROR.
	LogLevel string `json:"logLevel"`

	path string
	mu   sync.Mutex
}

var (
	once   sync.Once
	config *Config
	err    error
)

func setDefaultValues(cfg *Config) {
	cfg.DefaultGame = "prompt"
	cfg.DefaultStatus = "offline"
	cfg.ConnectToMuc = true
	cfg.LogLevel = "INFO"
}

// Dir returns the directory holding the settings file and the certificate,
// creating it if needed.
func Dir() (string, error) {
	base, dirErr := os.UserConfigDir()
	if dirErr != nil {
		return "", fmt.Errorf("resolving user config dir: %w", dirErr)
	}
	dir := filepath.Join(base, "LeagueDeceiver")
	if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
		return "", fmt.Errorf("creating config dir %s: %w", dir, mkErr)
	}
	return dir, nil
}

// LoadConfig loads the settings from filePath, creating the file with default
// values when it does not exist. It is designed to be called once.
func LoadConfig(filePath string) (*Config, error) {
	once.Do(func() {
		cfg := &Config{path: filePath}
		setDefaultValues(cfg)

		data, fileErr := os.ReadFile(filePath)
		if os.IsNotExist(fileErr) {
			config = cfg
			err = cfg.Save()
			return
		}
		if fileErr != nil {
			err = fileErr
			return
		}
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			err = fmt.Errorf("unmarshalling config file %s: %w", filePath, jsonErr)
			return
		}
		config = cfg
	})
	return config, err
}

// GetConfig returns the loaded configuration. LoadConfig must have succeeded first.
func GetConfig() *Config {
	if config == nil {
		panic("configs: GetConfig called before LoadConfig")
	}
	return config
}

// Save writes the current settings back to disk.
func (c *Config) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, marshalErr := json.MarshalIndent(c, "", "  ")
	if marshalErr != nil {
		return fmt.Errorf("marshalling config: %w", marshalErr)
	}
	if writeErr := os.WriteFile(c.path, data, 0o644); writeErr != nil {
		return fmt.Errorf("writing config file %s: %w", c.path, writeErr)
	}
	return nil
}
