// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete deepchat configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Backend configuration
	Backend BackendConfig `toml:"backend" json:"backend"`

	// Chat defaults
	Chat ChatConfig `toml:"chat" json:"chat"`

	// UI configuration
	UI UIConfig `toml:"ui" json:"ui"`

	// LogFile receives diagnostics. Empty means ~/.deepchat/deepchat.log.
	// A TUI owns the terminal, so nothing may log to stdout.
	LogFile string `toml:"log_file" json:"log_file"`
}

// BackendConfig contains connection settings for the chat backend.
type BackendConfig struct {
	// BaseURL of the backend API server
	BaseURL string `toml:"base_url" json:"base_url"`
	// UserID sent with every request
	UserID string `toml:"user_id" json:"user_id"`
	// TimeoutSecs for non-streaming requests
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
}

// ChatConfig contains default generation settings.
type ChatConfig struct {
	// DefaultModel is used for new sessions: "QWEN" or "DEEPSEEK"
	DefaultModel string `toml:"default_model" json:"default_model"`
	// DeepThinking enables the reasoning trace by default
	DeepThinking bool `toml:"deep_thinking" json:"deep_thinking"`
	// WebSearch enables backend web search by default
	WebSearch bool `toml:"web_search" json:"web_search"`
	// SearchHoldbackMs is how long answer deltas are held back waiting
	// for a web search payload before flushing without one
	SearchHoldbackMs int `toml:"search_holdback_ms" json:"search_holdback_ms"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Theme is the UI theme: "dark", "light", "auto"
	Theme string `toml:"theme" json:"theme"`
	// Markdown renders assistant messages through glamour when true
	Markdown bool `toml:"markdown" json:"markdown"`
	// SidebarWidth is the session sidebar width in columns
	SidebarWidth int `toml:"sidebar_width" json:"sidebar_width"`
	// ShowThinking expands the thinking panel by default
	ShowThinking bool `toml:"show_thinking" json:"show_thinking"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		Backend: BackendConfig{
			BaseURL:     "http://127.0.0.1:8000",
			UserID:      "123",
			TimeoutSecs: 30,
		},

		Chat: ChatConfig{
			DefaultModel:     "QWEN",
			DeepThinking:     false,
			WebSearch:        false,
			SearchHoldbackMs: 1500,
		},

		UI: UIConfig{
			Theme:        "dark",
			Markdown:     true,
			SidebarWidth: 32,
			ShowThinking: false,
		},
	}
}

// =============================================================================
// PATHS
// =============================================================================

// DataDir returns the deepchat data directory (~/.deepchat).
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".deepchat"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureDataDir ensures the data directory exists and returns its path.
func EnsureDataDir() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s). Tries TOML first,
// then JSON, and falls back to defaults. Environment overrides and
// validation are applied last in every path.
func Load() (*Config, error) {
	cfg := Default()

	tomlPath, err := ConfigPathTOML()
	if err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			if err := loadTOML(cfg, tomlPath); err != nil {
				return nil, fmt.Errorf("failed to load TOML config: %w", err)
			}
			return finishLoad(cfg)
		}
	}

	jsonPath, err := ConfigPathJSON()
	if err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			if err := loadJSON(cfg, jsonPath); err != nil {
				return nil, fmt.Errorf("failed to load JSON config: %w", err)
			}
			return finishLoad(cfg)
		}
	}

	return finishLoad(cfg)
}

// LoadFromPath loads configuration from a specific file, picking the
// decoder by extension.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = loadTOML(cfg, path)
	case ".json":
		err = loadJSON(cfg, path)
	default:
		return nil, fmt.Errorf("unsupported config format: %s", path)
	}
	if err != nil {
		return nil, err
	}
	return finishLoad(cfg)
}

func finishLoad(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

func loadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides:
//   - DEEPCHAT_BASE_URL: overrides backend.base_url
//   - DEEPCHAT_USER_ID: overrides backend.user_id
//   - DEEPCHAT_MODEL: overrides chat.default_model
//   - DEEPCHAT_THEME: overrides ui.theme
//   - DEEPCHAT_LOG_FILE: overrides log_file
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("DEEPCHAT_BASE_URL"); v != "" {
		c.Backend.BaseURL = v
	}
	if v := os.Getenv("DEEPCHAT_USER_ID"); v != "" {
		c.Backend.UserID = v
	}
	if v := os.Getenv("DEEPCHAT_MODEL"); v != "" {
		c.Chat.DefaultModel = strings.ToUpper(v)
	}
	if v := os.Getenv("DEEPCHAT_THEME"); v != "" {
		c.UI.Theme = v
	}
	if v := os.Getenv("DEEPCHAT_LOG_FILE"); v != "" {
		c.LogFile = v
	}
}

// =============================================================================
// DEFAULTS AND VALIDATION
// =============================================================================

// SetDefaults fills in zero-valued fields that a partial config file or
// an older version may lack.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Version == "" {
		c.Version = d.Version
	}
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = d.Backend.BaseURL
	}
	if c.Backend.UserID == "" {
		c.Backend.UserID = d.Backend.UserID
	}
	if c.Backend.TimeoutSecs <= 0 {
		c.Backend.TimeoutSecs = d.Backend.TimeoutSecs
	}
	if c.Chat.DefaultModel == "" {
		c.Chat.DefaultModel = d.Chat.DefaultModel
	}
	if c.Chat.SearchHoldbackMs <= 0 {
		c.Chat.SearchHoldbackMs = d.Chat.SearchHoldbackMs
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	if c.UI.SidebarWidth <= 0 {
		c.UI.SidebarWidth = d.UI.SidebarWidth
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend.base_url %q is not a valid URL", c.Backend.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("backend.base_url scheme must be http or https, got %q", u.Scheme)
	}

	switch c.Chat.DefaultModel {
	case "QWEN", "DEEPSEEK":
	default:
		return fmt.Errorf("chat.default_model must be QWEN or DEEPSEEK, got %q", c.Chat.DefaultModel)
	}

	switch c.UI.Theme {
	case "dark", "light", "auto":
	default:
		return fmt.Errorf("ui.theme must be dark, light, or auto, got %q", c.UI.Theme)
	}

	return nil
}

// =============================================================================
// SAVE
// =============================================================================

// Save writes the configuration to the TOML config file.
func Save(cfg *Config) error {
	if _, err := EnsureDataDir(); err != nil {
		return err
	}
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}
