// Package config provides configuration management for ricordi-sync.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/ricordi-app/ricordi-sync/internal/constants"
)

// Config is the explicit configuration value passed by reference to every
// coordinator. There is no hidden global client state: one base URL, one
// token, constructed once at startup.
//
// Config file location:
//   - Windows: %USERPROFILE%\.config\ricordi\config
//   - Unix: ~/.config/ricordi/config
//
// INI format:
//
//	[ricordi]
//	base_url = https://ricordi.example.org
//	api_token = <token>
//
//	[ricordi.upload]
//	max_concurrent = 4
//	success_retention_seconds = 4
//
//	[ricordi.poll]
//	interval_seconds = 3
//	max_retries = 3
//
//	[ricordi.refresh]
//	interval_seconds = 3
//
//	[ricordi.elapsed]
//	state_path = ~/.config/ricordi/elapsed-state.json
type Config struct {
	// Server connection settings
	BaseURL  string `ini:"base_url"`
	APIToken string `ini:"api_token"`

	Upload  UploadConfig
	Poll    PollConfig
	Refresh RefreshConfig
	Elapsed ElapsedConfig
}

// UploadConfig controls the upload coordinator.
type UploadConfig struct {
	// MaxConcurrent caps concurrent photo uploads.
	// Minimum: 1, Maximum: 16, Default: 4
	MaxConcurrent int `ini:"max_concurrent"`

	// SuccessRetentionSeconds is how long a successful item stays visible.
	SuccessRetentionSeconds int `ini:"success_retention_seconds"`
}

// PollConfig controls the queue-status poller.
type PollConfig struct {
	// IntervalSeconds is the poll cadence while active.
	// Minimum: 1, Maximum: 60, Default: 3
	IntervalSeconds int `ini:"interval_seconds"`

	// MaxRetries is how many consecutive failures are absorbed silently
	// before a visible error is surfaced.
	MaxRetries int `ini:"max_retries"`
}

// RefreshConfig controls the collection refetch scheduler.
type RefreshConfig struct {
	// IntervalSeconds is the refetch cadence while anything is transient.
	IntervalSeconds int `ini:"interval_seconds"`
}

// ElapsedConfig controls the persisted elapsed-timer store.
type ElapsedConfig struct {
	// StatePath is the JSON file holding in-progress start timestamps.
	// Empty means the default path next to the config file.
	StatePath string `ini:"state_path"`
}

// Validation errors
var (
	ErrMissingBaseURL        = errors.New("base_url is required")
	ErrMissingAPIToken       = errors.New("api_token is required")
	ErrInvalidMaxConcurrent  = errors.New("max_concurrent must be between 1 and 16")
	ErrInvalidPollInterval   = errors.New("poll interval_seconds must be between 1 and 60")
	ErrInvalidPollRetries    = errors.New("poll max_retries must be between 1 and 10")
	ErrInvalidRefreshSeconds = errors.New("refresh interval_seconds must be between 1 and 60")
)

// DefaultConfigPath returns the default path for the config file.
func DefaultConfigPath() (string, error) {
	var configDir string

	if runtime.GOOS == "windows" {
		userProfile := os.Getenv("USERPROFILE")
		if userProfile == "" {
			return "", errors.New("USERPROFILE environment variable not set")
		}
		configDir = filepath.Join(userProfile, ".config", "ricordi")
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config", "ricordi")
	}

	return filepath.Join(configDir, "config"), nil
}

// DefaultElapsedStatePath returns the default elapsed-state file path.
func DefaultElapsedStatePath() string {
	cfgPath, err := DefaultConfigPath()
	if err != nil {
		return "elapsed-state.json"
	}
	return filepath.Join(filepath.Dir(cfgPath), "elapsed-state.json")
}

// New creates a Config with default values.
func New() *Config {
	return &Config{
		Upload: UploadConfig{
			MaxConcurrent:           constants.DefaultMaxConcurrent,
			SuccessRetentionSeconds: int(constants.SuccessRetention / time.Second),
		},
		Poll: PollConfig{
			IntervalSeconds: int(constants.DefaultPollInterval / time.Second),
			MaxRetries:      constants.PollMaxRetries,
		},
		Refresh: RefreshConfig{
			IntervalSeconds: int(constants.DefaultRefreshInterval / time.Second),
		},
	}
}

// Load reads configuration from an INI file.
// If the file doesn't exist, returns a config with default values and no error.
// If the file exists but is invalid, returns an error.
func Load(path string) (*Config, error) {
	cfg := New()

	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return cfg, nil
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	main := iniFile.Section("ricordi")
	cfg.BaseURL = main.Key("base_url").String()
	cfg.APIToken = main.Key("api_token").String()

	up := iniFile.Section("ricordi.upload")
	cfg.Upload.MaxConcurrent = up.Key("max_concurrent").MustInt(cfg.Upload.MaxConcurrent)
	cfg.Upload.SuccessRetentionSeconds = up.Key("success_retention_seconds").MustInt(cfg.Upload.SuccessRetentionSeconds)

	poll := iniFile.Section("ricordi.poll")
	cfg.Poll.IntervalSeconds = poll.Key("interval_seconds").MustInt(cfg.Poll.IntervalSeconds)
	cfg.Poll.MaxRetries = poll.Key("max_retries").MustInt(cfg.Poll.MaxRetries)

	refresh := iniFile.Section("ricordi.refresh")
	cfg.Refresh.IntervalSeconds = refresh.Key("interval_seconds").MustInt(cfg.Refresh.IntervalSeconds)

	elapsed := iniFile.Section("ricordi.elapsed")
	cfg.Elapsed.StatePath = elapsed.Key("state_path").String()

	return cfg, nil
}

// Save writes configuration to an INI file.
// Creates parent directories if they don't exist. The token is stored in the
// file, so permissions are restricted and the write is atomic (tmp + rename).
func Save(cfg *Config, path string) error {
	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	main, err := iniFile.NewSection("ricordi")
	if err != nil {
		return fmt.Errorf("failed to create ricordi section: %w", err)
	}
	main.Key("base_url").SetValue(cfg.BaseURL)
	main.Key("api_token").SetValue(cfg.APIToken)

	up, err := iniFile.NewSection("ricordi.upload")
	if err != nil {
		return fmt.Errorf("failed to create upload section: %w", err)
	}
	up.Key("max_concurrent").SetValue(fmt.Sprintf("%d", cfg.Upload.MaxConcurrent))
	up.Key("success_retention_seconds").SetValue(fmt.Sprintf("%d", cfg.Upload.SuccessRetentionSeconds))

	poll, err := iniFile.NewSection("ricordi.poll")
	if err != nil {
		return fmt.Errorf("failed to create poll section: %w", err)
	}
	poll.Key("interval_seconds").SetValue(fmt.Sprintf("%d", cfg.Poll.IntervalSeconds))
	poll.Key("max_retries").SetValue(fmt.Sprintf("%d", cfg.Poll.MaxRetries))

	refresh, err := iniFile.NewSection("ricordi.refresh")
	if err != nil {
		return fmt.Errorf("failed to create refresh section: %w", err)
	}
	refresh.Key("interval_seconds").SetValue(fmt.Sprintf("%d", cfg.Refresh.IntervalSeconds))

	elapsed, err := iniFile.NewSection("ricordi.elapsed")
	if err != nil {
		return fmt.Errorf("failed to create elapsed section: %w", err)
	}
	elapsed.Key("state_path").SetValue(cfg.Elapsed.StatePath)

	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// Validate checks if the configuration is usable.
func (cfg *Config) Validate() error {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return ErrMissingBaseURL
	}
	if strings.TrimSpace(cfg.APIToken) == "" {
		return ErrMissingAPIToken
	}
	if cfg.Upload.MaxConcurrent < 1 || cfg.Upload.MaxConcurrent > 16 {
		return ErrInvalidMaxConcurrent
	}
	if cfg.Poll.IntervalSeconds < 1 || cfg.Poll.IntervalSeconds > 60 {
		return ErrInvalidPollInterval
	}
	if cfg.Poll.MaxRetries < 1 || cfg.Poll.MaxRetries > 10 {
		return ErrInvalidPollRetries
	}
	if cfg.Refresh.IntervalSeconds < 1 || cfg.Refresh.IntervalSeconds > 60 {
		return ErrInvalidRefreshSeconds
	}
	return nil
}

// ElapsedStatePath returns the configured elapsed-state path, falling back to
// the default next to the config file.
func (cfg *Config) ElapsedStatePath() string {
	if strings.TrimSpace(cfg.Elapsed.StatePath) != "" {
		return cfg.Elapsed.StatePath
	}
	return DefaultElapsedStatePath()
}
