package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ricordi-app/ricordi-sync/internal/constants"
)

// Defaults must come from the shared constants, not from parallel literals
// that can drift apart.
func TestNewDefaults(t *testing.T) {
	cfg := New()

	if cfg.Upload.MaxConcurrent != constants.DefaultMaxConcurrent {
		t.Errorf("MaxConcurrent = %d, want %d", cfg.Upload.MaxConcurrent, constants.DefaultMaxConcurrent)
	}
	if want := int(constants.SuccessRetention / time.Second); cfg.Upload.SuccessRetentionSeconds != want {
		t.Errorf("SuccessRetentionSeconds = %d, want %d", cfg.Upload.SuccessRetentionSeconds, want)
	}
	if want := int(constants.DefaultPollInterval / time.Second); cfg.Poll.IntervalSeconds != want {
		t.Errorf("Poll.IntervalSeconds = %d, want %d", cfg.Poll.IntervalSeconds, want)
	}
	if cfg.Poll.MaxRetries != constants.PollMaxRetries {
		t.Errorf("Poll.MaxRetries = %d, want %d", cfg.Poll.MaxRetries, constants.PollMaxRetries)
	}
	if want := int(constants.DefaultRefreshInterval / time.Second); cfg.Refresh.IntervalSeconds != want {
		t.Errorf("Refresh.IntervalSeconds = %d, want %d", cfg.Refresh.IntervalSeconds, want)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("Load of missing file should not error: %v", err)
	}
	if cfg.Upload.MaxConcurrent != 4 {
		t.Errorf("MaxConcurrent = %d, want default 4", cfg.Upload.MaxConcurrent)
	}
	if cfg.BaseURL != "" {
		t.Errorf("BaseURL = %q, want empty", cfg.BaseURL)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")

	cfg := New()
	cfg.BaseURL = "https://ricordi.example.org"
	cfg.APIToken = "secret-token"
	cfg.Upload.MaxConcurrent = 8
	cfg.Poll.IntervalSeconds = 5
	cfg.Elapsed.StatePath = "/var/lib/ricordi/elapsed.json"

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.BaseURL != cfg.BaseURL {
		t.Errorf("BaseURL = %q, want %q", loaded.BaseURL, cfg.BaseURL)
	}
	if loaded.APIToken != cfg.APIToken {
		t.Errorf("APIToken = %q, want %q", loaded.APIToken, cfg.APIToken)
	}
	if loaded.Upload.MaxConcurrent != 8 {
		t.Errorf("MaxConcurrent = %d, want 8", loaded.Upload.MaxConcurrent)
	}
	if loaded.Poll.IntervalSeconds != 5 {
		t.Errorf("Poll.IntervalSeconds = %d, want 5", loaded.Poll.IntervalSeconds)
	}
	if loaded.Elapsed.StatePath != cfg.Elapsed.StatePath {
		t.Errorf("Elapsed.StatePath = %q, want %q", loaded.Elapsed.StatePath, cfg.Elapsed.StatePath)
	}
}

func TestSaveRestrictsPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")

	cfg := New()
	cfg.BaseURL = "https://ricordi.example.org"
	cfg.APIToken = "secret"

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("permissions = %o, want 600", perm)
	}
}

func TestValidate(t *testing.T) {
	valid := New()
	valid.BaseURL = "https://ricordi.example.org"
	valid.APIToken = "token"

	if err := valid.Validate(); err != nil {
		t.Errorf("valid config failed validation: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"missing base URL", func(c *Config) { c.BaseURL = "" }, ErrMissingBaseURL},
		{"missing token", func(c *Config) { c.APIToken = "  " }, ErrMissingAPIToken},
		{"concurrency too low", func(c *Config) { c.Upload.MaxConcurrent = 0 }, ErrInvalidMaxConcurrent},
		{"concurrency too high", func(c *Config) { c.Upload.MaxConcurrent = 17 }, ErrInvalidMaxConcurrent},
		{"poll interval out of range", func(c *Config) { c.Poll.IntervalSeconds = 61 }, ErrInvalidPollInterval},
		{"poll retries out of range", func(c *Config) { c.Poll.MaxRetries = 0 }, ErrInvalidPollRetries},
		{"refresh interval out of range", func(c *Config) { c.Refresh.IntervalSeconds = 0 }, ErrInvalidRefreshSeconds},
	}

	for _, tc := range cases {
		cfg := New()
		cfg.BaseURL = "https://ricordi.example.org"
		cfg.APIToken = "token"
		tc.mutate(cfg)

		if err := cfg.Validate(); !errors.Is(err, tc.want) {
			t.Errorf("%s: Validate() = %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestElapsedStatePathFallback(t *testing.T) {
	cfg := New()
	if cfg.ElapsedStatePath() == "" {
		t.Error("ElapsedStatePath should never be empty")
	}

	cfg.Elapsed.StatePath = "/tmp/custom.json"
	if got := cfg.ElapsedStatePath(); got != "/tmp/custom.json" {
		t.Errorf("ElapsedStatePath = %q, want /tmp/custom.json", got)
	}
}
