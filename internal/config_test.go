package internal

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if got := cfg.CacheDir(); got != filepath.Join("./data", "cache") {
		t.Errorf("CacheDir = %q", got)
	}
	if got := cfg.InboxDir(); got != filepath.Join("./data", "inbox") {
		t.Errorf("InboxDir = %q", got)
	}
}

func TestCacheConfig_Redis(t *testing.T) {
	cfg := CacheConfig{Driver: CacheDriverRedis}
	if err := cfg.Validate(); err == nil {
		t.Error("redis driver without url should fail")
	}
	cfg.RedisURL = "http://nope"
	if err := cfg.Validate(); err == nil {
		t.Error("non-redis url should fail")
	}
	cfg.RedisURL = "redis://localhost:6379/0"
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid redis config: %v", err)
	}
}

func TestCacheConfig_EmptyDriverDefaultsFile(t *testing.T) {
	cfg := CacheConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Driver != CacheDriverFile {
		t.Errorf("driver = %q", cfg.Driver)
	}
}

func TestNarrationConfig_RemoteNeedsPlayer(t *testing.T) {
	cfg := NarrationConfig{RemoteURL: "http://localhost:5002"}
	if err := cfg.Validate(); err == nil {
		t.Error("remote url without player should fail")
	}
	cfg.PlayerCommand = "aplay -q -"
	if err := cfg.Validate(); err != nil {
		t.Errorf("remote with player: %v", err)
	}
}

func TestRetentionConfig(t *testing.T) {
	cfg := RetentionConfig{Enabled: true, Schedule: "every tuesday", MaxAge: 48 * time.Hour}
	if err := cfg.Validate(); err == nil {
		t.Error("bad cron should fail")
	}
	cfg.Schedule = "0 3 * * *"
	cfg.MaxAge = time.Minute
	if err := cfg.Validate(); err == nil {
		t.Error("max age under an hour should fail")
	}
	cfg.MaxAge = 48 * time.Hour
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid retention: %v", err)
	}

	disabled := RetentionConfig{Schedule: "garbage"}
	if err := disabled.Validate(); err != nil {
		t.Errorf("disabled retention is not checked: %v", err)
	}
}

func TestHTTPConfig_RateLimit(t *testing.T) {
	cfg := HTTPConfig{Port: 8080, RateLimitRPS: 5}
	if err := cfg.Validate(); err == nil {
		t.Error("rps without burst should fail")
	}
	cfg.RateLimitRPS = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("limiter off: %v", err)
	}
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `app:
  log_level: debug
  http:
    port: 9000
    rate_limit_rps: 0
library:
  data_dir: ${FLIPSHELF_TEST_ROOT}/lib
sqlite:
  path: /tmp/shelf.db
retention:
  enabled: true
  schedule: "30 2 * * *"
  max_age: 240h
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FLIPSHELF_TEST_ROOT", "/srv")
	t.Setenv("FLIPSHELF_HTTP_PORT", "9100")
	t.Setenv("FLIPSHELF_INBOX_ENABLED", "true")

	cfg, err := LoadConfig(path, true)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.App.LogLevel != slog.LevelDebug {
		t.Errorf("log level = %v", cfg.App.LogLevel)
	}
	if cfg.App.HTTP.Port != 9100 {
		t.Errorf("port = %d, env should win", cfg.App.HTTP.Port)
	}
	if cfg.Library.DataDir != "/srv/lib" {
		t.Errorf("data dir = %q", cfg.Library.DataDir)
	}
	if !cfg.Inbox.Enabled || cfg.InboxDir() != "/srv/lib/inbox" {
		t.Errorf("inbox = %+v dir %q", cfg.Inbox, cfg.InboxDir())
	}
	if cfg.Retention.MaxAge != 240*time.Hour {
		t.Errorf("max age = %v", cfg.Retention.MaxAge)
	}
	if cfg.Narration.MaxChars != 3000 {
		t.Errorf("narration max chars default lost: %d", cfg.Narration.MaxChars)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	if _, err := LoadConfig(missing, true); err == nil {
		t.Error("required missing file should fail")
	}
	cfg, err := LoadConfig(missing, false)
	if err != nil {
		t.Fatalf("optional missing file: %v", err)
	}
	if cfg.App.HTTP.Port != 8080 {
		t.Errorf("port = %d", cfg.App.HTTP.Port)
	}
}
