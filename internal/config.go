package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/starford/flipshelf/internal/narration"
	"github.com/starford/flipshelf/internal/persist"
	pkgconfig "github.com/starford/flipshelf/pkg/config"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Cache drivers.
const (
	CacheDriverFile  = "file"
	CacheDriverRedis = "redis"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Library   LibraryConfig     `yaml:"library"`
	Cache     CacheConfig       `yaml:"cache"`
	SQLite    SQLiteConfig      `yaml:"sqlite"`
	Auth      AuthConfig        `yaml:"auth"`
	Narration NarrationConfig   `yaml:"narration"`
	Inbox     InboxConfig       `yaml:"inbox"`
	Retention RetentionConfig   `yaml:"retention"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.App, &c.Library, &c.Cache, &c.SQLite, &c.Auth, &c.Narration, &c.Retention,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplyEnv overlays FLIPSHELF_* environment variables and validates the
// result.
func (c *Config) ApplyEnv() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("config: env: %w", err)
	}
	return c.Validate()
}

// CacheDir returns the file-cache directory, defaulting to <data_dir>/cache.
func (c *Config) CacheDir() string {
	if c.Cache.Path != "" {
		return c.Cache.Path
	}
	return filepath.Join(c.Library.DataDir, "cache")
}

// InboxDir returns the watched import directory, defaulting to
// <data_dir>/inbox.
func (c *Config) InboxDir() string {
	if c.Inbox.Path != "" {
		return c.Inbox.Path
	}
	return filepath.Join(c.Library.DataDir, "inbox")
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level" env:"FLIPSHELF_LOG_LEVEL"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration. A zero RateLimitRPS turns
// the API rate limiter off.
type HTTPConfig struct {
	Port           int     `yaml:"port" env:"FLIPSHELF_HTTP_PORT"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps" env:"FLIPSHELF_RATE_LIMIT_RPS"`
	RateLimitBurst int     `yaml:"rate_limit_burst" env:"FLIPSHELF_RATE_LIMIT_BURST"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.RateLimitRPS, validation.Min(0.0)),
		validation.Field(&c.RateLimitBurst, validation.Min(0),
			validation.When(c.RateLimitRPS > 0, validation.Required)),
	)
}

// LibraryConfig holds the data directory and the cover trimming limit.
type LibraryConfig struct {
	DataDir         string `yaml:"data_dir" env:"FLIPSHELF_DATA_DIR"`
	CoverCacheLimit int    `yaml:"cover_cache_limit" env:"FLIPSHELF_COVER_CACHE_LIMIT"`
}

// Validate validates the library configuration.
func (c *LibraryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DataDir, validation.Required),
		validation.Field(&c.CoverCacheLimit, validation.Min(0)),
	)
}

// CacheConfig selects the fast persistence tier.
type CacheConfig struct {
	Driver   string `yaml:"driver" env:"FLIPSHELF_CACHE_DRIVER"`
	Path     string `yaml:"path" env:"FLIPSHELF_CACHE_PATH"`
	RedisURL string `yaml:"redis_url" env:"FLIPSHELF_REDIS_URL"`
	MaxBytes int    `yaml:"max_bytes" env:"FLIPSHELF_CACHE_MAX_BYTES"`
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	if c.Driver == "" {
		c.Driver = CacheDriverFile
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.In(CacheDriverFile, CacheDriverRedis)),
		validation.Field(&c.RedisURL,
			validation.When(c.Driver == CacheDriverRedis, validation.Required, validation.By(validRedisURL))),
		validation.Field(&c.MaxBytes, validation.Min(0)),
	)
}

func validRedisURL(v any) error {
	s, _ := v.(string)
	if _, err := redis.ParseURL(s); err != nil {
		return errors.New("must be a redis:// or rediss:// URL")
	}
	return nil
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path" env:"FLIPSHELF_SQLITE_PATH"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode" env:"FLIPSHELF_AUTH_MODE"`
	Token string `yaml:"token" env:"FLIPSHELF_AUTH_TOKEN"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NarrationConfig configures read-aloud engines. The remote engine is tried
// first when RemoteURL is set; LocalCommand is the fallback. With neither,
// read-aloud reports that narration is unavailable.
type NarrationConfig struct {
	RemoteURL     string `yaml:"remote_url" env:"FLIPSHELF_TTS_URL"`
	PlayerCommand string `yaml:"player_command" env:"FLIPSHELF_TTS_PLAYER"`
	LocalCommand  string `yaml:"local_command" env:"FLIPSHELF_TTS_COMMAND"`
	DefaultVoice  string `yaml:"default_voice" env:"FLIPSHELF_TTS_VOICE"`
	MaxChars      int    `yaml:"max_chars" env:"FLIPSHELF_TTS_MAX_CHARS"`
}

// Validate validates the narration configuration.
func (c *NarrationConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.PlayerCommand, validation.When(c.RemoteURL != "", validation.Required)),
		validation.Field(&c.MaxChars, validation.Min(0)),
	)
}

// InboxConfig enables the watched import directory.
type InboxConfig struct {
	Enabled bool   `yaml:"enabled" env:"FLIPSHELF_INBOX_ENABLED"`
	Path    string `yaml:"path" env:"FLIPSHELF_INBOX_PATH"`
}

// RetentionConfig schedules the recycle-bin purge.
type RetentionConfig struct {
	Enabled  bool          `yaml:"enabled" env:"FLIPSHELF_RETENTION_ENABLED"`
	Schedule string        `yaml:"schedule" env:"FLIPSHELF_RETENTION_SCHEDULE"`
	MaxAge   time.Duration `yaml:"max_age" env:"FLIPSHELF_RETENTION_MAX_AGE"`
}

// Validate validates the retention configuration.
func (c *RetentionConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Schedule, validation.When(c.Enabled, validation.Required, validation.By(validCron))),
		validation.Field(&c.MaxAge, validation.When(c.Enabled, validation.Required, validation.Min(time.Hour))),
	)
}

func validCron(v any) error {
	s, _ := v.(string)
	if _, err := cron.ParseStandard(s); err != nil {
		return fmt.Errorf("invalid cron schedule: %v", err)
	}
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port:           8080,
				RateLimitRPS:   20,
				RateLimitBurst: 40,
			},
		},
		Library: LibraryConfig{
			DataDir:         "./data",
			CoverCacheLimit: persist.DefaultCoverLimit,
		},
		Cache: CacheConfig{
			Driver:   CacheDriverFile,
			MaxBytes: persist.DefaultCacheMaxBytes,
		},
		SQLite: SQLiteConfig{
			Path: "./data/flipshelf.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Narration: NarrationConfig{
			MaxChars: narration.DefaultMaxChars,
		},
		Retention: RetentionConfig{
			Schedule: "0 3 * * *",
			MaxAge:   30 * 24 * time.Hour,
		},
	}
}

// LoadConfig builds the configuration from defaults, the YAML file at path
// and the environment, in that order. A missing file is an error only when
// required is set.
func LoadConfig(path string, required bool) (*Config, error) {
	cfg := NewDefaultConfig()
	if required {
		if err := pkgconfig.Load(path, cfg); err != nil {
			return nil, err
		}
	} else if _, err := pkgconfig.LoadOptional(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}
