// Package config loads service settings.
//
// Sources, later ones win:
//
//	built-in defaults
//	YAML file (optional, --config)
//	.env file (optional; only sets variables not already in the environment)
//	SNIPPETS_* environment variables
//
// Environment names map to keys by dropping the prefix, lowercasing and
// turning "_" into ".": SNIPPETS_AUTH_TTL -> auth.ttl.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of every environment variable the service reads.
const EnvPrefix = "SNIPPETS_"

const minSecretLength = 16

// Config is the complete service configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	GitHub   GitHubConfig   `koanf:"github"`
	Log      LogConfig      `koanf:"log"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type DatabaseConfig struct {
	Path string `koanf:"path"`
}

type AuthConfig struct {
	Secret string        `koanf:"secret"` // HMAC key for JWTs
	TTL    time.Duration `koanf:"ttl"`
	Cost   int           `koanf:"cost"`   // bcrypt work factor
	Secure bool          `koanf:"secure"` // Secure flag on cookies
}

// GitHubConfig holds the OAuth app credentials. Sign-in with GitHub is
// enabled only when both ID and Secret are set.
type GitHubConfig struct {
	ID       string `koanf:"id"`
	Secret   string `koanf:"secret"`
	Callback string `koanf:"callback"`
}

type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // text, json
}

// Enabled reports whether GitHub sign-in is configured.
func (g GitHubConfig) Enabled() bool {
	return g.ID != "" && g.Secret != ""
}

// defaults is nested because koanf only unflattens dotted keys for
// providers that do it themselves.
func defaults() map[string]any {
	return map[string]any{
		"server":   map[string]any{"port": 8080},
		"database": map[string]any{"path": "data/snippets.db"},
		"auth": map[string]any{
			"ttl":    "24h",
			"cost":   12,
			"secure": false,
		},
		"log": map[string]any{
			"level":  "info",
			"format": "text",
		},
	}
}

type options struct {
	configFile string
	envFile    string
}

// Option customises Load.
type Option func(*options)

// WithConfigFile reads a YAML file after the defaults. The file must exist.
func WithConfigFile(path string) Option {
	return func(o *options) { o.configFile = path }
}

// WithEnvFile reads dotenv-style variables from path. A missing file is
// ignored. Defaults to ".env".
func WithEnvFile(path string) Option {
	return func(o *options) { o.envFile = path }
}

// Load assembles and validates the configuration.
func Load(opts ...Option) (*Config, error) {
	o := options{envFile: ".env"}
	for _, opt := range opts {
		opt(&o)
	}

	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", o.envFile, err)
		}
	}

	k := koanf.New(".")

	if err := k.Load(mapProvider(defaults()), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if o.configFile != "" {
		if err := k.Load(file.Provider(o.configFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load file %s: %w", o.configFile, err)
		}
	}

	envKey := func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".")
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("config: load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if cfg.GitHub.Callback == "" {
		cfg.GitHub.Callback = fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.Server.Port)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if len(c.Auth.Secret) < minSecretLength {
		errs = append(errs, fmt.Errorf("auth.secret must be at least %d characters (set %sAUTH_SECRET)", minSecretLength, EnvPrefix))
	}
	if c.Auth.TTL <= 0 {
		errs = append(errs, fmt.Errorf("auth.ttl must be positive, got %s", c.Auth.TTL))
	}
	if (c.GitHub.ID == "") != (c.GitHub.Secret == "") {
		errs = append(errs, errors.New("github.id and github.secret must be set together"))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q: want text or json", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// NewLogger builds the process logger described by c. A nil w means stdout.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	level, err := parseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level %q: want debug, info, warn or error", s)
	}
	return level, nil
}

// mapProvider feeds a plain map to koanf.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("config: map provider does not support ReadBytes")
}

func (m mapProvider) Read() (map[string]any, error) {
	return m, nil
}
