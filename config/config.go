// Package config loads the service configuration from defaults, an optional
// YAML file, CREDENTIALS_* environment variables and command line flags, in
// that order of precedence.
package config

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/goliatone/go-errors"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix marks the environment variables read by Load. Nested keys use a
// double underscore: CREDENTIALS_DATABASE__DSN sets database.dsn.
const EnvPrefix = "CREDENTIALS_"

const delim = "."

type Config struct {
	Database Database `koanf:"database"`
	Token    Token    `koanf:"token"`
	Mail     Mail     `koanf:"mail"`
	HTTP     HTTP     `koanf:"http"`
	Log      Log      `koanf:"log"`
}

type Database struct {
	Driver       string `koanf:"driver"`
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

type Token struct {
	SigningKey string        `koanf:"signing_key"`
	Algorithm  string        `koanf:"algorithm"`
	DefaultTTL time.Duration `koanf:"default_ttl"`
	LoginTTL   time.Duration `koanf:"login_ttl"`
}

type Mail struct {
	Enabled  bool          `koanf:"enabled"`
	Host     string        `koanf:"host"`
	Port     int           `koanf:"port"`
	Username string        `koanf:"username"`
	Password string        `koanf:"password"`
	From     string        `koanf:"from"`
	FromName string        `koanf:"from_name"`
	Subject  string        `koanf:"subject"`
	StartTLS bool          `koanf:"starttls"`
	Retries  uint64        `koanf:"retries"`
	Backoff  time.Duration `koanf:"backoff"`
	// BaseURL prefixes the activation links sent by email
	BaseURL string `koanf:"base_url"`
	// Strict makes registration fail when the email cannot be delivered
	Strict bool `koanf:"strict"`
}

type HTTP struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type Log struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// Defaults returns the flattened default values
func Defaults() map[string]any {
	return map[string]any{
		"database.driver":         "sqlite",
		"database.dsn":            "file:credentials.db?cache=shared",
		"database.max_open_conns": 10,
		"database.auto_migrate":   true,
		"token.algorithm":         "HS256",
		"token.default_ttl":       20 * time.Minute,
		"token.login_ttl":         60 * time.Minute,
		"mail.enabled":            false,
		"mail.port":               587,
		"mail.from_name":          "Credentials",
		"mail.starttls":           true,
		"mail.retries":            3,
		"mail.backoff":            500 * time.Millisecond,
		"mail.base_url":           "http://localhost:4200",
		"http.addr":               ":8000",
		"http.shutdown_timeout":   10 * time.Second,
		"log.format":              "json",
		"log.level":               "info",
	}
}

// Load reads the configuration. path and flags are optional.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(delim)

	if err := k.Load(confmap.Provider(Defaults(), delim), nil); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load config defaults")
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrap(err, errors.CategoryBadInput, "failed to load config file").
				WithMetadata(map[string]any{"path": path})
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, delim, envKey), nil); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load config from environment")
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, delim, k), nil); err != nil {
			return nil, errors.Wrap(err, errors.CategoryBadInput, "failed to load config flags")
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "failed to decode config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// envKey maps CREDENTIALS_MAIL__FROM_NAME to mail.from_name
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", delim)
}

func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Database),
		validation.Field(&c.Token),
		validation.Field(&c.Mail),
		validation.Field(&c.HTTP),
		validation.Field(&c.Log),
	)
	if err != nil {
		return errors.FromOzzoValidation(err, "invalid configuration")
	}
	return nil
}

func (d Database) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Driver, validation.Required, validation.In("sqlite", "postgres")),
		validation.Field(&d.DSN, validation.Required),
		validation.Field(&d.MaxOpenConns, validation.Min(0)),
	)
}

func (t Token) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.SigningKey, validation.Required, validation.Length(16, 0)),
		validation.Field(&t.Algorithm, validation.Required, validation.In("HS256", "HS384", "HS512")),
		validation.Field(&t.LoginTTL, validation.Required),
	)
}

func (m Mail) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Host, validation.When(m.Enabled, validation.Required)),
		validation.Field(&m.Port, validation.When(m.Enabled, validation.Required, validation.Min(1), validation.Max(65535))),
		validation.Field(&m.From, validation.When(m.Enabled, validation.Required), is.EmailFormat),
		validation.Field(&m.BaseURL, validation.Required, is.URL),
	)
}

func (h HTTP) Validate() error {
	return validation.ValidateStruct(&h,
		validation.Field(&h.Addr, validation.Required),
	)
}

func (l Log) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Format, validation.In("json", "text")),
		validation.Field(&l.Level, validation.In("debug", "info", "warn", "error")),
	)
}
