// Package config loads the service settings from built-in defaults, an
// optional YAML file and CARIBE_ prefixed environment variables, in that
// order.
package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"

	auth "github.com/IngAlexfit/caribeVibes-system-sub001"
	"github.com/IngAlexfit/caribeVibes-system-sub001/repository"
)

// EnvPrefix is prepended to every environment variable name
const EnvPrefix = "CARIBE_"

const redacted = "********"

type Config struct {
	Server   ServerConfig   `koanf:"server" json:"server"`
	Database DatabaseConfig `koanf:"database" json:"database"`
	Auth     AuthSettings   `koanf:"auth" json:"auth"`
	Log      LogConfig      `koanf:"log" json:"log"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr" env:"HTTP_ADDR" json:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout" env:"HTTP_READ_TIMEOUT" json:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout" env:"HTTP_WRITE_TIMEOUT" json:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" json:"shutdown_timeout"`
	Debug           bool          `koanf:"debug" env:"DEBUG" json:"debug"`
}

type DatabaseConfig struct {
	Driver       string        `koanf:"driver" env:"DB_DRIVER" json:"driver"`
	DSN          string        `koanf:"dsn" env:"DB_DSN" json:"dsn"`
	QueryTimeout time.Duration `koanf:"query_timeout" env:"DB_QUERY_TIMEOUT" json:"query_timeout"`
}

type AuthSettings struct {
	Secret            string        `koanf:"secret" env:"JWT_SECRET" json:"secret"`
	SigningMethod     string        `koanf:"signing_method" env:"JWT_SIGNING_METHOD" json:"signing_method"`
	TTL               time.Duration `koanf:"ttl" env:"JWT_TTL" json:"ttl"`
	Issuer            string        `koanf:"issuer" env:"JWT_ISSUER" json:"issuer"`
	DefaultRole       string        `koanf:"default_role" env:"DEFAULT_ROLE" json:"default_role"`
	PasswordAlgorithm string        `koanf:"password_algorithm" env:"PASSWORD_ALGORITHM" json:"password_algorithm"`
	BcryptCost        int           `koanf:"bcrypt_cost" env:"BCRYPT_COST" json:"bcrypt_cost"`
	PhoneRegion       string        `koanf:"phone_region" env:"PHONE_REGION" json:"phone_region"`
}

type LogConfig struct {
	Level  string `koanf:"level" env:"LOG_LEVEL" json:"level"`
	Format string `koanf:"format" env:"LOG_FORMAT" json:"format"`
}

// Defaults returns the built-in settings. The signing secret has no default.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:       repository.DriverSQLite,
			DSN:          "file:caribevibes.db?cache=shared",
			QueryTimeout: repository.DefaultQueryTimeout,
		},
		Auth: AuthSettings{
			SigningMethod:     auth.DefaultSigningMethod,
			TTL:               auth.DefaultTokenExpiration,
			Issuer:            auth.DefaultIssuer,
			DefaultRole:       auth.RoleClient,
			PasswordAlgorithm: auth.AlgorithmBcrypt,
			BcryptCost:        auth.DefaultBcryptCost,
			PhoneRegion:       auth.DefaultPhoneRegion,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration. An empty path skips the file layer; a path
// that does not exist is an error.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, nil)
}

// LoadWithEnv is Load reading environment variables from environ instead of
// the process environment when environ is not nil.
func LoadWithEnv(path string, environ map[string]string) (*Config, error) {
	cfg := Defaults()

	if path = strings.TrimSpace(path); path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, oops.
				Code("CONFIGURATION_ERROR").
				With("path", path).
				Wrapf(errors.Join(auth.ErrConfiguration, err), "config file not readable")
		}

		k := koanf.New(".")
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.
				Code("CONFIGURATION_ERROR").
				With("path", path).
				Wrapf(errors.Join(auth.ErrConfiguration, err), "failed to parse config file")
		}

		if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
			return nil, oops.
				Code("CONFIGURATION_ERROR").
				With("path", path).
				Wrapf(errors.Join(auth.ErrConfiguration, err), "failed to decode config file")
		}
	}

	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, oops.
			Code("CONFIGURATION_ERROR").
			Wrapf(errors.Join(auth.ErrConfiguration, err), "failed to parse environment")
	}

	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the settings that auth.NewConfig does not cover and then
// the auth settings themselves.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case repository.DriverSQLite, repository.DriverPostgres, repository.DriverMemory:
	default:
		return configError("unsupported database driver %q", c.Database.Driver)
	}

	if c.Database.Driver != repository.DriverMemory && strings.TrimSpace(c.Database.DSN) == "" {
		return configError("database dsn is required for driver %q", c.Database.Driver)
	}

	if strings.TrimSpace(c.Server.Addr) == "" {
		return configError("server address is required")
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return configError("unsupported log format %q", c.Log.Format)
	}

	_, err := c.AuthConfig()
	return err
}

// AuthConfig builds the immutable auth configuration
func (c Config) AuthConfig() (*auth.Config, error) {
	return auth.NewConfig(auth.ConfigOptions{
		SigningKey:        c.Auth.Secret,
		SigningMethod:     c.Auth.SigningMethod,
		TokenExpiration:   c.Auth.TTL,
		Issuer:            c.Auth.Issuer,
		DefaultRole:       c.Auth.DefaultRole,
		PasswordAlgorithm: c.Auth.PasswordAlgorithm,
		BcryptCost:        c.Auth.BcryptCost,
		PhoneRegion:       c.Auth.PhoneRegion,
	})
}

// Redacted returns a copy safe to print
func (c Config) Redacted() Config {
	if c.Auth.Secret != "" {
		c.Auth.Secret = redacted
	}
	if c.Database.DSN != "" && c.Database.Driver == repository.DriverPostgres {
		c.Database.DSN = redacted
	}
	return c
}

func configError(format string, args ...any) error {
	return oops.
		Code("CONFIGURATION_ERROR").
		Wrapf(auth.ErrConfiguration, format, args...)
}
