// Package config loads the settings shared by the binaries from defaults,
// an optional config file, SWAPRISK_* environment variables and flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Store kinds.
const (
	StoreMemory       = "memory"
	StorePostgres     = "postgres"
	StorePostgresGORM = "postgres-gorm" // postgres_dsn through the GORM store
	StoreSQLite       = "sqlite"
	StoreMySQL        = "mysql"
)

// EnvPrefix is prepended to every environment variable.
const EnvPrefix = "SWAPRISK"

// Keys.
const (
	KeyStore           = "store"
	KeyPostgresDSN     = "postgres_dsn"
	KeySQLitePath      = "sqlite_path"
	KeyMySQLDSN        = "mysql_dsn"
	KeyClickhouseDSN   = "clickhouse_dsn"
	KeyLogLevel        = "log_level"
	KeyLogFormat       = "log_format"
	KeyWorkers         = "workers"
	KeyFieldMap        = "fieldmap"
	KeyOllamaURL       = "ollama_url"
	KeyOllamaModel     = "ollama_model"
	KeyNarrative       = "narrative"
	KeyAddr            = "addr"
	KeyCORSOrigins     = "cors_origins"
	KeyRescoreInterval = "rescore_interval"
)

// ErrNoDatabase is returned by Validate when the selected store has no target.
var ErrNoDatabase = errors.New("no database target configured")

// Config holds every setting.
type Config struct {
	Store         string `mapstructure:"store"`
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	SQLitePath    string `mapstructure:"sqlite_path"`
	MySQLDSN      string `mapstructure:"mysql_dsn"`
	ClickhouseDSN string `mapstructure:"clickhouse_dsn"` // empty keeps risk history in the relational store

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	Workers  int    `mapstructure:"workers"`
	FieldMap string `mapstructure:"fieldmap"`

	OllamaURL   string `mapstructure:"ollama_url"`
	OllamaModel string `mapstructure:"ollama_model"`
	Narrative   bool   `mapstructure:"narrative"`

	Addr            string        `mapstructure:"addr"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	RescoreInterval time.Duration `mapstructure:"rescore_interval"` // 0 disables the periodic sweep
}

// SetDefaults registers the default of every key on v. Keys without a
// default are invisible to AutomaticEnv during Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyStore, StoreMemory)
	v.SetDefault(KeyPostgresDSN, "")
	v.SetDefault(KeySQLitePath, "swaps.db")
	v.SetDefault(KeyMySQLDSN, "")
	v.SetDefault(KeyClickhouseDSN, "")
	v.SetDefault(KeyFieldMap, "")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "json")
	v.SetDefault(KeyWorkers, 1)
	v.SetDefault(KeyOllamaURL, "http://localhost:11434")
	v.SetDefault(KeyOllamaModel, "mistral:latest")
	v.SetDefault(KeyNarrative, false)
	v.SetDefault(KeyAddr, ":8080")
	v.SetDefault(KeyCORSOrigins, []string{"*"})
	v.SetDefault(KeyRescoreInterval, time.Duration(0))
}

// BindFlags registers the persistent flags shared by every binary.
func BindFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Config file (yaml, json or toml)")
	fs.String(flagName(KeyStore), StoreMemory, "Store backend: memory, postgres, postgres-gorm, sqlite or mysql")
	fs.String(flagName(KeyPostgresDSN), "", "PostgreSQL connection string")
	fs.String(flagName(KeySQLitePath), "swaps.db", "SQLite database file")
	fs.String(flagName(KeyMySQLDSN), "", "MySQL connection string")
	fs.String(flagName(KeyClickhouseDSN), "", "ClickHouse DSN for risk history (optional)")
	fs.String(flagName(KeyLogLevel), "info", "Log level: debug, info, warn or error")
	fs.String(flagName(KeyLogFormat), "json", "Log format: json or console")
	fs.String(flagName(KeyOllamaURL), "http://localhost:11434", "Ollama base URL")
	fs.String(flagName(KeyOllamaModel), "mistral:latest", "Ollama model")
}

// Load merges defaults, the config file named by the --config flag (if
// any), the environment and the flags in fs, in increasing priority.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		var bindErr error
		fs.VisitAll(func(f *pflag.Flag) {
			if f.Name == "config" || bindErr != nil {
				return
			}
			bindErr = v.BindPFlag(keyName(f.Name), f)
		})
		if bindErr != nil {
			return nil, fmt.Errorf("bind flags: %w", bindErr)
		}

		if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
			v.SetConfigFile(f.Value.String())
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", f.Value.String(), err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.CORSOrigins = splitList(cfg.CORSOrigins)
	return &cfg, nil
}

// Validate checks the store selection. A store without a database target
// is fatal.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Store) {
	case StoreMemory:
	case StorePostgres, StorePostgresGORM:
		if c.PostgresDSN == "" {
			return fmt.Errorf("%w: --postgres-dsn or SWAPRISK_POSTGRES_DSN is required", ErrNoDatabase)
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("%w: --sqlite-path or SWAPRISK_SQLITE_PATH is required", ErrNoDatabase)
		}
	case StoreMySQL:
		if c.MySQLDSN == "" {
			return fmt.Errorf("%w: --mysql-dsn or SWAPRISK_MYSQL_DSN is required", ErrNoDatabase)
		}
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.RescoreInterval < 0 {
		return fmt.Errorf("rescore_interval must not be negative")
	}
	return nil
}

// flagName converts a key to its flag spelling: postgres_dsn -> postgres-dsn.
func flagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

func keyName(flag string) string {
	return strings.ReplaceAll(flag, "-", "_")
}

// splitList expands comma-separated entries, which is how lists arrive from
// the environment.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
