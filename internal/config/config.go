// Package config loads phdctl settings with viper.
//
// Precedence, lowest first: built-in defaults, an optional YAML file,
// PHDTRACK_* environment variables, then bound command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/roach88/phdtrack/internal/collab"
	"github.com/roach88/phdtrack/internal/store"
	"github.com/roach88/phdtrack/internal/traceexport"
)

// EnvPrefix prefixes every environment override, e.g. PHDTRACK_DATABASE_PATH.
const EnvPrefix = "PHDTRACK"

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the fully resolved configuration.
type Config struct {
	Database   Database   `mapstructure:"database"`
	Ledger     Ledger     `mapstructure:"ledger"`
	Export     Export     `mapstructure:"export"`
	DocumentAI DocumentAI `mapstructure:"documentai"`
	Telemetry  Telemetry  `mapstructure:"telemetry"`
}

type Database struct {
	Driver      string        `mapstructure:"driver"`
	Path        string        `mapstructure:"path"`
	URL         string        `mapstructure:"url"`
	PingTimeout time.Duration `mapstructure:"ping_timeout"`
}

type Ledger struct {
	// StaleAfter is the age past which a PENDING ledger row is reported.
	StaleAfter time.Duration `mapstructure:"stale_after"`
}

type Export struct {
	Dir   string `mapstructure:"dir"`
	MinIO MinIO  `mapstructure:"minio"`
}

type MinIO struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type DocumentAI struct {
	Project   string `mapstructure:"project"`
	Location  string `mapstructure:"location"`
	Processor string `mapstructure:"processor"`
}

type Telemetry struct {
	Stdout bool `mapstructure:"stdout"`
}

// SetDefaults registers every key so that environment overrides resolve
// even when no config file mentions them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.path", "phdtrack.db")
	v.SetDefault("database.url", "")
	v.SetDefault("database.ping_timeout", 2*time.Second)
	v.SetDefault("ledger.stale_after", 5*time.Minute)
	v.SetDefault("export.dir", "exports")
	v.SetDefault("export.minio.endpoint", "")
	v.SetDefault("export.minio.access_key", "")
	v.SetDefault("export.minio.secret_key", "")
	v.SetDefault("export.minio.bucket", "phdtrack-traces")
	v.SetDefault("export.minio.region", "")
	v.SetDefault("export.minio.use_ssl", false)
	v.SetDefault("documentai.project", "")
	v.SetDefault("documentai.location", "")
	v.SetDefault("documentai.processor", "")
	v.SetDefault("telemetry.stdout", false)
}

// FlagKeys maps global flag names to the keys they override.
var FlagKeys = map[string]string{
	"db":     "database.path",
	"driver": "database.driver",
}

// BindFlags binds the flags named in FlagKeys that exist in fs.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range FlagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load resolves the configuration held by v. A non-empty file is read as
// YAML and must exist.
func Load(v *viper.Viper, file string) (Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings every command depends on. MinIO and
// Document AI settings are checked when those components are built.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if strings.TrimSpace(c.Database.Path) == "" {
			return errors.New("database.path is required for sqlite")
		}
	case DriverPostgres:
		if strings.TrimSpace(c.Database.URL) == "" {
			return errors.New("database.url is required for postgres")
		}
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.Database.Driver)
	}
	if c.Database.PingTimeout <= 0 {
		return errors.New("database.ping_timeout must be positive")
	}
	if c.Ledger.StaleAfter <= 0 {
		return errors.New("ledger.stale_after must be positive")
	}
	return nil
}

// Postgres returns the pool settings for the postgres driver.
func (c Config) Postgres() store.PostgresConfig {
	pg := store.DefaultPostgresConfig(c.Database.URL)
	pg.PingTimeout = c.Database.PingTimeout
	return pg
}

// MinIOConfig returns the trace export bucket settings.
func (c Config) MinIOConfig() traceexport.MinIOConfig {
	m := c.Export.MinIO
	return traceexport.MinIOConfig{
		Endpoint:  m.Endpoint,
		AccessKey: m.AccessKey,
		SecretKey: m.SecretKey,
		Bucket:    m.Bucket,
		Region:    m.Region,
		UseSSL:    m.UseSSL,
	}
}

// DocumentAIEnabled reports whether a Document AI processor is configured.
func (c Config) DocumentAIEnabled() bool {
	return strings.TrimSpace(c.DocumentAI.Project) != ""
}

// DocumentAIConfig returns the processor settings.
func (c Config) DocumentAIConfig() collab.DocumentAIConfig {
	return collab.DocumentAIConfig{
		Project:   c.DocumentAI.Project,
		Location:  c.DocumentAI.Location,
		Processor: c.DocumentAI.Processor,
	}
}
