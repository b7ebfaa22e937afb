// Package config holds the process configuration for a ledger node. Values
// come from LEDGER_* environment variables; the CLI overlays a config file
// and flags on top.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"ledgercore/internal/blob"
	"ledgercore/internal/claims"
	"ledgercore/internal/creatures"
	"ledgercore/internal/entropy"
	"ledgercore/pkg/domain"
)

// Storage drivers.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageBadger   = "badger"
)

// Metrics and trace exporters.
const (
	ExporterNone       = "none"
	MetricsExpvar      = "expvar"
	MetricsPrometheus  = "prometheus"
	TraceJSON          = "json"
	TraceOpenTelemetry = "otel"
)

// Config is the full node configuration.
type Config struct {
	Storage   StorageConfig
	Blob      BlobConfig
	Ledger    LedgerConfig
	Log       LogConfig
	Telemetry TelemetryConfig
}

// StorageConfig selects the ledger state backend.
type StorageConfig struct {
	Driver      string `env:"LEDGER_STORAGE_DRIVER" envDefault:"sqlite"`
	SQLitePath  string `env:"LEDGER_SQLITE_PATH" envDefault:"ledger.db"`
	PostgresDSN string `env:"LEDGER_POSTGRES_DSN"`
	BadgerPath  string `env:"LEDGER_BADGER_PATH" envDefault:"ledger.badger"`
	BadgerInMem bool   `env:"LEDGER_BADGER_IN_MEMORY"`
	BadgerSync  bool   `env:"LEDGER_BADGER_SYNC_WRITES" envDefault:"true"`
}

// BlobConfig selects where snapshot archives are written.
type BlobConfig struct {
	Driver      string `env:"LEDGER_BLOB_DRIVER" envDefault:"fs"`
	FSRoot      string `env:"LEDGER_BLOB_FS_ROOT" envDefault:"snapshots"`
	S3Bucket    string `env:"LEDGER_BLOB_S3_BUCKET"`
	S3Region    string `env:"LEDGER_BLOB_S3_REGION" envDefault:"us-east-1"`
	S3Endpoint  string `env:"LEDGER_BLOB_S3_ENDPOINT"`
	S3Prefix    string `env:"LEDGER_BLOB_S3_PREFIX"`
	S3PathStyle bool   `env:"LEDGER_BLOB_S3_PATH_STYLE"`
	S3AccessKey string `env:"LEDGER_BLOB_S3_ACCESS_KEY_ID"`
	S3Secret    string `env:"LEDGER_BLOB_S3_SECRET_ACCESS_KEY"`
}

// LedgerConfig carries the module parameters and the genesis seed.
type LedgerConfig struct {
	GenesisSeed     string `env:"LEDGER_GENESIS_SEED"`
	CreatureDeposit uint64 `env:"LEDGER_CREATURE_DEPOSIT" envDefault:"5000"`
	CreatureMaxID   uint32 `env:"LEDGER_CREATURE_MAX_ID" envDefault:"4294967295"`
	BreedPolicy     string `env:"LEDGER_BREED_POLICY" envDefault:"owner-of-one"`
	ClaimMinLength  int    `env:"LEDGER_CLAIM_MIN_LENGTH" envDefault:"2"`
	ClaimMaxLength  int    `env:"LEDGER_CLAIM_MAX_LENGTH" envDefault:"10"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `env:"LEDGER_LOG_LEVEL" envDefault:"info"`
	Format string `env:"LEDGER_LOG_FORMAT" envDefault:"text"`
}

// TelemetryConfig selects metrics and trace exporters.
type TelemetryConfig struct {
	Metrics string `env:"LEDGER_METRICS" envDefault:"none"`
	Tracing string `env:"LEDGER_TRACING" envDefault:"none"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case StorageMemory, StorageSQLite, StorageBadger:
	case StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("LEDGER_POSTGRES_DSN is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	switch blob.Driver(c.Blob.Driver) {
	case blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.Blob.S3Bucket == "" {
			errs = append(errs, errors.New("LEDGER_BLOB_S3_BUCKET is required for the s3 driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown blob driver %q", c.Blob.Driver))
	}
	if _, err := creatures.ParseBreedPolicy(c.Ledger.BreedPolicy); err != nil {
		errs = append(errs, err)
	}
	if c.Ledger.CreatureMaxID == 0 {
		errs = append(errs, errors.New("creature max id must be positive"))
	}
	if c.Ledger.ClaimMinLength < 1 || c.Ledger.ClaimMaxLength < c.Ledger.ClaimMinLength {
		errs = append(errs, fmt.Errorf("invalid claim bounds [%d, %d]", c.Ledger.ClaimMinLength, c.Ledger.ClaimMaxLength))
	}
	if c.Ledger.GenesisSeed != "" {
		if _, err := entropy.ParseSeed(c.Ledger.GenesisSeed); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	switch c.Telemetry.Metrics {
	case ExporterNone, MetricsExpvar, MetricsPrometheus:
	default:
		errs = append(errs, fmt.Errorf("unknown metrics exporter %q", c.Telemetry.Metrics))
	}
	switch c.Telemetry.Tracing {
	case ExporterNone, TraceJSON, TraceOpenTelemetry:
	default:
		errs = append(errs, fmt.Errorf("unknown trace exporter %q", c.Telemetry.Tracing))
	}
	return errors.Join(errs...)
}

// CreatureConfig converts the ledger settings for the creature registry.
func (c LedgerConfig) CreatureConfig() (creatures.Config, error) {
	policy, err := creatures.ParseBreedPolicy(c.BreedPolicy)
	if err != nil {
		return creatures.Config{}, err
	}
	return creatures.Config{
		Deposit:     domain.Balance(c.CreatureDeposit),
		MaxID:       domain.CreatureID(c.CreatureMaxID),
		BreedPolicy: policy,
	}, nil
}

// ClaimConfig converts the ledger settings for the claim registry.
func (c LedgerConfig) ClaimConfig() claims.Config {
	return claims.Config{MinLength: c.ClaimMinLength, MaxLength: c.ClaimMaxLength}
}

// Seed returns the genesis seed, the zero seed when unset.
func (c LedgerConfig) Seed() (domain.Seed, error) {
	if c.GenesisSeed == "" {
		return domain.Seed{}, nil
	}
	return entropy.ParseSeed(c.GenesisSeed)
}

// BlobStoreConfig converts the settings for blob.Open.
func (c BlobConfig) BlobStoreConfig() blob.Config {
	return blob.Config{
		Driver: blob.Driver(c.Driver),
		FSRoot: c.FSRoot,
		S3: blob.S3Config{
			Bucket:          c.S3Bucket,
			Region:          c.S3Region,
			Endpoint:        c.S3Endpoint,
			Prefix:          c.S3Prefix,
			PathStyle:       c.S3PathStyle,
			AccessKeyID:     c.S3AccessKey,
			SecretAccessKey: c.S3Secret,
		},
	}
}

// SlogLevel parses Level.
func (c LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", c.Level)
	}
	return level, nil
}
