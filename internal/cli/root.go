// Package cli implements the ledger command line: applying blocks of
// extrinsics from YAML files, querying committed state and archiving
// snapshots.
package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ledgercore/internal/config"
)

var version = "dev"

// app carries state shared by every subcommand of one invocation.
type app struct {
	stdout io.Writer
	stderr io.Writer

	v          *viper.Viper
	cfgFile    string
	herdLimit  int
	metricsOut string
}

// setting maps a viper key onto a Config field.
type setting struct {
	key   string
	flag  string
	usage string
	apply func(v *viper.Viper, key string, cfg *config.Config)
}

func stringField(field func(*config.Config) *string) func(*viper.Viper, string, *config.Config) {
	return func(v *viper.Viper, key string, cfg *config.Config) { *field(cfg) = v.GetString(key) }
}

func boolField(field func(*config.Config) *bool) func(*viper.Viper, string, *config.Config) {
	return func(v *viper.Viper, key string, cfg *config.Config) { *field(cfg) = v.GetBool(key) }
}

func intField(field func(*config.Config) *int) func(*viper.Viper, string, *config.Config) {
	return func(v *viper.Viper, key string, cfg *config.Config) { *field(cfg) = v.GetInt(key) }
}

var settings = []setting{
	{"storage.driver", "storage", "state backend: memory|sqlite|postgres|badger", stringField(func(c *config.Config) *string { return &c.Storage.Driver })},
	{"storage.sqlite_path", "sqlite-path", "sqlite database file", stringField(func(c *config.Config) *string { return &c.Storage.SQLitePath })},
	{"storage.postgres_dsn", "postgres-dsn", "postgres connection string", stringField(func(c *config.Config) *string { return &c.Storage.PostgresDSN })},
	{"storage.badger_path", "badger-path", "badger database directory", stringField(func(c *config.Config) *string { return &c.Storage.BadgerPath })},
	{"storage.badger_in_memory", "", "", boolField(func(c *config.Config) *bool { return &c.Storage.BadgerInMem })},
	{"storage.badger_sync_writes", "", "", boolField(func(c *config.Config) *bool { return &c.Storage.BadgerSync })},
	{"blob.driver", "blob-driver", "snapshot archive backend: fs|s3|memory", stringField(func(c *config.Config) *string { return &c.Blob.Driver })},
	{"blob.fs_root", "blob-root", "snapshot directory for the fs backend", stringField(func(c *config.Config) *string { return &c.Blob.FSRoot })},
	{"blob.s3_bucket", "", "", stringField(func(c *config.Config) *string { return &c.Blob.S3Bucket })},
	{"blob.s3_region", "", "", stringField(func(c *config.Config) *string { return &c.Blob.S3Region })},
	{"blob.s3_endpoint", "", "", stringField(func(c *config.Config) *string { return &c.Blob.S3Endpoint })},
	{"blob.s3_prefix", "", "", stringField(func(c *config.Config) *string { return &c.Blob.S3Prefix })},
	{"blob.s3_path_style", "", "", boolField(func(c *config.Config) *bool { return &c.Blob.S3PathStyle })},
	{"ledger.genesis_seed", "", "", stringField(func(c *config.Config) *string { return &c.Ledger.GenesisSeed })},
	{"ledger.breed_policy", "", "", stringField(func(c *config.Config) *string { return &c.Ledger.BreedPolicy })},
	{"ledger.creature_deposit", "", "", func(v *viper.Viper, key string, cfg *config.Config) { cfg.Ledger.CreatureDeposit = v.GetUint64(key) }},
	{"ledger.creature_max_id", "", "", func(v *viper.Viper, key string, cfg *config.Config) { cfg.Ledger.CreatureMaxID = v.GetUint32(key) }},
	{"ledger.claim_min_length", "", "", intField(func(c *config.Config) *int { return &c.Ledger.ClaimMinLength })},
	{"ledger.claim_max_length", "", "", intField(func(c *config.Config) *int { return &c.Ledger.ClaimMaxLength })},
	{"log.level", "log-level", "debug|info|warn|error", stringField(func(c *config.Config) *string { return &c.Log.Level })},
	{"log.format", "log-format", "text|json", stringField(func(c *config.Config) *string { return &c.Log.Format })},
	{"telemetry.metrics", "metrics", "none|expvar|prometheus", stringField(func(c *config.Config) *string { return &c.Telemetry.Metrics })},
	{"telemetry.tracing", "tracing", "none|json|otel", stringField(func(c *config.Config) *string { return &c.Telemetry.Tracing })},
}

// NewRootCommand builds the command tree writing to stdout and stderr.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr, v: viper.New()}
	root := &cobra.Command{
		Use:           "ledger",
		Short:         "Creature and claim ledger node",
		Long:          "Applies blocks of creature and claim extrinsics to a persistent ledger and answers queries against committed state.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "", "YAML config file overlaid on LEDGER_* environment variables")
	flags.IntVar(&a.herdLimit, "herd-limit", 0, "install the herd plugin warning above this many creatures per account")
	for _, s := range settings {
		if s.flag == "" {
			continue
		}
		flags.String(s.flag, "", s.usage)
		_ = a.v.BindPFlag(s.key, flags.Lookup(s.flag))
	}

	root.AddCommand(
		a.genesisCommand(),
		a.applyCommand(),
		a.statusCommand(),
		a.creatureCommand(),
		a.claimCommand(),
		a.balanceCommand(),
		a.eventsCommand(),
		a.exportCommand(),
		a.restoreCommand(),
		a.snapshotsCommand(),
	)
	return root
}

// SetVersion sets the version string (called from main with ldflags).
func SetVersion(v string) {
	version = v
}

// loadConfig resolves configuration in increasing precedence: defaults,
// environment, config file, flags.
func (a *app) loadConfig() (config.Config, error) {
	var cfg config.Config
	if err := config.ParseEnv(&cfg); err != nil {
		return config.Config{}, err
	}
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
		if err := a.v.ReadInConfig(); err != nil {
			return config.Config{}, fmt.Errorf("read config %s: %w", a.cfgFile, err)
		}
	}
	for _, s := range settings {
		if a.v.IsSet(s.key) {
			s.apply(a.v, s.key, &cfg)
		}
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
