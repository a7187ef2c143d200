package config

import "time"

// Config is the root seeder configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Seeder   SeederConfig   `yaml:"seeder"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// DatabaseConfig holds document-store connection settings.
type DatabaseConfig struct {
	URI             string        `yaml:"uri"                env:"SEEDER_CONNECTION_URI"`
	MaxConns        int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"8"`
	MinConns        int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"          env-default:"1"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
}

// Dataset sources.
const (
	SourceE2E    = "e2e"
	SourceCustom = "custom"
)

// SeederConfig holds pipeline settings.
type SeederConfig struct {
	Source string `yaml:"source" env:"SEEDER_SOURCE" env-default:"e2e"`
	// Path is a directory or afs URL holding the custom dataset.
	Path        string        `yaml:"path"         env:"SEEDER_PATH"`
	CatalogPath string        `yaml:"catalog_path" env:"SEEDER_CATALOG_PATH"`
	DryRun      bool          `yaml:"dry_run"      env:"SEEDER_DRY_RUN"`
	Clear       bool          `yaml:"clear"        env:"SEEDER_CLEAR"`
	BatchSize   int           `yaml:"batch_size"   env:"SEEDER_BATCH_SIZE"   env-default:"500"`
	Workers     int           `yaml:"workers"      env:"SEEDER_WORKERS"      env-default:"4"`
	Timeout     time.Duration `yaml:"timeout"      env:"SEEDER_TIMEOUT"      env-default:"10m"`
	// SkipRunLog turns off the run ledger. Booleans here take no env-default.
	SkipRunLog bool `yaml:"skip_run_log" env:"SEEDER_SKIP_RUN_LOG"`
}

// MetricsConfig holds Pushgateway settings. An empty URL disables pushing.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url" env:"METRICS_PUSHGATEWAY_URL"`
	Job            string `yaml:"job"             env:"METRICS_JOB"             env-default:"seeder"`
}
