package seeder

import "github.com/heartmarshall/seedloader/internal/config"

// Config holds pipeline run options.
type Config struct {
	DryRun    bool
	Clear     bool
	BatchSize int
	Workers   int
}

// ConfigFrom derives pipeline options from the seeder section of the app config.
func ConfigFrom(cfg config.SeederConfig) Config {
	return Config{
		DryRun:    cfg.DryRun,
		Clear:     cfg.Clear,
		BatchSize: cfg.BatchSize,
		Workers:   cfg.Workers,
	}
}
