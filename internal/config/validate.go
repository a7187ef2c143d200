package config

import (
	"fmt"
	"strings"
)

// Validate performs business-rule validation on the effective configuration.
func (c *Config) Validate() error {
	if err := c.Seeder.validate(); err != nil {
		return fmt.Errorf("seeder: %w", err)
	}

	if !c.Seeder.DryRun && strings.TrimSpace(c.Database.URI) == "" {
		return fmt.Errorf("database.uri is required unless dry_run is set")
	}

	switch strings.ToLower(c.Log.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text (got %q)", c.Log.Format)
	}

	return nil
}

func (s *SeederConfig) validate() error {
	switch s.Source {
	case SourceE2E:
	case SourceCustom:
		if strings.TrimSpace(s.Path) == "" {
			return fmt.Errorf("path is required with source %q", SourceCustom)
		}
	default:
		return fmt.Errorf("source must be %q or %q (got %q)", SourceE2E, SourceCustom, s.Source)
	}

	if s.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0 (got %d)", s.BatchSize)
	}
	if s.Workers <= 0 {
		return fmt.Errorf("workers must be > 0 (got %d)", s.Workers)
	}
	if s.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0 (got %s)", s.Timeout)
	}
	return nil
}
