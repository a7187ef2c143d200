// Command seeder validates a seed dataset and loads it into the document store.
//
// Every file is schema-checked and every foreign key resolved before anything
// is written. Nothing is loaded when any error is found.
//
// Exit codes: 0 = loaded and verified (or dry run passed), 1 = anything else.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/heartmarshall/seedloader/internal/app"
	"github.com/heartmarshall/seedloader/internal/config"
)

type flags struct {
	configPath    string
	source        string
	path          string
	connectionURI string
	catalogPath   string
	dryRun        bool
	clear         bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx)
	stop()
	os.Exit(code)
}

func execute(ctx context.Context) int {
	var (
		f    flags
		code int
	)

	root := &cobra.Command{
		Use:           "seeder",
		Short:         "Validate a seed dataset and load it into the document store",
		Version:       app.BuildVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			app.NewLogger(cfg.Log)
			code = app.Run(cmd.Context(), cfg, cmd.OutOrStdout())
			return nil
		},
	}
	root.PersistentFlags().StringVar(&f.configPath, "config", "", "path to YAML config (default: $CONFIG_PATH or ./config.yaml)")
	root.PersistentFlags().StringVar(&f.connectionURI, "connection-uri", "", "document store connection URI")
	root.Flags().StringVar(&f.source, "source", config.SourceE2E, "dataset source: e2e or custom")
	root.Flags().StringVar(&f.path, "path", "", "dataset directory or URL for --source=custom")
	root.Flags().StringVar(&f.catalogPath, "catalog", "", "path to a catalog YAML replacing the built-in one")
	root.Flags().BoolVar(&f.dryRun, "dry-run", false, "validate and print the load plan without connecting")
	root.Flags().BoolVar(&f.clear, "clear", false, "drop every target database before loading")

	lastRun := &cobra.Command{
		Use:   "last-run",
		Short: "Print the most recently recorded run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			app.NewLogger(cfg.Log)
			return app.LastRun(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}
	root.AddCommand(lastRun)

	if err := root.ExecuteContext(ctx); err != nil {
		slog.Error("seeder failed", slog.String("error", err.Error()))
		return 1
	}
	return code
}

// loadConfig reads the config file and environment, then applies the flags
// that were set explicitly on the command line.
func loadConfig(cmd *cobra.Command, f flags) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}

	set := cmd.Flags().Changed
	if set("source") {
		cfg.Seeder.Source = f.source
	}
	if set("path") {
		cfg.Seeder.Path = f.path
	}
	if set("catalog") {
		cfg.Seeder.CatalogPath = f.catalogPath
	}
	if set("dry-run") {
		cfg.Seeder.DryRun = f.dryRun
	}
	if set("clear") {
		cfg.Seeder.Clear = f.clear
	}
	if set("connection-uri") {
		cfg.Database.URI = f.connectionURI
	}

	if cmd.Name() == "last-run" {
		if cfg.Database.URI == "" {
			return nil, errors.New("connection uri is required")
		}
		return cfg, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
