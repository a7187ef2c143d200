//go:build e2e

package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/seedloader/internal/adapter/postgres/docstore"
	"github.com/heartmarshall/seedloader/internal/adapter/postgres/runlog"
	"github.com/heartmarshall/seedloader/internal/adapter/postgres/testhelper"
	"github.com/heartmarshall/seedloader/internal/config"
)

func e2eConfig() *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{URI: testhelper.DSN(), MaxConns: 4, MinConns: 1},
		Seeder: config.SeederConfig{
			Source:     config.SourceE2E,
			Clear:      true,
			BatchSize:  2,
			Workers:    2,
			Timeout:    time.Minute,
		},
	}
}

// The catalog's databases are fixed names, so these tests do not run in parallel.
func TestE2E_LoadVerifyAndRecord(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	testhelper.DropSchemas(t, pool, "reference", "operations", "content")
	ctx := context.Background()
	store := docstore.New(pool)

	var out bytes.Buffer
	require.Equal(t, 0, Run(ctx, e2eConfig(), &out), out.String())
	assert.Contains(t, out.String(), "SUCCEEDED: 19 records loaded into 5 collections")

	farmers, err := store.Count(ctx, "operations", "farmers")
	require.NoError(t, err)
	assert.Equal(t, int64(5), farmers)

	run, err := runlog.New(pool).Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Succeeded", run.State)
	assert.Equal(t, 19, run.RecordsLoaded)
	assert.Equal(t, BuildVersion(), run.Version)

	// A second load without clearing converges to the same counts.
	cfg := e2eConfig()
	cfg.Seeder.Clear = false
	out.Reset()
	require.Equal(t, 0, Run(ctx, cfg, &out), out.String())

	farmers, err = store.Count(ctx, "operations", "farmers")
	require.NoError(t, err)
	assert.Equal(t, int64(5), farmers)

	out.Reset()
	require.NoError(t, LastRun(ctx, cfg, &out))
	assert.Contains(t, out.String(), "state      Succeeded")
	assert.Contains(t, out.String(), "19 validated, 19 loaded")
}

func TestE2E_InvalidDatasetLeavesStoreUntouched(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	testhelper.DropSchemas(t, pool, "reference", "operations", "content")
	ctx := context.Background()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "regions.json"),
		[]byte(`[{"region_id": "r-1", "name": "North", "country_code": "KE"}]`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "factories.json"),
		[]byte(`[{"factory_id": "f-1", "name": "Mill", "region_id": "r-404"}]`), 0o600))

	cfg := e2eConfig()
	cfg.Seeder.Source = config.SourceCustom
	cfg.Seeder.Path = dir
	cfg.Seeder.Clear = false

	var out bytes.Buffer
	assert.Equal(t, 1, Run(ctx, cfg, &out))
	assert.Contains(t, out.String(), "ABORTED")

	n, err := docstore.New(pool).Count(ctx, "reference", "regions")
	require.NoError(t, err)
	assert.Zero(t, n)

	run, err := runlog.New(pool).Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Aborted", run.State)
	assert.Equal(t, 1, run.ReferenceErrors)
}
