package container

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"extruder/adapters/memory"
	"extruder/internal"
	"extruder/internal/config"
	"extruder/internal/errors"
)

func TestInitInMemory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run.csv"), []byte("MCGS_TIME,X_Diameter\nt0,1.75\nt1,1.76\n"), 0o644))

	cfg := &config.Config{
		Storage:  config.StorageConfig{Backend: config.StorageLocal, Path: dir, ListConcurrency: 2},
		Analysis: config.AnalysisConfig{TargetDataPoints: 100},
	}
	c, err := New(cfg, internal.NewLogger(internal.LogLevelError))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.Init(ctx))
	defer c.Close()

	assert.IsType(t, &memory.DatasetRepository{}, c.DatasetRepo)
	assert.Nil(t, c.DB)
	require.NotNil(t, c.Catalog)
	require.NotNil(t, c.Analyzer)
	require.NotNil(t, c.Charts)

	entries, err := c.Catalog.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "run.csv", entries[0].Name)

	checks := c.HealthChecks()
	require.Contains(t, checks, "storage")
	assert.NotContains(t, checks, "database")
	assert.NoError(t, checks["storage"](ctx))
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(nil, nil)
	assert.Error(t, err)
}

func TestInitUnreachableDatabase(t *testing.T) {
	cfg := &config.Config{
		Storage:  config.StorageConfig{Backend: config.StorageLocal, Path: t.TempDir(), ListConcurrency: 2},
		Database: config.DatabaseConfig{URL: "postgres://spc@127.0.0.1:1/spc?sslmode=disable&connect_timeout=2"},
	}
	c, err := New(cfg, internal.NewLogger(internal.LogLevelError))
	require.NoError(t, err)
	defer c.Close()

	err = c.Init(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.CodeDatabaseError, errors.GetCode(err))
	assert.Nil(t, c.DB)
}
