package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"extruder/domain/core"
	"extruder/domain/dataset"
	"extruder/internal/config"
)

func writeFile(t *testing.T, root, name, content string, mod time.Time) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	require.NoError(t, os.Chtimes(p, mod, mod))
}

func TestLocalStoreList(t *testing.T) {
	root := t.TempDir()
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	writeFile(t, root, "run_a.csv", "MCGS_TIME,xValue\n", base)
	writeFile(t, root, "line3/run_b.xlsx", "xlsx", base.Add(time.Hour))
	writeFile(t, root, ".hidden.csv", "", base)

	store, err := NewLocalStore(root)
	require.NoError(t, err)

	objects, err := store.List(context.Background())
	require.NoError(t, err)
	dataset.SortNewestFirst(objects)

	require.Len(t, objects, 2)
	assert.Equal(t, "line3/run_b.xlsx", objects[0].Name)
	assert.Equal(t, base.Add(time.Hour), objects[0].CreatedAt)
	assert.Equal(t, "run_a.csv", objects[1].Name)
	assert.Equal(t, int64(len("MCGS_TIME,xValue\n")), objects[1].Size)
}

func TestLocalStoreOpenAndStat(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "run_a.csv", "MCGS_TIME,xValue\nt0,1.75\n", time.Now())
	store, err := NewLocalStore(root)
	require.NoError(t, err)
	ctx := context.Background()

	rc, err := store.Open(ctx, "run_a.csv")
	require.NoError(t, err)
	content, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Contains(t, string(content), "t0,1.75")

	_, err = store.Open(ctx, "missing.csv")
	assert.True(t, core.IsNotFoundError(err))

	_, err = store.Stat(ctx, "missing.csv")
	assert.True(t, core.IsNotFoundError(err))

	_, err = store.Open(ctx, "")
	assert.Error(t, err)
}

func TestLocalStoreStaysUnderRoot(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "uploads")
	writeFile(t, parent, "secret.csv", "x", time.Now())

	store, err := NewLocalStore(root)
	require.NoError(t, err)

	_, err = store.Open(context.Background(), "../secret.csv")
	assert.True(t, core.IsNotFoundError(err), "parent segments resolve inside the root")
}

func TestLocalStorePut(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	obj, err := store.Put(ctx, "line1/new.csv", strings.NewReader("MCGS_TIME,xValue\n"))
	require.NoError(t, err)
	assert.Equal(t, "line1/new.csv", obj.Name)
	assert.Equal(t, int64(17), obj.Size)

	objects, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, objects, 1, "no temporary files are left behind")
}

func TestOpenSelectsBackend(t *testing.T) {
	bucket, err := Open(context.Background(), config.StorageConfig{Backend: config.StorageLocal, Path: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, bucket)

	_, err = Open(context.Background(), config.StorageConfig{Backend: "ftp"})
	assert.Error(t, err)
}
