package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"extruder/domain/core"
	"extruder/domain/dataset"
	"extruder/internal/migration"
)

// Requires a disposable database in TEST_DATABASE_URL.
func TestDatasetRepositoryRoundTrip(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	db, err := sqlx.Connect("postgres", url)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, migration.NewRunner().Run(ctx, db))
	_, err = db.ExecContext(ctx, `DELETE FROM datasets WHERE name LIKE 'repo_test_%'`)
	require.NoError(t, err)

	repo := NewDatasetRepository(db)
	created := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	entry := dataset.NewEntry(dataset.Object{Name: "repo_test_a.csv", Size: 100, CreatedAt: created})
	entry.RowCount = 42
	entry.Columns = []string{"MCGS_TIME", "X_Diameter"}
	entry.Checksum = core.NewHash([]byte("a"))
	entry.IndexedAt = created.Add(time.Minute)
	require.NoError(t, repo.Upsert(ctx, entry))

	relisted := dataset.NewEntry(dataset.Object{Name: "repo_test_a.csv", Size: 120, CreatedAt: created})
	require.NoError(t, repo.Upsert(ctx, relisted))
	assert.Equal(t, entry.ID, relisted.ID)

	got, err := repo.GetByName(ctx, "repo_test_a.csv")
	require.NoError(t, err)
	assert.Equal(t, int64(120), got.Size)
	assert.Equal(t, 42, got.RowCount, "an unindexed upsert keeps parsed metadata")
	assert.Equal(t, []string{"MCGS_TIME", "X_Diameter"}, got.Columns)
	assert.True(t, got.Indexed())

	require.NoError(t, repo.Delete(ctx, "repo_test_a.csv"))
	_, err = repo.GetByName(ctx, "repo_test_a.csv")
	assert.True(t, core.IsNotFoundError(err))
}
