package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"extruder/domain/core"
	"extruder/domain/dataset"
	"extruder/ports"

	"github.com/jmoiron/sqlx"
)

// datasetRow mirrors the datasets table
type datasetRow struct {
	ID          string     `db:"id"`
	Name        string     `db:"name"`
	Format      string     `db:"format"`
	Size        int64      `db:"size"`
	Checksum    string     `db:"checksum"`
	RowCount    int        `db:"row_count"`
	SampledRows int        `db:"sampled_rows"`
	Columns     []byte     `db:"columns"`
	CreatedAt   time.Time  `db:"created_at"`
	IndexedAt   *time.Time `db:"indexed_at"`
}

const datasetColumns = `id, name, format, size, checksum, row_count, sampled_rows, columns, created_at, indexed_at`

// datasetRepository implements the DatasetRepository interface
type datasetRepository struct {
	db *sqlx.DB
}

// NewDatasetRepository creates a new dataset repository
func NewDatasetRepository(db *sqlx.DB) ports.DatasetRepository {
	return &datasetRepository{db: db}
}

// Upsert inserts the entry or refreshes the row with the same name
func (r *datasetRepository) Upsert(ctx context.Context, entry *dataset.Entry) error {
	if entry.ID.IsEmpty() {
		entry.ID = core.NewID()
	}
	columns := entry.Columns
	if columns == nil {
		columns = []string{}
	}
	columnsJSON, err := json.Marshal(columns)
	if err != nil {
		return fmt.Errorf("failed to marshal columns: %w", err)
	}
	var indexedAt *time.Time
	if entry.Indexed() {
		indexedAt = &entry.IndexedAt
	}

	query := `INSERT INTO datasets (` + datasetColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (name) DO UPDATE SET
		format = EXCLUDED.format,
		size = EXCLUDED.size,
		checksum = CASE WHEN EXCLUDED.indexed_at IS NULL THEN datasets.checksum ELSE EXCLUDED.checksum END,
		row_count = CASE WHEN EXCLUDED.indexed_at IS NULL THEN datasets.row_count ELSE EXCLUDED.row_count END,
		sampled_rows = CASE WHEN EXCLUDED.indexed_at IS NULL THEN datasets.sampled_rows ELSE EXCLUDED.sampled_rows END,
		columns = CASE WHEN EXCLUDED.indexed_at IS NULL THEN datasets.columns ELSE EXCLUDED.columns END,
		created_at = EXCLUDED.created_at,
		indexed_at = COALESCE(EXCLUDED.indexed_at, datasets.indexed_at)
	RETURNING id`

	var id string
	err = r.db.QueryRowxContext(ctx, query,
		entry.ID, entry.Name, entry.Format, entry.Size, entry.Checksum, entry.RowCount,
		entry.Sampled, columnsJSON, entry.CreatedAt, indexedAt,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to upsert dataset %s: %w", entry.Name, err)
	}
	entry.ID = core.ID(id)
	return nil
}

// GetByName retrieves a dataset by its object name
func (r *datasetRepository) GetByName(ctx context.Context, name string) (*dataset.Entry, error) {
	var row datasetRow
	err := r.db.GetContext(ctx, &row, `SELECT `+datasetColumns+` FROM datasets WHERE name = $1`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.NewNotFoundError("dataset", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dataset: %w", err)
	}
	return row.toEntry()
}

// List retrieves every catalog entry, newest first
func (r *datasetRepository) List(ctx context.Context) ([]*dataset.Entry, error) {
	var rows []datasetRow
	err := r.db.SelectContext(ctx, &rows, `SELECT `+datasetColumns+` FROM datasets ORDER BY created_at DESC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query datasets: %w", err)
	}

	entries := make([]*dataset.Entry, 0, len(rows))
	for _, row := range rows {
		entry, err := row.toEntry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Delete removes a dataset row by name
func (r *datasetRepository) Delete(ctx context.Context, name string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM datasets WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("failed to delete dataset: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return core.NewNotFoundError("dataset", name)
	}
	return nil
}

func (row datasetRow) toEntry() (*dataset.Entry, error) {
	entry := &dataset.Entry{
		ID:        core.ID(row.ID),
		Name:      row.Name,
		Format:    dataset.Format(row.Format),
		Size:      row.Size,
		Checksum:  core.Hash(row.Checksum),
		RowCount:  row.RowCount,
		Sampled:   row.SampledRows,
		CreatedAt: row.CreatedAt,
	}
	if row.IndexedAt != nil {
		entry.IndexedAt = *row.IndexedAt
	}
	if len(row.Columns) > 0 {
		if err := json.Unmarshal(row.Columns, &entry.Columns); err != nil {
			return nil, fmt.Errorf("failed to unmarshal columns: %w", err)
		}
	}
	return entry, nil
}
