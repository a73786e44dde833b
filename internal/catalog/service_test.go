package catalog

import (
	"bytes"
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"extruder/adapters/excel"
	"extruder/adapters/memory"
	"extruder/domain/dataset"
	"extruder/internal"
	"extruder/internal/errors"
	"extruder/internal/testkit"
)

// MockDatasetRepository is a testify mock of ports.DatasetRepository
type MockDatasetRepository struct {
	mock.Mock
}

func (m *MockDatasetRepository) Upsert(ctx context.Context, entry *dataset.Entry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *MockDatasetRepository) GetByName(ctx context.Context, name string) (*dataset.Entry, error) {
	args := m.Called(ctx, name)
	entry, _ := args.Get(0).(*dataset.Entry)
	return entry, args.Error(1)
}

func (m *MockDatasetRepository) List(ctx context.Context) ([]*dataset.Entry, error) {
	args := m.Called(ctx)
	entries, _ := args.Get(0).([]*dataset.Entry)
	return entries, args.Error(1)
}

func (m *MockDatasetRepository) Delete(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

var base = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func generatedCSV(t *testing.T, rows int) []byte {
	t.Helper()
	cfg := testkit.DefaultExtrusionConfig()
	cfg.Rows = rows
	var buf bytes.Buffer
	require.NoError(t, testkit.NewExtrusionDataGenerator(cfg).WriteCSV(&buf))
	return buf.Bytes()
}

func newTestService(store *testkit.MemoryStore, repo *memory.DatasetRepository) *Service {
	reader := excel.NewDataReader(excel.DefaultReaderConfig())
	return NewService(store, repo, reader, DefaultConfig(), internal.NewLogger(internal.LogLevelError))
}

func TestListFiltersAndOrders(t *testing.T) {
	store := testkit.NewMemoryStore()
	store.Add("old.csv", []byte("a\n1\n"), base)
	store.Add("newest.xlsx", []byte("xlsx"), base.Add(2*time.Hour))
	store.Add("middle.csv", []byte("a\n1\n"), base.Add(time.Hour))
	store.Add("readme.txt", []byte("notes"), base.Add(3*time.Hour))

	svc := newTestService(store, memory.NewDatasetRepository())
	entries, err := svc.List(context.Background())
	require.NoError(t, err)

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	assert.Equal(t, []string{"newest.xlsx", "middle.csv", "old.csv"}, names)
	assert.False(t, entries[0].Indexed())
}

func TestLoadRecordsMetadata(t *testing.T) {
	store := testkit.NewMemoryStore()
	store.Add("run.csv", generatedCSV(t, 25000), base)
	repo := memory.NewDatasetRepository()
	svc := newTestService(store, repo)
	ctx := context.Background()

	loaded, err := svc.Load(ctx, "run.csv")
	require.NoError(t, err)

	assert.Equal(t, 2, loaded.SamplingRate)
	assert.Equal(t, 12500, loaded.Dataset.Len())
	assert.Equal(t, 25000, loaded.Entry.RowCount)
	assert.Equal(t, []string{testkit.ColumnTime, testkit.ColumnX, testkit.ColumnY, testkit.ColumnXY}, loaded.Entry.Columns)
	assert.False(t, loaded.Entry.Checksum.IsEmpty())

	entries, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Indexed(), "listing keeps parsed metadata")
	assert.Equal(t, loaded.Entry.ID, entries[0].ID)
}

func TestLoadErrors(t *testing.T) {
	store := testkit.NewMemoryStore()
	store.Add("empty.csv", nil, base)
	svc := newTestService(store, memory.NewDatasetRepository())
	ctx := context.Background()

	_, err := svc.Load(ctx, "notes.txt")
	assert.Equal(t, errors.CodeUnsupportedFile, errors.GetCode(err))

	_, err = svc.Load(ctx, "missing.csv")
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))

	_, err = svc.Load(ctx, "empty.csv")
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestLoadSurvivesCatalogFailure(t *testing.T) {
	store := testkit.NewMemoryStore()
	store.Add("run.csv", generatedCSV(t, 100), base)

	repo := new(MockDatasetRepository)
	repo.On("Upsert", mock.Anything, mock.MatchedBy(func(e *dataset.Entry) bool {
		return e.Name == "run.csv" && e.RowCount == 100 && e.Indexed()
	})).Return(stderrors.New("connection refused")).Once()

	svc := NewService(store, repo, excel.NewDataReader(excel.DefaultReaderConfig()), DefaultConfig(),
		internal.NewLogger(internal.LogLevelError))

	loaded, err := svc.Load(context.Background(), "run.csv")
	require.NoError(t, err)
	assert.Equal(t, 100, loaded.Dataset.Len())
	repo.AssertExpectations(t)
}

func TestListReportsRepositoryFailure(t *testing.T) {
	repo := new(MockDatasetRepository)
	repo.On("List", mock.Anything).Return(nil, stderrors.New("connection refused"))

	svc := NewService(testkit.NewMemoryStore(), repo, excel.NewDataReader(excel.DefaultReaderConfig()), DefaultConfig(),
		internal.NewLogger(internal.LogLevelError))

	_, err := svc.List(context.Background())
	assert.Equal(t, errors.CodeDatabaseError, errors.GetCode(err))
}

func TestReindex(t *testing.T) {
	store := testkit.NewMemoryStore()
	for i, name := range []string{"a.csv", "b.csv", "c.csv", "d.csv", "e.csv"} {
		store.Add(name, generatedCSV(t, 200+i), base.Add(time.Duration(i)*time.Minute))
	}
	repo := memory.NewDatasetRepository()
	svc := newTestService(store, repo)
	ctx := context.Background()

	n, err := svc.Reindex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	entry, err := svc.Entry(ctx, "c.csv")
	require.NoError(t, err)
	assert.Equal(t, 202, entry.RowCount)

	_, err = svc.Entry(ctx, "zzz.csv")
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
}
