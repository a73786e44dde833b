package catalog

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"extruder/adapters/excel"
	"extruder/domain/core"
	"extruder/domain/dataset"
	"extruder/domain/spc"
	"extruder/internal"
	"extruder/internal/errors"
	"extruder/ports"
)

// Config bounds the catalog's concurrent work
type Config struct {
	IndexConcurrency int   // objects parsed at once by Reindex
	MaxLoads         int64 // parses in flight across all callers
}

// DefaultConfig returns conservative limits for a small dashboard host
func DefaultConfig() Config {
	return Config{IndexConcurrency: 4, MaxLoads: 4}
}

// Loaded is a parsed measurement file together with its catalog entry
type Loaded struct {
	Entry        dataset.Entry
	Dataset      spc.Dataset
	SamplingRate int
}

// Service lists and loads measurement files and keeps the catalog current
type Service struct {
	store  ports.ObjectStore
	repo   ports.DatasetRepository
	reader *excel.DataReader
	loads  *semaphore.Weighted
	config Config
	logger *internal.Logger
	now    func() time.Time
}

// NewService wires a catalog over a store and repository
func NewService(store ports.ObjectStore, repo ports.DatasetRepository, reader *excel.DataReader, config Config, logger *internal.Logger) *Service {
	if config.IndexConcurrency <= 0 {
		config.IndexConcurrency = DefaultConfig().IndexConcurrency
	}
	if config.MaxLoads <= 0 {
		config.MaxLoads = DefaultConfig().MaxLoads
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Service{
		store:  store,
		repo:   repo,
		reader: reader,
		loads:  semaphore.NewWeighted(config.MaxLoads),
		config: config,
		logger: logger.WithPrefix("Catalog"),
		now:    time.Now,
	}
}

// List returns every supported file, newest first. Parsed metadata from
// earlier loads is merged in; new or changed objects are recorded.
func (s *Service) List(ctx context.Context) ([]dataset.Entry, error) {
	objects, err := s.store.List(ctx)
	if err != nil {
		return nil, errors.ExternalServiceError("object storage", err)
	}

	known, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.WithCode(errors.CodeDatabaseError, err), "failed to read catalog")
	}
	byName := make(map[string]*dataset.Entry, len(known))
	for _, entry := range known {
		byName[entry.Name] = entry
	}

	supported := objects[:0]
	for _, obj := range objects {
		if obj.Supported() {
			supported = append(supported, obj)
		}
	}
	dataset.SortNewestFirst(supported)

	entries := make([]dataset.Entry, 0, len(supported))
	for _, obj := range supported {
		entry, ok := byName[obj.Name]
		if !ok || entry.Size != obj.Size || !entry.CreatedAt.Equal(obj.CreatedAt) {
			fresh := dataset.NewEntry(obj)
			if err := s.repo.Upsert(ctx, fresh); err != nil {
				s.logger.Warn("failed to record %s: %v", obj.Name, err)
			}
			entry = fresh
		}
		entries = append(entries, *entry)
	}

	s.logger.Debug("listed %d supported files of %d objects", len(entries), len(objects))
	return entries, nil
}

// Load downloads and parses one file. The catalog entry is refreshed with
// the parsed row count, columns and checksum; a catalog write failure is
// logged but does not fail the load.
func (s *Service) Load(ctx context.Context, name string) (*Loaded, error) {
	format, ok := dataset.FormatOf(name)
	if !ok {
		return nil, errors.UnsupportedFile(name)
	}

	if err := s.loads.Acquire(ctx, 1); err != nil {
		return nil, errors.Wrap(err, "load cancelled")
	}
	defer s.loads.Release(1)

	start := s.now()
	obj, err := s.store.Stat(ctx, name)
	if err != nil {
		return nil, storeError(name, err)
	}

	rc, err := s.store.Open(ctx, name)
	if err != nil {
		return nil, storeError(name, err)
	}
	defer rc.Close()

	hr := core.NewHashingReader(rc)
	result, err := s.reader.Read(hr, format)
	if err != nil {
		if errors.IsAppError(err) {
			return nil, err
		}
		return nil, errors.Wrapf(errors.WithCode(errors.CodeInvalidInput, err), "failed to parse %s", name)
	}

	entry := dataset.NewEntry(obj)
	entry.Checksum = hr.Sum()
	entry.RowCount = result.RawRows
	entry.Sampled = result.Dataset.Len()
	entry.Columns = append([]string(nil), result.Dataset.Columns...)
	entry.IndexedAt = s.now().UTC()
	if err := s.repo.Upsert(ctx, entry); err != nil {
		s.logger.Warn("failed to record %s: %v", name, err)
	}

	s.logger.Info("loaded %s: %d rows, kept %d (every %d) in %s",
		name, result.RawRows, result.Dataset.Len(), result.SamplingRate, s.now().Sub(start))

	return &Loaded{Entry: *entry, Dataset: result.Dataset, SamplingRate: result.SamplingRate}, nil
}

// Reindex parses every supported file, IndexConcurrency at a time. It
// stops at the first failure and returns the number of files listed.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return 0, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.IndexConcurrency)
	for _, entry := range entries {
		name := entry.Name
		g.Go(func() error {
			_, err := s.Load(gctx, name)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return len(entries), err
	}
	s.logger.Info("reindexed %d files", len(entries))
	return len(entries), nil
}

// Entry returns the stored catalog entry for name
func (s *Service) Entry(ctx context.Context, name string) (*dataset.Entry, error) {
	entry, err := s.repo.GetByName(ctx, name)
	if core.IsNotFoundError(err) {
		return nil, errors.NotFound("dataset " + name)
	}
	return entry, err
}

func storeError(name string, err error) error {
	if core.IsNotFoundError(err) {
		return errors.NotFound("file " + name)
	}
	return errors.ExternalServiceError("object storage", err)
}
