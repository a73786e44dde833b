// Package redisrepo keeps the dataset catalog in a Redis hash, for
// deployments that share a Redis instance but have no Postgres.
package redisrepo

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"extruder/domain/core"
	"extruder/domain/dataset"
	"extruder/ports"
)

// DefaultKey is the hash holding one JSON entry per file name
const DefaultKey = "spc:datasets"

const maxUpsertAttempts = 5

// DatasetRepository implements ports.DatasetRepository on a Redis hash
type DatasetRepository struct {
	client *redis.Client
	key    string
}

var _ ports.DatasetRepository = (*DatasetRepository)(nil)

// Open parses a redis:// URL and checks the connection
func Open(ctx context.Context, url string) (*DatasetRepository, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	repo := NewDatasetRepository(redis.NewClient(opts), DefaultKey)
	if err := repo.Check(ctx); err != nil {
		repo.Close()
		return nil, err
	}
	return repo, nil
}

// NewDatasetRepository wraps an existing client
func NewDatasetRepository(client *redis.Client, key string) *DatasetRepository {
	if key == "" {
		key = DefaultKey
	}
	return &DatasetRepository{client: client, key: key}
}

// Check pings the server
func (r *DatasetRepository) Check(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close closes the client
func (r *DatasetRepository) Close() error {
	return r.client.Close()
}

// Upsert writes entry under its name. The read-merge-write runs in a
// WATCH transaction and is retried when another writer gets in first.
func (r *DatasetRepository) Upsert(ctx context.Context, entry *dataset.Entry) error {
	for attempt := 0; attempt < maxUpsertAttempts; attempt++ {
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			stored, err := r.get(ctx, tx, entry.Name)
			switch {
			case err == nil:
				entry.Merge(*stored)
			case core.IsNotFoundError(err):
				if entry.ID.IsEmpty() {
					entry.ID = core.NewID()
				}
			default:
				return err
			}

			payload, err := json.Marshal(entry)
			if err != nil {
				return fmt.Errorf("marshal entry: %w", err)
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, r.key, entry.Name, payload)
				return nil
			})
			return err
		}, r.key)

		if stderrors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("redis upsert %s: %w", entry.Name, err)
		}
		return nil
	}
	return fmt.Errorf("redis upsert %s: too much contention", entry.Name)
}

// GetByName returns the named entry
func (r *DatasetRepository) GetByName(ctx context.Context, name string) (*dataset.Entry, error) {
	return r.get(ctx, r.client, name)
}

// List returns every entry, newest first
func (r *DatasetRepository) List(ctx context.Context) ([]*dataset.Entry, error) {
	all, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}

	entries := make([]*dataset.Entry, 0, len(all))
	for name, raw := range all {
		var entry dataset.Entry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, fmt.Errorf("decode entry %s: %w", name, err)
		}
		entries = append(entries, &entry)
	}
	dataset.SortEntriesNewestFirst(entries)
	return entries, nil
}

// Delete removes the named entry
func (r *DatasetRepository) Delete(ctx context.Context, name string) error {
	removed, err := r.client.HDel(ctx, r.key, name).Result()
	if err != nil {
		return fmt.Errorf("redis hdel: %w", err)
	}
	if removed == 0 {
		return core.NewNotFoundError("dataset", name)
	}
	return nil
}

func (r *DatasetRepository) get(ctx context.Context, c redis.Cmdable, name string) (*dataset.Entry, error) {
	raw, err := c.HGet(ctx, r.key, name).Bytes()
	if err == redis.Nil {
		return nil, core.NewNotFoundError("dataset", name)
	}
	if err != nil {
		return nil, fmt.Errorf("redis hget: %w", err)
	}

	var entry dataset.Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("decode entry %s: %w", name, err)
	}
	return &entry, nil
}
