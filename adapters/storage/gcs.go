package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"extruder/domain/core"
	"extruder/domain/dataset"
)

// GCSConfig identifies the bucket and the service account used to reach it.
// With neither credential set the client falls back to application default
// credentials.
type GCSConfig struct {
	Bucket          string
	CredentialsJSON string
	CredentialsFile string
}

// GCSStore serves measurement files from a Cloud Storage (Firebase) bucket
type GCSStore struct {
	client *gcs.Client
	bucket *gcs.BucketHandle
	name   string
}

// NewGCSStore opens a client for the configured bucket
func NewGCSStore(ctx context.Context, cfg GCSConfig) (*GCSStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}

	var opts []option.ClientOption
	switch {
	case cfg.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	log.Printf("[GCSStore] connected to bucket %s", cfg.Bucket)
	return &GCSStore{client: client, bucket: client.Bucket(cfg.Bucket), name: cfg.Bucket}, nil
}

// List returns every object in the bucket with its creation time
func (s *GCSStore) List(ctx context.Context) ([]dataset.Object, error) {
	var objects []dataset.Object
	it := s.bucket.Objects(ctx, nil)
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list bucket %s: %w", s.name, err)
		}
		objects = append(objects, objectFromAttrs(attrs))
	}
	return objects, nil
}

// Open downloads one object as a stream
func (s *GCSStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	reader, err := s.bucket.Object(name).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, core.NewNotFoundError("object", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open gs://%s/%s: %w", s.name, name, err)
	}
	return reader, nil
}

// Stat fetches the metadata of one object
func (s *GCSStore) Stat(ctx context.Context, name string) (dataset.Object, error) {
	attrs, err := s.bucket.Object(name).Attrs(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return dataset.Object{}, core.NewNotFoundError("object", name)
	}
	if err != nil {
		return dataset.Object{}, fmt.Errorf("failed to stat gs://%s/%s: %w", s.name, name, err)
	}
	return objectFromAttrs(attrs), nil
}

// Put uploads r as name
func (s *GCSStore) Put(ctx context.Context, name string, r io.Reader) (dataset.Object, error) {
	w := s.bucket.Object(name).NewWriter(ctx)
	if format, ok := dataset.FormatOf(name); ok && format == dataset.FormatCSV {
		w.ContentType = "text/csv"
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return dataset.Object{}, fmt.Errorf("failed to upload gs://%s/%s: %w", s.name, name, err)
	}
	if err := w.Close(); err != nil {
		return dataset.Object{}, fmt.Errorf("failed to finish upload gs://%s/%s: %w", s.name, name, err)
	}
	return objectFromAttrs(w.Attrs()), nil
}

// Close releases the client
func (s *GCSStore) Close() error {
	return s.client.Close()
}

func objectFromAttrs(attrs *gcs.ObjectAttrs) dataset.Object {
	return dataset.Object{
		Name:      attrs.Name,
		Size:      attrs.Size,
		CreatedAt: attrs.Created.UTC(),
	}
}
