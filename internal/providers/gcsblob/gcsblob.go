// Package gcsblob implements providers.BlobStore against Google Cloud
// Storage, grounded on the donor's internal/gcpclient/storage.go.
package gcsblob

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"

	"github.com/connexus-ai/gweta-core/internal/model"
)

// Adapter implements providers.BlobStore.
type Adapter struct {
	client *storage.Client
	bucket string
}

// New creates an Adapter bound to a single bucket.
func New(ctx context.Context, bucket string) (*Adapter, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcsblob.New: %w", err)
	}
	return &Adapter{client: client, bucket: bucket}, nil
}

// Get implements providers.BlobStore.
func (a *Adapter) Get(ctx context.Context, key string) ([]byte, error) {
	reader, err := a.client.Bucket(a.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if err == storage.ErrObjectNotExist {
			return nil, fmt.Errorf("gcsblob.Get(%s): %w", key, model.ErrBlobMiss)
		}
		return nil, fmt.Errorf("gcsblob.Get(%s): %w", key, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("gcsblob.Get(%s): read: %w", key, err)
	}
	return data, nil
}

// Close releases the underlying client.
func (a *Adapter) Close() error {
	return a.client.Close()
}
