package domain

import (
	"context"
	"io"
)

// BlobWriter uploads objects to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// Archiver exports the settlement trail of resolved markets to blob storage
// for long-term audit retention. Run returns the number of markets archived.
type Archiver interface {
	Run(ctx context.Context) (int, error)
}
