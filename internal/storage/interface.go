// Package storage provides the content-addressed blob store consumed by the
// sandbox layer: materialize a blob by digest into a byte sink, persist a
// byte source as a new blob returning its digest.
package storage

import (
	"context"
	"io"
)

// FileStore is the storage collaborator interface. MinIO and local
// implementations are interchangeable behind it.
type FileStore interface {
	// GetFileToWriter streams the blob identified by digest into w.
	GetFileToWriter(ctx context.Context, digest string, w io.Writer) error

	// PutFileFromReader persists the bytes read from r as a new blob and
	// returns its content digest. The description is a human-readable note
	// kept alongside the blob.
	PutFileFromReader(ctx context.Context, r io.Reader, description string) (string, error)

	// Describe returns the stored description for a blob, or an empty
	// string when none was recorded.
	Describe(ctx context.Context, digest string) (string, error)
}
