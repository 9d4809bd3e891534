// Package snapshots stores the encoded ledger snapshot. Backends only move
// bytes; the document layout lives in format.go.
package snapshots

import (
	"context"
	"errors"
)

// ErrNotExist is returned by Load when nothing has been saved yet.
var ErrNotExist = errors.New("snapshot does not exist")

// Repository persists one snapshot document.
type Repository interface {
	// Load returns the last saved document, or ErrNotExist on first run.
	Load(ctx context.Context) ([]byte, error)

	// Save replaces the stored document. A concurrent or later Load observes
	// either the previous document or the new one, never a partial write.
	Save(ctx context.Context, data []byte) error

	// Name identifies the backend in logs.
	Name() string
}

// Quarantiner is implemented by backends that can move an undecodable
// snapshot aside so the next save does not overwrite it.
type Quarantiner interface {
	Quarantine(ctx context.Context, suffix string) (string, error)
}
