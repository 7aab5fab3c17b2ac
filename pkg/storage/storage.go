// Package storage keeps generated report files, grouped by run.
package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a run or file does not exist.
var ErrNotFound = errors.New("not found")

// FileInfo contains metadata about a stored file
type FileInfo struct {
	RunID       uuid.UUID `json:"run_id"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	Path        string    `json:"path"` // Location on the backing store
	CreatedAt   time.Time `json:"created_at"`
}

// Storage defines the report store operations
type Storage interface {
	// Save stores a file under runID, replacing any file of the same name
	Save(ctx context.Context, runID uuid.UUID, name, contentType string, r io.Reader) (*FileInfo, error)

	// Open returns a reader for a stored file
	Open(ctx context.Context, runID uuid.UUID, name string) (io.ReadCloser, *FileInfo, error)

	// List returns the files of a run
	List(ctx context.Context, runID uuid.UUID) ([]*FileInfo, error)

	// Runs returns the IDs of all stored runs with their creation time
	Runs(ctx context.Context) (map[uuid.UUID]time.Time, error)

	// Delete removes a run and its files
	Delete(ctx context.Context, runID uuid.UUID) error
}
