package crawler

import (
	"context"
	"io"
	"time"
)

// Fetcher resolves a channel identifier into metadata or a not-found outcome.
// Indeterminate remote errors are returned wrapped in ErrFetchFailure.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResult, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes digests for snapshot integrity.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

// Table is one CSV-shaped snapshot table.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// SnapshotKind distinguishes intermediate checkpoints from the final write.
type SnapshotKind string

// Snapshot kinds.
const (
	SnapshotCheckpoint SnapshotKind = "checkpoint"
	SnapshotFinal      SnapshotKind = "final"
)

// SnapshotBatch identifies one snapshot across every table it contains.
type SnapshotBatch struct {
	RunID     string
	Kind      SnapshotKind
	Sequence  int
	WrittenAt time.Time
}

// TableSink receives the same tables the blob destination gets, for
// destinations that store rows rather than files.
type TableSink interface {
	WriteTables(ctx context.Context, batch SnapshotBatch, tables []Table) error
}
