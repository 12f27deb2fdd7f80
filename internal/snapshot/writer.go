// Package snapshot serializes the channel graph into node and edge tables and
// writes them to the configured destinations.
package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/youtube-graph-crawler/internal/crawler"
	"github.com/JakeFAU/youtube-graph-crawler/internal/graph"
	"github.com/JakeFAU/youtube-graph-crawler/internal/hash/sha256"
	"github.com/JakeFAU/youtube-graph-crawler/internal/metrics"
)

const csvContentType = "text/csv; charset=utf-8"

// Result describes one written snapshot.
type Result struct {
	Kind        crawler.SnapshotKind `json:"kind"`
	Sequence    int                  `json:"sequence"`
	NodesURI    string               `json:"nodes_uri"`
	EdgesURI    string               `json:"edges_uri"`
	NodeCount   int                  `json:"node_count"`
	EdgeCount   int                  `json:"edge_count"`
	NodesSHA256 string               `json:"nodes_sha256"`
	EdgesSHA256 string               `json:"edges_sha256"`
	WrittenAt   time.Time            `json:"written_at"`
}

// Config controls where snapshots land.
type Config struct {
	// Prefix is prepended to every object path, e.g. "graph".
	Prefix string
	// RunID tags rows written to the table sink.
	RunID string
}

// Option customizes a Writer.
type Option func(*Writer)

// WithTableSink mirrors every snapshot into sink.
func WithTableSink(sink crawler.TableSink) Option {
	return func(w *Writer) { w.sink = sink }
}

// WithHasher overrides the digest function.
func WithHasher(h crawler.Hasher) Option {
	return func(w *Writer) { w.hasher = h }
}

// WithClock overrides the clock used for WrittenAt.
func WithClock(c crawler.Clock) Option {
	return func(w *Writer) { w.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Writer) { w.logger = l }
}

// Writer renders and persists snapshots. Checkpoints never modify the store
// or the edge log; only WriteFinal reconciles the log.
type Writer struct {
	blobs  crawler.BlobStore
	sink   crawler.TableSink
	hasher crawler.Hasher
	clock  crawler.Clock
	logger *zap.Logger
	prefix string
	runID  string
}

// NewWriter builds a Writer over blobs.
func NewWriter(blobs crawler.BlobStore, cfg Config, opts ...Option) *Writer {
	w := &Writer{
		blobs:  blobs,
		hasher: sha256.New(),
		clock:  wallClock{},
		logger: zap.NewNop(),
		prefix: strings.Trim(cfg.Prefix, "/"),
		runID:  cfg.RunID,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named("snapshot")
	return w
}

// CheckpointDir returns the object directory of checkpoint seq.
func (w *Writer) CheckpointDir(seq int) string {
	return path.Join(w.prefix, fmt.Sprintf("checkpoint-%02d", seq))
}

// FinalDir returns the object directory of the final snapshot.
func (w *Writer) FinalDir() string {
	return path.Join(w.prefix, "final")
}

// WriteCheckpoint writes the current records and the raw edge log.
func (w *Writer) WriteCheckpoint(ctx context.Context, seq int, store *graph.Store, edges *graph.EdgeLog) (Result, error) {
	batch := crawler.SnapshotBatch{
		RunID:     w.runID,
		Kind:      crawler.SnapshotCheckpoint,
		Sequence:  seq,
		WrittenAt: w.clock.Now(),
	}
	res, err := w.write(ctx, w.CheckpointDir(seq), batch, store.Records(), edges.All())
	metrics.ObserveSnapshot(string(crawler.SnapshotCheckpoint), err)
	if err != nil {
		return Result{}, fmt.Errorf("write checkpoint %d: %w", seq, err)
	}
	return res, nil
}

// WriteFinal reconciles the edge log against store and writes both tables.
func (w *Writer) WriteFinal(ctx context.Context, store *graph.Store, edges *graph.EdgeLog) (Result, error) {
	batch := crawler.SnapshotBatch{
		RunID:     w.runID,
		Kind:      crawler.SnapshotFinal,
		WrittenAt: w.clock.Now(),
	}
	reconciled := edges.Reconcile(store)
	res, err := w.write(ctx, w.FinalDir(), batch, store.Records(), reconciled)
	metrics.ObserveSnapshot(string(crawler.SnapshotFinal), err)
	if err != nil {
		return Result{}, fmt.Errorf("write final snapshot: %w", err)
	}
	return res, nil
}

func (w *Writer) write(
	ctx context.Context,
	dir string,
	batch crawler.SnapshotBatch,
	records []crawler.Record,
	edges []crawler.Edge,
) (Result, error) {
	nodes := NodeTable(records)
	edgeTable := EdgeTable(edges)

	res := Result{
		Kind:      batch.Kind,
		Sequence:  batch.Sequence,
		NodeCount: len(nodes.Rows),
		EdgeCount: len(edgeTable.Rows),
		WrittenAt: batch.WrittenAt,
	}
	var err error
	if res.NodesURI, res.NodesSHA256, err = w.put(ctx, path.Join(dir, "nodes.csv"), nodes); err != nil {
		return Result{}, err
	}
	if res.EdgesURI, res.EdgesSHA256, err = w.put(ctx, path.Join(dir, "edges.csv"), edgeTable); err != nil {
		return Result{}, err
	}
	if w.sink != nil {
		if err := w.sink.WriteTables(ctx, batch, []crawler.Table{nodes, edgeTable}); err != nil {
			return Result{}, fmt.Errorf("write table sink: %w", err)
		}
	}

	w.logger.Info("snapshot written",
		zap.String("kind", string(batch.Kind)),
		zap.Int("sequence", batch.Sequence),
		zap.String("nodes_uri", res.NodesURI),
		zap.String("edges_uri", res.EdgesURI),
		zap.Int("nodes", res.NodeCount),
		zap.Int("edges", res.EdgeCount),
	)
	return res, nil
}

func (w *Writer) put(ctx context.Context, objectPath string, t crawler.Table) (string, string, error) {
	data, err := EncodeCSV(t)
	if err != nil {
		return "", "", err
	}
	digest, err := w.hasher.Hash(data)
	if err != nil {
		return "", "", fmt.Errorf("hash %s: %w", objectPath, err)
	}
	uri, err := w.blobs.PutObject(ctx, objectPath, csvContentType, bytes.NewReader(data))
	if err != nil {
		return "", "", fmt.Errorf("put %s: %w", objectPath, err)
	}
	return uri, digest, nil
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now().UTC() }
