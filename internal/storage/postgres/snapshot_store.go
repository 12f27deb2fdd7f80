// Package postgres mirrors snapshot tables into a Postgres row table.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/youtube-graph-crawler/internal/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "snapshot_rows"

// SnapshotStoreConfig controls the Postgres connection pool used for snapshot rows.
type SnapshotStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type txPool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Begin(context.Context) (pgx.Tx, error)
	Close()
}

// SnapshotStore writes every snapshot table row as a jsonb document keyed by
// run, kind, sequence and table. Each WriteTables call is one transaction.
type SnapshotStore struct {
	pool  txPool
	table string
}

var _ crawler.TableSink = (*SnapshotStore)(nil)

// NewSnapshotStore connects a pool using the provided config.
func NewSnapshotStore(ctx context.Context, cfg SnapshotStoreConfig) (*SnapshotStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("db.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &SnapshotStore{pool: pool, table: table}, nil
}

// NewSnapshotStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewSnapshotStoreWithPool(pool txPool, table string) (*SnapshotStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &SnapshotStore{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *SnapshotStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the row table when it does not exist.
func (s *SnapshotStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	run_id     TEXT        NOT NULL,
	kind       TEXT        NOT NULL,
	sequence   INTEGER     NOT NULL,
	table_name TEXT        NOT NULL,
	row_index  INTEGER     NOT NULL,
	payload    JSONB       NOT NULL,
	written_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (run_id, kind, sequence, table_name, row_index)
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

// WriteTables replaces the rows of batch with the given tables.
func (s *SnapshotStore) WriteTables(ctx context.Context, batch crawler.SnapshotBatch, tables []crawler.Table) (err error) {
	if s == nil || s.pool == nil {
		return errors.New("snapshot store is not configured")
	}
	if batch.RunID == "" {
		return errors.New("run id is required")
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = errors.Join(err, fmt.Errorf("rollback snapshot tx: %w", rbErr))
			}
		}
	}()

	deleteQuery := fmt.Sprintf(`DELETE FROM %s WHERE run_id = $1 AND kind = $2 AND sequence = $3`, s.table)
	if _, err = tx.Exec(ctx, deleteQuery, batch.RunID, string(batch.Kind), batch.Sequence); err != nil {
		return fmt.Errorf("clear snapshot rows: %w", err)
	}

	insertQuery := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	kind,
	sequence,
	table_name,
	row_index,
	payload,
	written_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7
)`, s.table)
	for _, table := range tables {
		for i, row := range table.Rows {
			payload, mErr := rowPayload(table.Header, row)
			if mErr != nil {
				err = fmt.Errorf("marshal %s row %d: %w", table.Name, i, mErr)
				return err
			}
			if _, err = tx.Exec(ctx, insertQuery,
				batch.RunID,
				string(batch.Kind),
				batch.Sequence,
				table.Name,
				i,
				payload,
				batch.WrittenAt,
			); err != nil {
				return fmt.Errorf("insert %s row %d: %w", table.Name, i, err)
			}
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit snapshot tx: %w", err)
	}
	return nil
}

// rowPayload maps header names to cells. Empty cells become JSON null.
func rowPayload(header, row []string) ([]byte, error) {
	doc := make(map[string]any, len(header))
	for i, name := range header {
		if i >= len(row) || row[i] == "" {
			doc[name] = nil
			continue
		}
		doc[name] = row[i]
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode row: %w", err)
	}
	return b, nil
}
