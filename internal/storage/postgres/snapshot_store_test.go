package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/youtube-graph-crawler/internal/crawler"
)

func sampleTables() []crawler.Table {
	return []crawler.Table{
		{
			Name:   "nodes",
			Header: []string{"channel_key", "title"},
			Rows:   [][]string{{"A", "Alpha"}, {"UCx", ""}},
		},
		{
			Name:   "edges",
			Header: []string{"Source", "Target"},
			Rows:   [][]string{{"Alpha", "UCx"}},
		},
	}
}

func TestWriteTablesInsertsRowsInTx(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewSnapshotStoreWithPool(mock, "snapshot_rows")
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	batch := crawler.SnapshotBatch{RunID: "run-1", Kind: crawler.SnapshotCheckpoint, Sequence: 2, WrittenAt: now}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM snapshot_rows").
		WithArgs("run-1", "checkpoint", 2).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("INSERT INTO snapshot_rows").
		WithArgs("run-1", "checkpoint", 2, "nodes", 0, []byte(`{"channel_key":"A","title":"Alpha"}`), now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO snapshot_rows").
		WithArgs("run-1", "checkpoint", 2, "nodes", 1, []byte(`{"channel_key":"UCx","title":null}`), now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO snapshot_rows").
		WithArgs("run-1", "checkpoint", 2, "edges", 0, []byte(`{"Source":"Alpha","Target":"UCx"}`), now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, store.WriteTables(context.Background(), batch, sampleTables()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteTablesRollsBackOnError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewSnapshotStoreWithPool(mock, "")
	require.NoError(t, err)

	batch := crawler.SnapshotBatch{RunID: "run-1", Kind: crawler.SnapshotFinal}
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM snapshot_rows").
		WithArgs("run-1", "final", 0).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err = store.WriteTables(context.Background(), batch, sampleTables())
	require.ErrorContains(t, err, "clear snapshot rows")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewSnapshotStoreWithPool(mock, "graph_rows")
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS graph_rows").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotStoreValidation(t *testing.T) {
	t.Parallel()

	_, err := NewSnapshotStoreWithPool(nil, "")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewSnapshotStoreWithPool(mock, "bad;name")
	require.Error(t, err)

	store, err := NewSnapshotStoreWithPool(mock, "")
	require.NoError(t, err)
	require.Error(t, store.WriteTables(context.Background(), crawler.SnapshotBatch{}, nil))

	_, err = NewSnapshotStore(context.Background(), SnapshotStoreConfig{})
	require.Error(t, err)
}
