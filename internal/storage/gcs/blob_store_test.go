package gcs

import (
	"context"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	_, err = New(client, Config{})
	require.Error(t, err)

	store, err := New(client, Config{Bucket: "snapshots"})
	require.NoError(t, err)
	require.NoError(t, store.Close(), "borrowed clients are not closed")

	_, err = store.PutObject(context.Background(), "", "text/csv", nil)
	require.Error(t, err)
}

func TestOpenRequiresBucket(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Config{}, nil)
	require.Error(t, err)
}

func TestURI(t *testing.T) {
	t.Parallel()

	require.Equal(t, "gs://bucket/graph/final/nodes.csv", URI("bucket", "graph/final/nodes.csv"))
	require.Equal(t, "gs://bucket/x.csv", URI("bucket", "/x.csv"))
}
