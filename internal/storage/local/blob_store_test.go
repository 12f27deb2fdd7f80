package local_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/youtube-graph-crawler/internal/storage/local"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("read failed") }

func TestNew(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		store, err := local.New(local.Config{BaseDir: t.TempDir()})
		require.NoError(t, err)
		assert.NotNil(t, store)
	})

	t.Run("CreatesMissingDir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "output")
		_, err := local.New(local.Config{BaseDir: dir})
		require.NoError(t, err)
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("MissingBaseDir", func(t *testing.T) {
		_, err := local.New(local.Config{})
		assert.Error(t, err)
	})

	t.Run("BaseDirIsNotADirectory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
		_, err := local.New(local.Config{BaseDir: file})
		assert.Error(t, err)
	})
}

func TestPutObject(t *testing.T) {
	dir := t.TempDir()
	store, err := local.New(local.Config{BaseDir: dir})
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("WritesFile", func(t *testing.T) {
		uri, err := store.PutObject(ctx, "graph/final/nodes.csv", "text/csv", strings.NewReader("channel_key\nA\n"))
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(uri, "file://"))
		assert.True(t, strings.HasSuffix(uri, filepath.Join("graph", "final", "nodes.csv")))

		got, err := os.ReadFile(strings.TrimPrefix(uri, "file://"))
		require.NoError(t, err)
		assert.Equal(t, "channel_key\nA\n", string(got))
	})

	t.Run("Overwrites", func(t *testing.T) {
		_, err := store.PutObject(ctx, "a.csv", "", strings.NewReader("one"))
		require.NoError(t, err)
		uri, err := store.PutObject(ctx, "a.csv", "", strings.NewReader("two"))
		require.NoError(t, err)
		got, err := os.ReadFile(strings.TrimPrefix(uri, "file://"))
		require.NoError(t, err)
		assert.Equal(t, "two", string(got))
	})

	t.Run("RejectsTraversal", func(t *testing.T) {
		_, err := store.PutObject(ctx, "../escape.csv", "", strings.NewReader("x"))
		assert.Error(t, err)
	})

	t.Run("EmptyPath", func(t *testing.T) {
		_, err := store.PutObject(ctx, " ", "", strings.NewReader("x"))
		assert.Error(t, err)
	})

	t.Run("ReaderFailureLeavesNoFile", func(t *testing.T) {
		_, err := store.PutObject(ctx, "broken.csv", "", failingReader{})
		require.Error(t, err)
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		for _, e := range entries {
			assert.NotContains(t, e.Name(), "broken")
		}
	})
}
