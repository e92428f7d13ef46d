package storage_test

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"illust_nest/internal/storage"
	filestorage "illust_nest/internal/storage/filestorage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupFileStorage(t *testing.T) *filestorage.LocalFileStorage {
	t.Helper()

	fs, err := filestorage.NewLocalFileStorage(t.TempDir())
	require.NoError(t, err)

	return fs
}

func TestLocalFileStorage_Save(t *testing.T) {
	fs := setupFileStorage(t)
	ctx := context.Background()

	t.Run("successful save", func(t *testing.T) {
		filePath, size, err := fs.Save(ctx, strings.NewReader("test content"), "subdir/test.txt")
		require.NoError(t, err)

		assert.Equal(t, filepath.Join("subdir", "test.txt"), filePath)
		assert.Equal(t, int64(12), size)

		data, err := os.ReadFile(fs.GetFullPath(filePath))
		require.NoError(t, err)
		assert.Equal(t, "test content", string(data))
	})

	t.Run("overwrite replaces content", func(t *testing.T) {
		_, _, err := fs.Save(ctx, strings.NewReader("second"), "subdir/test.txt")
		require.NoError(t, err)

		data, err := os.ReadFile(fs.GetFullPath("subdir/test.txt"))
		require.NoError(t, err)
		assert.Equal(t, "second", string(data))
	})

	t.Run("save with context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(ctx)
		cancel()

		_, _, err := fs.Save(ctx, strings.NewReader("x"), "cancelled.txt")
		assert.ErrorIs(t, err, context.Canceled)

		_, err = os.Stat(fs.GetFullPath("cancelled.txt"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("path escaping base dir", func(t *testing.T) {
		_, _, err := fs.Save(ctx, strings.NewReader("x"), "../outside.txt")
		assert.ErrorIs(t, err, storage.ErrInvalidPath)
	})

	t.Run("reader error leaves nothing behind", func(t *testing.T) {
		_, _, err := fs.Save(ctx, io.MultiReader(strings.NewReader("part"), errReader{}), "broken.txt")
		assert.Error(t, err)

		_, statErr := os.Stat(fs.GetFullPath("broken.txt"))
		assert.True(t, os.IsNotExist(statErr))
	})
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, fmt.Errorf("disk on fire") }

func TestLocalFileStorage_OpenDelete(t *testing.T) {
	fs := setupFileStorage(t)
	ctx := context.Background()

	filePath, _, err := fs.Save(ctx, strings.NewReader("content"), "to_delete.txt")
	require.NoError(t, err)

	rc, err := fs.Open(filePath)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "content", string(data))

	require.NoError(t, fs.Delete(ctx, filePath))

	_, err = fs.Open(filePath)
	assert.ErrorIs(t, err, storage.ErrFileNotFound)
	assert.ErrorIs(t, fs.Delete(ctx, filePath), storage.ErrFileNotFound)
}

func TestLocalFileStorage_GetFullPath(t *testing.T) {
	fs := setupFileStorage(t)

	relPath := "test/file.txt"
	expected := filepath.Join(fs.GetBaseDir(), relPath)
	assert.Equal(t, expected, fs.GetFullPath(relPath))
}

func TestConcurrentSaves(t *testing.T) {
	fs := setupFileStorage(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := fs.Save(ctx, strings.NewReader("data"), fmt.Sprintf("concurrent/%d.txt", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	entries, err := os.ReadDir(fs.GetFullPath("concurrent"))
	require.NoError(t, err)
	assert.Len(t, entries, 10)
}
