package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesystemStorage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "lights"), 0o755))
	path := filepath.Join(dir, "lights", "m31_001.fits")
	require.NoError(t, os.WriteFile(path, []byte("SIMPLE"), 0o644))

	fs, err := NewFilesystemStorage(dir)
	require.NoError(t, err)
	ctx := context.Background()

	for _, key := range []string{"lights/m31_001.fits", path} {
		r, err := fs.GetReader(ctx, key)
		require.NoError(t, err, key)
		data, err := io.ReadAll(r)
		r.Close()
		require.NoError(t, err)
		assert.Equal(t, "SIMPLE", string(data))
	}

	_, err = fs.GetReader(ctx, "lights/missing.fits")
	assert.ErrorContains(t, err, "file not found")
}

func TestFilesystemStorage_RejectsTraversal(t *testing.T) {
	fs, err := NewFilesystemStorage(t.TempDir())
	require.NoError(t, err)

	_, err = fs.GetReader(context.Background(), "../../etc/passwd")
	assert.ErrorContains(t, err, "path traversal")

	_, err = fs.GetReader(context.Background(), "")
	assert.ErrorContains(t, err, "invalid key")
}
