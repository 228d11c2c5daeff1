package storage

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-content/pkg/simplecontent/presets"

	"github.com/ekoslightbucket/lightbucket-uploader/internal/preview"
)

func TestPreviewArchive_RoundTrip(t *testing.T) {
	svc, cleanup, err := presets.NewDevelopment(presets.WithDevStorage(t.TempDir()))
	require.NoError(t, err)
	defer cleanup()

	archive := NewPreviewArchive(svc)
	ctx := context.Background()
	thumb := &preview.Thumbnail{Width: 300, Height: 200, JPEG: []byte{0xff, 0xd8, 0xff, 0xd9}}

	id, err := archive.Archive(ctx, "/home/astro/Pictures/M31/Light_M31_001.fits", thumb)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	ok, err := archive.Exists(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	r, err := archive.GetReader(ctx, id)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, thumb.JPEG, data)
}

func TestPreviewArchive_InvalidID(t *testing.T) {
	archive := NewPreviewArchive(nil)
	_, err := archive.GetReader(context.Background(), "not-a-uuid")
	assert.ErrorContains(t, err, "invalid content ID")

	_, err = archive.Exists(context.Background(), "not-a-uuid")
	assert.Error(t, err)
}
