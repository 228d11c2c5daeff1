package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/tendant/simple-content/pkg/simplecontent"

	"github.com/ekoslightbucket/lightbucket-uploader/internal/preview"
)

var (
	archiveOwnerID  = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	archiveTenantID = uuid.MustParse("00000000-0000-0000-0000-000000000002")
)

// PreviewArchive keeps rendered previews in a simple-content service
type PreviewArchive struct {
	service simplecontent.Service
}

// NewPreviewArchive creates an archive backed by service
func NewPreviewArchive(service simplecontent.Service) *PreviewArchive {
	return &PreviewArchive{
		service: service,
	}
}

// Archive stores the JPEG preview of filename and returns its content ID
func (a *PreviewArchive) Archive(ctx context.Context, filename string, thumb *preview.Thumbnail) (string, error) {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	content, err := a.service.UploadContent(ctx, simplecontent.UploadContentRequest{
		OwnerID:      archiveOwnerID,
		TenantID:     archiveTenantID,
		Name:         filepath.Base(filename),
		DocumentType: "image/jpeg",
		Reader:       bytes.NewReader(thumb.JPEG),
		FileName:     base + "_preview.jpg",
		Tags: []string{
			"preview",
			"width:" + strconv.Itoa(thumb.Width),
			"height:" + strconv.Itoa(thumb.Height),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to archive preview: %w", err)
	}

	return content.ID.String(), nil
}

// GetReader returns the archived preview with the given content ID
func (a *PreviewArchive) GetReader(ctx context.Context, contentID string) (io.ReadCloser, error) {
	id, err := uuid.Parse(contentID)
	if err != nil {
		return nil, fmt.Errorf("invalid content ID: %w", err)
	}

	reader, err := a.service.DownloadContent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to download preview: %w", err)
	}

	return reader, nil
}

// Exists checks if a preview with the given content ID is archived
func (a *PreviewArchive) Exists(ctx context.Context, contentID string) (bool, error) {
	id, err := uuid.Parse(contentID)
	if err != nil {
		return false, fmt.Errorf("invalid content ID: %w", err)
	}

	if _, err := a.service.GetContent(ctx, id); err != nil {
		// simple-content does not export a not-found sentinel
		return false, nil
	}

	return true, nil
}
