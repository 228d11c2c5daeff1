// Package payload assembles and encodes the document sent to Lightbucket.
package payload

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ekoslightbucket/lightbucket-uploader/internal/fits"
	"github.com/ekoslightbucket/lightbucket-uploader/pkg/lightbucket"
)

// ErrMissingField is returned when a required header keyword is absent
var ErrMissingField = errors.New("missing required header keyword")

// Parts are the already extracted pieces of an upload
type Parts struct {
	Target     lightbucket.TargetInfo
	Equipment  lightbucket.EquipmentInfo
	Statistics lightbucket.StatisticsInfo
	Thumbnail  string
}

// Build assembles the upload document. now is used for captured_at when the
// header has no DATE-OBS.
func Build(parts Parts, hdr fits.Header, now time.Time) (*lightbucket.UploadDocument, error) {
	image := lightbucket.ImageMetadata{
		Statistics: parts.Statistics,
		Thumbnail:  parts.Thumbnail,
	}

	if filter, ok := hdr.String("FILTER"); ok && filter != "" {
		image.FilterName = filter
	}

	duration, ok, err := hdr.Float("EXPTIME")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: EXPTIME", ErrMissingField)
	}
	image.Duration = duration

	gainKey := "GAIN"
	if !hdr.Has(gainKey) {
		gainKey = "ISOSPEED"
	}
	if image.Gain, err = optional(hdr, gainKey); err != nil {
		return nil, err
	}
	if image.Offset, err = optional(hdr, "OFFSET"); err != nil {
		return nil, err
	}

	if image.Binning, err = binning(hdr); err != nil {
		return nil, err
	}
	if image.CapturedAt, err = capturedAt(hdr, now); err != nil {
		return nil, err
	}

	return &lightbucket.UploadDocument{
		Target:    parts.Target,
		Equipment: parts.Equipment,
		Image:     image,
	}, nil
}

// Encode serializes the document as JSON
func Encode(doc *lightbucket.UploadDocument) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal upload document: %w", err)
	}
	return data, nil
}

func optional(hdr fits.Header, key string) (*float64, error) {
	v, ok, err := hdr.Float(key)
	if err != nil || !ok {
		return nil, err
	}
	return lightbucket.Float(v), nil
}

func binning(hdr fits.Header) (string, error) {
	x, ok := hdr.Format("XBINNING")
	if !ok {
		return "", fmt.Errorf("%w: XBINNING", ErrMissingField)
	}
	y, ok := hdr.Format("YBINNING")
	if !ok {
		return "", fmt.Errorf("%w: YBINNING", ErrMissingField)
	}
	return x + "x" + y, nil
}

// dateLayouts are the DATE-OBS forms written by capture software
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func capturedAt(hdr fits.Header, now time.Time) (string, error) {
	raw, ok := hdr.String("DATE-OBS")
	if !ok || raw == "" {
		return formatTimestamp(now, false), nil
	}

	for i, layout := range dateLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return formatTimestamp(t, i == 0), nil
		}
	}
	return "", fmt.Errorf("unparseable DATE-OBS %q", raw)
}

// formatTimestamp renders "YYYY-MM-DD HH:MM:SS[.ffffff][+HH:MM]", the
// timestamp form the ingestion API has always received
func formatTimestamp(t time.Time, withZone bool) string {
	var b strings.Builder
	b.WriteString(t.Format("2006-01-02 15:04:05"))
	if t.Nanosecond()/1000 != 0 {
		b.WriteString(t.Format(".000000"))
	}
	if withZone {
		b.WriteString(t.Format("-07:00"))
	}
	return b.String()
}
