package preview

import "errors"

var (
	// ErrUnsupportedPattern is returned for a BAYERPAT with no demosaicer
	ErrUnsupportedPattern = errors.New("unsupported Bayer pattern")

	// ErrEmptyImage is returned when there are no pixels to render
	ErrEmptyImage = errors.New("image has no pixels")
)
