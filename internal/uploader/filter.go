package uploader

import "github.com/ekoslightbucket/lightbucket-uploader/pkg/capture"

// Decision is the filter verdict for one capture event
type Decision int

const (
	// Admitted events are queued for upload
	Admitted Decision = iota
	// DroppedPreview events refer to the preview scratch file
	DroppedPreview
	// DroppedFrameType events are bias, dark or flat frames
	DroppedFrameType
	// DroppedClosed events arrived after shutdown started
	DroppedClosed
)

func (d Decision) String() string {
	switch d {
	case Admitted:
		return "admitted"
	case DroppedPreview:
		return "dropped_preview"
	case DroppedFrameType:
		return "dropped_frame_type"
	case DroppedClosed:
		return "dropped_closed"
	default:
		return "unknown"
	}
}

// Classify decides whether ev should be uploaded. It does no I/O.
func Classify(ev capture.Event) Decision {
	if ev.Filename == capture.PreviewFilename {
		return DroppedPreview
	}
	if ev.Type != capture.FrameLight {
		return DroppedFrameType
	}
	return Admitted
}
