package capture

import (
	"fmt"
	"math"
)

// PreviewFilename is the path Ekos writes non-persisted preview exposures to.
// Captures reported with this filename are never uploaded.
const PreviewFilename = "/tmp/image.fits"

// FrameType is the Ekos frame type of a capture
type FrameType int

// FrameType constants (match the Ekos FRAME_* enumeration)
const (
	FrameLight FrameType = iota
	FrameBias
	FrameDark
	FrameFlat
)

// String returns the Ekos name of the frame type
func (t FrameType) String() string {
	switch t {
	case FrameLight:
		return "Light"
	case FrameBias:
		return "Bias"
	case FrameDark:
		return "Dark"
	case FrameFlat:
		return "Flat"
	default:
		return fmt.Sprintf("FrameType(%d)", int(t))
	}
}

// UnknownHFR is reported by Ekos when no half-flux radius could be measured
const UnknownHFR = -1

// Event describes one completed exposure as reported by the capture module
type Event struct {
	Filename  string    `json:"filename"`
	Type      FrameType `json:"type"`
	HFR       float64   `json:"hfr"`       // UnknownHFR when absent
	StarCount int       `json:"starCount"`
	Median    float64   `json:"median"`
}

// HasHFR reports whether the event carries a measured HFR
func (e Event) HasHFR() bool {
	return e.HFR != UnknownHFR && !math.IsNaN(e.HFR)
}
