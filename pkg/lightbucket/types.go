package lightbucket

import (
	"encoding/json"
	"math"
)

// UploadDocument is the body of an image_capture_complete request.
// All three sections are always serialized, even when empty.
type UploadDocument struct {
	Target    TargetInfo    `json:"target"`
	Equipment EquipmentInfo `json:"equipment"`
	Image     ImageMetadata `json:"image"`
}

// TargetInfo describes what the telescope was pointed at
type TargetInfo struct {
	Name     string   `json:"name,omitempty"`
	RA       *float64 `json:"ra,omitempty"`
	Dec      *float64 `json:"dec,omitempty"`
	Rotation *float64 `json:"rotation,omitempty"`
}

// EquipmentInfo describes the optical train
type EquipmentInfo struct {
	CameraName    string   `json:"camera_name,omitempty"`
	TelescopeName string   `json:"telescope_name,omitempty"`
	FocalLength   *float64 `json:"focal_length,omitempty"`
	FocalRatio    *float64 `json:"focal_ratio,omitempty"`
	PixelSize     *float64 `json:"pixel_size,omitempty"`
	PixelScale    *float64 `json:"pixel_scale,omitempty"`
}

// StatisticsInfo carries the frame quality statistics
type StatisticsInfo struct {
	HFR    HFR    `json:"hfr"`
	Stars  int    `json:"stars"`
	Mean   Number `json:"mean"`
	Median Number `json:"median"`
}

// ImageMetadata describes the exposure itself
type ImageMetadata struct {
	Statistics StatisticsInfo `json:"statistics"`
	Thumbnail  string         `json:"thumbnail"`
	FilterName string         `json:"filter_name,omitempty"`
	Duration   float64        `json:"duration"`
	Gain       *float64       `json:"gain,omitempty"`
	Offset     *float64       `json:"offset,omitempty"`
	Binning    string         `json:"binning"`
	CapturedAt string         `json:"captured_at"`
}

// HFR is a half-flux radius. A missing measurement (-1 or NaN) is sent as
// the string "NaN", which is what the ingestion API expects.
type HFR float64

// Valid reports whether the HFR holds a measurement
func (h HFR) Valid() bool {
	return h != -1 && !math.IsNaN(float64(h))
}

// MarshalJSON implements json.Marshaler
func (h HFR) MarshalJSON() ([]byte, error) {
	if !h.Valid() {
		return []byte(`"NaN"`), nil
	}
	return json.Marshal(float64(h))
}

// Number is a statistic that may not be finite. Float frames mark blank
// pixels as NaN, so a mean over them is NaN too. NaN and the infinities are
// written as strings since JSON has no literal for them.
type Number float64

// MarshalJSON implements json.Marshaler
func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	switch {
	case math.IsNaN(f):
		return []byte(`"NaN"`), nil
	case math.IsInf(f, 1):
		return []byte(`"Infinity"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-Infinity"`), nil
	}
	return json.Marshal(f)
}

// Float returns a pointer to v, for the optional numeric fields
func Float(v float64) *float64 {
	return &v
}
