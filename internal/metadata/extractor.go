// Package metadata builds the target, equipment and statistics sections of
// an upload from a decoded capture.
package metadata

import (
	"github.com/ekoslightbucket/lightbucket-uploader/internal/fits"
	"github.com/ekoslightbucket/lightbucket-uploader/pkg/capture"
	"github.com/ekoslightbucket/lightbucket-uploader/pkg/lightbucket"
)

// Outcome tells the caller whether an upload should be built
type Outcome int

const (
	// Present means the header carries target coordinates
	Present Outcome = iota
	// SkipNoTarget means RA or DEC is missing; the capture is ignored
	SkipNoTarget
)

func (o Outcome) String() string {
	if o == SkipNoTarget {
		return "skip_no_target"
	}
	return "present"
}

// Result is the extractor output
type Result struct {
	Outcome    Outcome
	Target     lightbucket.TargetInfo
	Equipment  lightbucket.EquipmentInfo
	Statistics lightbucket.StatisticsInfo
}

// Extract reads the semantic records out of img. The mean is taken from the
// raw pixels, so it must be called before any transform touches them.
func Extract(img *fits.Image, ev capture.Event) (Result, error) {
	hdr := img.Header
	if !hdr.Has("RA") || !hdr.Has("DEC") {
		return Result{Outcome: SkipNoTarget}, nil
	}

	target, err := extractTarget(hdr)
	if err != nil {
		return Result{}, err
	}
	equipment, err := extractEquipment(hdr)
	if err != nil {
		return Result{}, err
	}

	hfr := lightbucket.HFR(ev.HFR)
	if !ev.HasHFR() {
		hfr = lightbucket.HFR(capture.UnknownHFR)
	}

	return Result{
		Outcome:   Present,
		Target:    target,
		Equipment: equipment,
		Statistics: lightbucket.StatisticsInfo{
			HFR:    hfr,
			Stars:  ev.StarCount,
			Mean:   lightbucket.Number(img.Mean()),
			Median: lightbucket.Number(ev.Median),
		},
	}, nil
}

func extractTarget(hdr fits.Header) (lightbucket.TargetInfo, error) {
	var target lightbucket.TargetInfo

	if name, ok := hdr.String("OBJECT"); ok && name != "" {
		target.Name = name
	}

	ra, _, err := hdr.Float("RA")
	if err != nil {
		return target, err
	}
	dec, _, err := hdr.Float("DEC")
	if err != nil {
		return target, err
	}
	target.RA = lightbucket.Float(ra)
	target.Dec = lightbucket.Float(dec)

	rotation, ok, err := hdr.Float("CROTA1")
	if err != nil {
		return target, err
	}
	if ok {
		target.Rotation = lightbucket.Float(rotation)
	}
	return target, nil
}

func extractEquipment(hdr fits.Header) (lightbucket.EquipmentInfo, error) {
	var eq lightbucket.EquipmentInfo

	if camera, ok := hdr.String("INSTRUME"); ok && camera != "" {
		eq.CameraName = camera
	}
	if telescope, ok := hdr.String("TELESCOP"); ok && telescope != "" {
		eq.TelescopeName = telescope
	}

	focalLength, err := nonZero(hdr, "FOCALLEN")
	if err != nil {
		return eq, err
	}
	if focalLength != nil {
		eq.FocalLength = focalLength
		aperture, err := nonZero(hdr, "APTDIA")
		if err != nil {
			return eq, err
		}
		if aperture != nil {
			eq.FocalRatio = lightbucket.Float(*focalLength / *aperture)
		}
	}

	if eq.PixelSize, err = nonZero(hdr, "PIXSIZE1"); err != nil {
		return eq, err
	}
	if eq.PixelScale, err = nonZero(hdr, "SCALE"); err != nil {
		return eq, err
	}
	return eq, nil
}

// nonZero returns the keyword value, or nil when it is absent or zero
func nonZero(hdr fits.Header, key string) (*float64, error) {
	v, ok, err := hdr.Float(key)
	if err != nil || !ok || v == 0 {
		return nil, err
	}
	return lightbucket.Float(v), nil
}
