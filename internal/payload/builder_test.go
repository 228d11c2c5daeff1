package payload

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekoslightbucket/lightbucket-uploader/internal/fits"
	"github.com/ekoslightbucket/lightbucket-uploader/pkg/lightbucket"
)

var fixedNow = time.Date(2026, 10, 18, 21, 30, 5, 0, time.Local)

func baseHeader() fits.Header {
	return fits.Header{
		"EXPTIME":  300.0,
		"XBINNING": 1,
		"YBINNING": 1,
	}
}

func TestBuild_MinimalHeader(t *testing.T) {
	doc, err := Build(Parts{Thumbnail: "abc"}, baseHeader(), fixedNow)
	require.NoError(t, err)

	assert.Equal(t, 300.0, doc.Image.Duration)
	assert.Equal(t, "1x1", doc.Image.Binning)
	assert.Equal(t, "abc", doc.Image.Thumbnail)
	assert.Equal(t, "2026-10-18 21:30:05", doc.Image.CapturedAt)
	assert.Empty(t, doc.Image.FilterName)
	assert.Nil(t, doc.Image.Gain)
	assert.Nil(t, doc.Image.Offset)
}

func TestBuild_OptionalImageFields(t *testing.T) {
	hdr := baseHeader()
	hdr["FILTER"] = "OIII"
	hdr["GAIN"] = 0
	hdr["ISOSPEED"] = 800
	hdr["OFFSET"] = 30
	hdr["XBINNING"] = 2
	hdr["YBINNING"] = 2
	hdr["DATE-OBS"] = "2024-02-11T22:15:04.123"

	doc, err := Build(Parts{}, hdr, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, "OIII", doc.Image.FilterName)
	require.NotNil(t, doc.Image.Gain)
	assert.Equal(t, 0.0, *doc.Image.Gain)
	assert.Equal(t, 30.0, *doc.Image.Offset)
	assert.Equal(t, "2x2", doc.Image.Binning)
	assert.Equal(t, "2024-02-11 22:15:04.123000", doc.Image.CapturedAt)
}

func TestBuild_GainFallsBackToISO(t *testing.T) {
	hdr := baseHeader()
	hdr["ISOSPEED"] = 800

	doc, err := Build(Parts{}, hdr, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 800.0, *doc.Image.Gain)
}

func TestBuild_DateForms(t *testing.T) {
	cases := map[string]string{
		"2024-02-11T22:15:04":       "2024-02-11 22:15:04",
		"2024-02-11T22:15:04+01:00": "2024-02-11 22:15:04+01:00",
		"2024-02-11T22:15:04Z":      "2024-02-11 22:15:04+00:00",
		"2024-02-11":                "2024-02-11 00:00:00",
	}
	for raw, want := range cases {
		hdr := baseHeader()
		hdr["DATE-OBS"] = raw
		doc, err := Build(Parts{}, hdr, fixedNow)
		require.NoError(t, err, raw)
		assert.Equal(t, want, doc.Image.CapturedAt, raw)
	}

	hdr := baseHeader()
	hdr["DATE-OBS"] = "last tuesday"
	_, err := Build(Parts{}, hdr, fixedNow)
	assert.Error(t, err)
}

func TestBuild_RequiredFields(t *testing.T) {
	for _, key := range []string{"EXPTIME", "XBINNING", "YBINNING"} {
		hdr := baseHeader()
		delete(hdr, key)
		_, err := Build(Parts{}, hdr, fixedNow)
		assert.ErrorIs(t, err, ErrMissingField, key)
		assert.Contains(t, err.Error(), key)
	}
}

func TestEncode_WireShape(t *testing.T) {
	hdr := baseHeader()
	parts := Parts{
		Target: lightbucket.TargetInfo{
			RA:  lightbucket.Float(83.82),
			Dec: lightbucket.Float(-5.39),
		},
		Statistics: lightbucket.StatisticsInfo{
			HFR:    -1,
			Stars:  0,
			Mean:   1234.5,
			Median: 1200,
		},
		Thumbnail: "/9j/4AAQ",
	}

	doc, err := Build(parts, hdr, fixedNow)
	require.NoError(t, err)
	data, err := Encode(doc)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Len(t, decoded, 3)
	assert.Equal(t, map[string]any{}, decoded["equipment"])
	assert.Equal(t, map[string]any{"ra": 83.82, "dec": -5.39}, decoded["target"])

	image := decoded["image"].(map[string]any)
	stats := image["statistics"].(map[string]any)
	assert.Equal(t, "NaN", stats["hfr"])
	assert.Equal(t, 0.0, stats["stars"])
	assert.Equal(t, "/9j/4AAQ", image["thumbnail"])
	assert.Equal(t, 300.0, image["duration"])
	assert.Equal(t, "1x1", image["binning"])
	assert.NotContains(t, image, "gain")
}

func TestEncode_NonFiniteStatistics(t *testing.T) {
	parts := Parts{
		Target: lightbucket.TargetInfo{RA: lightbucket.Float(1), Dec: lightbucket.Float(2)},
		Statistics: lightbucket.StatisticsInfo{
			HFR:    2.4,
			Stars:  17,
			Mean:   lightbucket.Number(math.NaN()),
			Median: lightbucket.Number(math.NaN()),
		},
	}

	doc, err := Build(parts, baseHeader(), fixedNow)
	require.NoError(t, err)
	data, err := Encode(doc)
	require.NoError(t, err)

	var decoded struct {
		Image struct {
			Statistics map[string]any `json:"statistics"`
		} `json:"image"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "NaN", decoded.Image.Statistics["mean"])
	assert.Equal(t, "NaN", decoded.Image.Statistics["median"])
	assert.Equal(t, 2.4, decoded.Image.Statistics["hfr"])
}
