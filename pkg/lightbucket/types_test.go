package lightbucket

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHFR_MissingIsNaNString(t *testing.T) {
	for _, h := range []HFR{-1, HFR(math.NaN())} {
		data, err := json.Marshal(h)
		require.NoError(t, err)
		assert.Equal(t, `"NaN"`, string(data))
	}

	data, err := json.Marshal(HFR(2.5))
	require.NoError(t, err)
	assert.Equal(t, `2.5`, string(data))
}

func TestNumber_NonFiniteValuesAreStrings(t *testing.T) {
	tests := []struct {
		in   Number
		want string
	}{
		{Number(math.NaN()), `"NaN"`},
		{Number(math.Inf(1)), `"Infinity"`},
		{Number(math.Inf(-1)), `"-Infinity"`},
		{Number(-1), `-1`},
		{Number(1043.25), `1043.25`},
	}
	for _, tt := range tests {
		data, err := json.Marshal(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, string(data))
	}
}

func TestStatisticsInfo_NaNMeanEncodes(t *testing.T) {
	data, err := json.Marshal(StatisticsInfo{HFR: 1.5, Stars: 3, Mean: Number(math.NaN()), Median: 900})
	require.NoError(t, err)
	assert.JSONEq(t, `{"hfr":1.5,"stars":3,"mean":"NaN","median":900}`, string(data))
}

func TestUploadDocument_EmptySectionsAreKept(t *testing.T) {
	data, err := json.Marshal(UploadDocument{})
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.JSONEq(t, `{}`, string(decoded["target"]))
	assert.JSONEq(t, `{}`, string(decoded["equipment"]))
	assert.Contains(t, decoded, "image")
}

func TestTargetInfo_ZeroCoordinatesAreSerialized(t *testing.T) {
	data, err := json.Marshal(TargetInfo{RA: Float(0), Dec: Float(0)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ra":0,"dec":0}`, string(data))
}
