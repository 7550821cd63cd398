//go:build !integration

package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapeo-verde/mapeo-verde-api/internal/geo"
)

func TestConvertPair_LatLngPassThrough(t *testing.T) {
	conv, err := convertPair("-102.29", "21.88", 0)
	require.NoError(t, err)
	assert.False(t, conv.WasConverted)
	assert.Equal(t, geo.TypeLatLng, conv.OriginalType)
	assert.InDelta(t, 21.88, conv.Lat, 1e-9)
	assert.InDelta(t, -102.29, conv.Lng, 1e-9)
}

func TestConvertPair_UTM(t *testing.T) {
	conv, err := convertPair("779000", "2422000", 0)
	require.NoError(t, err)
	assert.True(t, conv.WasConverted)
	assert.Equal(t, geo.TypeUTM, conv.OriginalType)
	assert.InDelta(t, 21.88, conv.Lat, 0.05)
	assert.InDelta(t, -102.29, conv.Lng, 0.05)
}

func TestConvertPair_ExplicitZone(t *testing.T) {
	conv, err := convertPair("500000", "0", 14)
	require.NoError(t, err)
	assert.True(t, conv.WasConverted)
	assert.InDelta(t, 0, conv.Lat, 1e-6)
	assert.InDelta(t, -99, conv.Lng, 1e-6)
}

func TestConvertPair_Errors(t *testing.T) {
	_, err := convertPair("abc", "1", 0)
	assert.Error(t, err)

	_, err = convertPair("1", "xyz", 0)
	assert.Error(t, err)

	_, err = convertPair("500000", "2400000", 61)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zone must be between 1 and 60")

	_, err = convertPair("NaN", "1", 0)
	assert.Error(t, err)

	_, err = convertPair("NaN", "2400000", 13)
	assert.Error(t, err)

	_, err = convertPair("750000", "Inf", 13)
	assert.Error(t, err)
}

func TestWriteConversion(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeConversion(&buf, &geo.Conversion{Lat: 21.5, Lng: -102.1, OriginalType: geo.TypeLatLng}))

	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, 21.5, out["lat"])
	assert.Equal(t, "latlng", out["originalType"])
	assert.Equal(t, false, out["wasConverted"])
}
