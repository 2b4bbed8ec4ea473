package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePayloadObjectForm(t *testing.T) {
	var req JoinRequest
	err := DecodePayload(json.RawMessage(`{"userId":"u1"}`), &req)
	require.NoError(t, err)
	assert.Equal(t, "u1", req.UserID)
}

func TestDecodePayloadDoubleEncoded(t *testing.T) {
	var req JoinRequest
	err := DecodePayload(json.RawMessage(`"{\"userId\":\"u1\"}"`), &req)
	require.NoError(t, err)
	assert.Equal(t, "u1", req.UserID)
}

func TestDecodePayloadErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"garbage", `{not json`},
		{"string containing garbage", `"{not json"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req JoinRequest
			err := DecodePayload(json.RawMessage(tt.raw), &req)
			assert.Error(t, err)
		})
	}
}

func TestLocationUpdateDecoding(t *testing.T) {
	var upd LocationUpdate
	err := DecodePayload(
		json.RawMessage(`{"userId":"u2","lat":"27.1","long":"76.1","speed":40,"type":"car"}`),
		&upd,
	)
	require.NoError(t, err)
	assert.Equal(t, "u2", upd.UserID)
	assert.Equal(t, "27.1", upd.Lat.String())
	assert.Equal(t, "76.1", upd.Long.String())
	assert.Equal(t, Speed(40), upd.Speed)
	assert.Equal(t, "car", upd.Type)
}

func TestScalarAcceptsNumbers(t *testing.T) {
	var upd LocationUpdate
	err := DecodePayload(
		json.RawMessage(`{"userId":"u2","lat":27.1,"long":76.1,"speed":"55.5"}`),
		&upd,
	)
	require.NoError(t, err)
	assert.Equal(t, "27.1", upd.Lat.String())
	assert.Equal(t, Speed(55.5), upd.Speed)
}

func TestCoordinatesGeoJSONOrder(t *testing.T) {
	upd := LocationUpdate{Lat: "27.1", Long: "76.1"}
	coords, err := upd.Coordinates()
	require.NoError(t, err)
	// [longitude, latitude]
	assert.Equal(t, [2]float64{76.1, 27.1}, coords)
}

func TestCoordinatesInvalid(t *testing.T) {
	upd := LocationUpdate{Lat: "not-a-number", Long: "76.1"}
	_, err := upd.Coordinates()
	assert.Error(t, err)

	upd = LocationUpdate{Lat: "27.1", Long: ""}
	_, err = upd.Coordinates()
	assert.Error(t, err)
}
