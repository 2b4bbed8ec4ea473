package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
)

// Inbound event names. These are the wire-level identifiers clients send;
// renaming any of them breaks deployed mobile clients.
const (
	EventJoin           = "join"
	EventLocationUpdate = "getuserLocation"
	EventReportAccident = "reportAccident"
	EventReportSOS      = "reportSOS"
)

// Outbound event names.
const (
	EventRoomJoined     = "roomjoined"
	EventSendCheck      = "sendcheck"
	EventOverSpeed      = "overSpeed"
	EventAccidentReport = "accidentReport"
)

// Envelope is one websocket frame: an event name plus its payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

var ErrEmptyPayload = errors.New("empty payload")

// DecodePayload unmarshals an event payload into v. Clients historically
// double-encode: data arrives as a JSON string containing a JSON object.
// Both the string form and the plain object form are accepted.
func DecodePayload(raw json.RawMessage, v interface{}) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ErrEmptyPayload
	}
	if trimmed[0] == '"' {
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			return err
		}
		trimmed = []byte(inner)
	}
	return json.Unmarshal(trimmed, v)
}

// Scalar is a lat/long field that clients send either as a string ("27.1")
// or a bare number (27.1). The string form is preserved for display; Float
// gives the numeric value for the coordinates array.
type Scalar string

func (s *Scalar) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = Scalar(v)
		return nil
	}
	*s = Scalar(b)
	return nil
}

func (s Scalar) Float() (float64, error) {
	return strconv.ParseFloat(string(s), 64)
}

func (s Scalar) String() string { return string(s) }

// Speed tolerates both numeric and string-encoded speeds.
type Speed float64

func (sp *Speed) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*sp = Speed(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*sp = Speed(f)
	return nil
}
