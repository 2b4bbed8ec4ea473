package domain

import (
	"fmt"
	"time"
)

// Default speed-limit context, used when an update carries no lane/vehicle
// filter. Values must match the seeded speed_limits row.
const (
	DefaultLaneType    = "Expressway with Access Control"
	DefaultVehicleType = "M1 category vehicles"
)

// JoinRequest binds a connection to the room named after the user.
type JoinRequest struct {
	UserID string `json:"userId"`
}

// LocationUpdate is one telemetry sample. It is never persisted as-is: it
// mutates the user's stored position and may derive a ViolationRecord.
type LocationUpdate struct {
	UserID string `json:"userId"`
	Lat    Scalar `json:"lat"`
	Long   Scalar `json:"long"`
	Speed  Speed  `json:"speed"`
	Type   string `json:"type"`
}

// Coordinates returns the [longitude, latitude] pair (GeoJSON order).
func (u LocationUpdate) Coordinates() ([2]float64, error) {
	lat, err := u.Lat.Float()
	if err != nil {
		return [2]float64{}, fmt.Errorf("invalid lat %q: %w", u.Lat, err)
	}
	long, err := u.Long.Float()
	if err != nil {
		return [2]float64{}, fmt.Errorf("invalid long %q: %w", u.Long, err)
	}
	return [2]float64{long, lat}, nil
}

// SpeedLimitContext is the resolved limit plus the vehicle/lane attributes
// it applies to. Immutable snapshot, resolved once per update.
type SpeedLimitContext struct {
	SpeedLimitID int64
	VehicleType  string
	LaneType     string
	SpeedLimit   float64
}

// ViolationRecord is the durable snapshot of one observed over-speed event.
type ViolationRecord struct {
	ID           int64
	UserID       string
	Speed        float64
	VehicleType  string
	LaneType     string
	Coordinates  [2]float64
	Latitude     string
	Longitude    string
	SpeedLimit   float64
	SpeedLimitID int64
	CreatedAt    time.Time
}

// AccidentReport is the durable record of one reported accident. The JSON
// shape is what the accidentReport event carries back to the room, so the
// client can correlate its local report with the server-confirmed one.
type AccidentReport struct {
	ID          int64      `json:"id"`
	UserID      string     `json:"userId"`
	Speed       float64    `json:"speed"`
	VehicleType string     `json:"vehicleType"`
	LaneType    string     `json:"laneType,omitempty"`
	Coordinates [2]float64 `json:"coordinates"`
	Latitude    string     `json:"latitude"`
	Longitude   string     `json:"longitude"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Outbound payloads.

type RoomJoined struct {
	Message string `json:"message"`
	RoomID  string `json:"roomId"`
}

type SendCheck struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

type OverSpeedAlert struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

type AccidentAck struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    AccidentReport `json:"data"`
}
