package models

import (
	"time"
)

// OperatingMode determines which measurement fields of a DeviceTelemetry
// record are meaningful.
type OperatingMode string

const (
	ModeFrequency    OperatingMode = "frequency"
	ModeAcceleration OperatingMode = "acceleration"
)

// Vector3 is a three-axis acceleration sample.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// DeviceTelemetry is the reconciled reading for a single sensor on an asset.
// Exactly one of the frequency-field group or Acceleration is populated,
// selected by Mode.
type DeviceTelemetry struct {
	DeviceID     string        `json:"device_id"`
	AssetID      string        `json:"asset_id"`
	Timestamp    time.Time     `json:"timestamp"`
	Mode         OperatingMode `json:"operating_mode"`
	Severity     string        `json:"severity,omitempty"`
	Frequency    *float64      `json:"frequency,omitempty"`
	Frequency2   *float64      `json:"frequency2,omitempty"`
	Magnitude1   *float64      `json:"magnitude1,omitempty"`
	Magnitude2   *float64      `json:"magnitude2,omitempty"`
	Acceleration *Vector3      `json:"acceleration,omitempty"`
}

// SeriesPoint is a single charting sample. Points are deduplicated on
// (DeviceID, Timestamp).
type SeriesPoint struct {
	DeviceID       string        `json:"device_id"`
	AssetID        string        `json:"asset_id"`
	Timestamp      time.Time     `json:"timestamp"`
	Type           OperatingMode `json:"type"`
	Value          float64       `json:"value"`
	SecondaryValue *float64      `json:"secondary_value,omitempty"`
	Severity       string        `json:"severity,omitempty"`
	Axis           string        `json:"axis,omitempty"`
}

// DefaultAccelerationAxis is assumed when an acceleration point arrives
// without an explicit axis.
const DefaultAccelerationAxis = "z"
