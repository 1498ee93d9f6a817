package models

import (
	"time"
)

// Stream event types as emitted by the socket server.
const (
	EventTypeAccel = "accel"
	EventTypeFreq  = "freq"
)

// StreamPayload carries the measurement portion of a StreamEvent.
type StreamPayload struct {
	Value    *float64  `json:"value,omitempty"`
	Peaks    []float64 `json:"peaks,omitempty"`
	Severity string    `json:"severity,omitempty"`
	Axis     string    `json:"axis,omitempty"`
}

// StreamEvent is a per-device update delivered over the push stream after
// joining an asset's channel.
type StreamEvent struct {
	Type      string        `json:"type"`
	AssetID   string        `json:"assetId"`
	DeviceID  string        `json:"deviceId"`
	Timestamp time.Time     `json:"timestamp"`
	Payload   StreamPayload `json:"payload"`
}

// Telemetry converts a stream event into a DeviceTelemetry record. The
// returned record follows the mode invariant: frequency events populate the
// frequency group, acceleration events populate the vector.
func (e *StreamEvent) Telemetry() DeviceTelemetry {
	t := DeviceTelemetry{
		DeviceID:  e.DeviceID,
		AssetID:   e.AssetID,
		Timestamp: e.Timestamp,
		Severity:  e.Payload.Severity,
	}

	switch e.Type {
	case EventTypeFreq:
		t.Mode = ModeFrequency

		if len(e.Payload.Peaks) > 0 {
			v := e.Payload.Peaks[0]
			t.Frequency = &v
		}

		if len(e.Payload.Peaks) > 1 {
			v := e.Payload.Peaks[1]
			t.Frequency2 = &v
		}
	case EventTypeAccel:
		t.Mode = ModeAcceleration

		if e.Payload.Value != nil {
			vec := &Vector3{}

			switch e.Payload.Axis {
			case "x":
				vec.X = *e.Payload.Value
			case "y":
				vec.Y = *e.Payload.Value
			default:
				vec.Z = *e.Payload.Value
			}

			t.Acceleration = vec
		}
	}

	return t
}

// SeriesPoint converts a stream event into a charting sample. Returns false
// when the event carries no usable numeric value.
func (e *StreamEvent) SeriesPoint() (SeriesPoint, bool) {
	p := SeriesPoint{
		DeviceID:  e.DeviceID,
		AssetID:   e.AssetID,
		Timestamp: e.Timestamp,
		Severity:  e.Payload.Severity,
	}

	switch e.Type {
	case EventTypeFreq:
		p.Type = ModeFrequency

		if len(e.Payload.Peaks) == 0 {
			return SeriesPoint{}, false
		}

		p.Value = e.Payload.Peaks[0]

		if len(e.Payload.Peaks) > 1 {
			v := e.Payload.Peaks[1]
			p.SecondaryValue = &v
		}
	case EventTypeAccel:
		p.Type = ModeAcceleration

		if e.Payload.Value == nil {
			return SeriesPoint{}, false
		}

		p.Value = *e.Payload.Value

		p.Axis = e.Payload.Axis
		if p.Axis == "" {
			p.Axis = DefaultAccelerationAxis
		}
	default:
		return SeriesPoint{}, false
	}

	return p, true
}
