/*
 * Copyright 2025 StructHealth Analytics.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package pull

import (
	"time"

	"github.com/structhealth/spanwatch/pkg/models"
)

// reading is the wire shape of a single measurement in the upstream API.
type reading struct {
	Timestamp    time.Time       `json:"timestamp"`
	Mode         string          `json:"operatingMode"`
	Severity     string          `json:"severity"`
	Frequency    *float64        `json:"frequency"`
	Frequency2   *float64        `json:"frequency2"`
	Magnitude1   *float64        `json:"magnitude1"`
	Magnitude2   *float64        `json:"magnitude2"`
	Acceleration *models.Vector3 `json:"acceleration"`
}

// historyEntry covers every device known for the asset; the readings may be
// arbitrarily old.
type historyEntry struct {
	DeviceID                     string   `json:"deviceId"`
	LastKnownFrequencyReading    *reading `json:"lastKnownFrequencyReading"`
	LastKnownAccelerationReading *reading `json:"lastKnownAccelerationReading"`
}

// latestEntry appears only for devices with a genuinely recent value.
type latestEntry struct {
	DeviceID          string   `json:"deviceId"`
	MostRecentReading *reading `json:"mostRecentReading"`
}

// seriesEntry is an already-expanded charting sample.
type seriesEntry struct {
	DeviceID       string    `json:"deviceId"`
	Timestamp      time.Time `json:"timestamp"`
	Type           string    `json:"type"`
	Value          float64   `json:"value"`
	SecondaryValue *float64  `json:"secondaryValue"`
	Severity       string    `json:"severity"`
	Axis           string    `json:"axis"`
}

func (r *reading) telemetry(deviceID, assetID string) models.DeviceTelemetry {
	t := models.DeviceTelemetry{
		DeviceID:  deviceID,
		AssetID:   assetID,
		Timestamp: r.Timestamp,
		Mode:      models.OperatingMode(r.Mode),
		Severity:  r.Severity,
	}

	switch t.Mode {
	case models.ModeAcceleration:
		t.Acceleration = r.Acceleration
	case models.ModeFrequency:
		t.Frequency = r.Frequency
		t.Frequency2 = r.Frequency2
		t.Magnitude1 = r.Magnitude1
		t.Magnitude2 = r.Magnitude2
	}

	return t
}

// telemetry picks the newer of the two last-known readings for a history
// entry. Entries with no reading at all still yield a record so the device
// stays visible.
func (h *historyEntry) telemetry(assetID string) models.DeviceTelemetry {
	freq := h.LastKnownFrequencyReading
	accel := h.LastKnownAccelerationReading

	switch {
	case freq == nil && accel == nil:
		return models.DeviceTelemetry{DeviceID: h.DeviceID, AssetID: assetID}
	case freq == nil:
		return accel.telemetry(h.DeviceID, assetID)
	case accel == nil:
		return freq.telemetry(h.DeviceID, assetID)
	case accel.Timestamp.After(freq.Timestamp):
		return accel.telemetry(h.DeviceID, assetID)
	default:
		return freq.telemetry(h.DeviceID, assetID)
	}
}

func (s *seriesEntry) point(assetID string) models.SeriesPoint {
	axis := s.Axis
	if axis == "" && models.OperatingMode(s.Type) == models.ModeAcceleration {
		axis = models.DefaultAccelerationAxis
	}

	return models.SeriesPoint{
		DeviceID:       s.DeviceID,
		AssetID:        assetID,
		Timestamp:      s.Timestamp,
		Type:           models.OperatingMode(s.Type),
		Value:          s.Value,
		SecondaryValue: s.SecondaryValue,
		Severity:       s.Severity,
		Axis:           axis,
	}
}
