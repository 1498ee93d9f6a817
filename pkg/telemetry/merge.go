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

package telemetry

import (
	"github.com/structhealth/spanwatch/pkg/models"
)

// Merge reconciles the three telemetry sources for an asset into the
// per-device current view. Precedence is fixed regardless of arrival order:
// history is the base (total device coverage), latest enriches it
// (freshness), and live stream records overlay last (responsiveness). When
// history is empty, latest becomes the base so devices are not lost before
// history ever loads. Live records for unknown devices are appended.
//
// The result is index-stable: base order first, then new devices in the
// order they first appeared.
func Merge(history, latest, live []models.DeviceTelemetry) []models.DeviceTelemetry {
	base := history
	if len(base) == 0 {
		base = latest
	}

	out := make([]models.DeviceTelemetry, 0, len(base))
	index := make(map[string]int, len(base))

	apply := func(records []models.DeviceTelemetry) {
		for i := range records {
			record := &records[i]
			if record.DeviceID == "" {
				continue
			}

			if at, ok := index[record.DeviceID]; ok {
				out[at] = overlay(out[at], *record)
				continue
			}

			index[record.DeviceID] = len(out)
			out = append(out, *record)
		}
	}

	apply(base)

	if len(history) > 0 {
		apply(latest)
	}

	apply(live)

	return out
}

// overlay applies a field-level shallow merge: fields the update supplies
// win, fields it omits keep the base value. A mode change clears the other
// mode's measurement group so a record never carries both.
func overlay(base, update models.DeviceTelemetry) models.DeviceTelemetry {
	record := base

	if update.DeviceID != "" {
		record.DeviceID = update.DeviceID
	}

	if update.AssetID != "" {
		record.AssetID = update.AssetID
	}

	if update.Mode != "" && update.Mode != record.Mode {
		record.Mode = update.Mode
		record.Frequency = nil
		record.Frequency2 = nil
		record.Magnitude1 = nil
		record.Magnitude2 = nil
		record.Acceleration = nil
	}

	if !update.Timestamp.IsZero() {
		record.Timestamp = update.Timestamp
	}

	if update.Severity != "" {
		record.Severity = update.Severity
	}

	if update.Frequency != nil {
		record.Frequency = update.Frequency
	}

	if update.Frequency2 != nil {
		record.Frequency2 = update.Frequency2
	}

	if update.Magnitude1 != nil {
		record.Magnitude1 = update.Magnitude1
	}

	if update.Magnitude2 != nil {
		record.Magnitude2 = update.Magnitude2
	}

	if update.Acceleration != nil {
		record.Acceleration = update.Acceleration
	}

	return record
}
