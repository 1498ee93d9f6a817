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
	"sort"

	"github.com/structhealth/spanwatch/pkg/models"
)

// DefaultSeriesCapacity is the hard cap on the chart series. It is a point
// count, not a time window, and is shared across all of an asset's devices.
const DefaultSeriesCapacity = 200

type seriesKey struct {
	deviceID  string
	timestamp int64
}

// BuildSeries combines the pulled historical samples with accumulated live
// points into the bounded chart series. Points are deduplicated on
// (DeviceID, Timestamp) with historical points winning, sorted ascending by
// timestamp, then truncated to the most recent capacity points.
func BuildSeries(historical, live []models.SeriesPoint, capacity int) []models.SeriesPoint {
	if capacity <= 0 {
		capacity = DefaultSeriesCapacity
	}

	seen := make(map[seriesKey]struct{}, len(historical)+len(live))
	out := make([]models.SeriesPoint, 0, len(historical)+len(live))

	for _, points := range [][]models.SeriesPoint{historical, live} {
		for i := range points {
			key := seriesKey{
				deviceID:  points[i].DeviceID,
				timestamp: points[i].Timestamp.UnixNano(),
			}

			if _, dup := seen[key]; dup {
				continue
			}

			seen[key] = struct{}{}
			out = append(out, points[i])
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})

	if len(out) > capacity {
		out = out[len(out)-capacity:]
	}

	return out
}
