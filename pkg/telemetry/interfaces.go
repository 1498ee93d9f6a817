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

//go:generate mockgen -destination=mock_telemetry.go -package=telemetry github.com/structhealth/spanwatch/pkg/telemetry Puller,Joiner,SnapshotCache

// Package telemetry reconciles pull snapshots, history, and live stream
// updates into one consistent per-device view per asset.
package telemetry

import (
	"context"
	"time"

	"github.com/structhealth/spanwatch/pkg/models"
)

// Puller issues the point-in-time queries against the upstream API.
type Puller interface {
	// Latest returns only devices with a genuinely recent value.
	Latest(ctx context.Context, assetID string) ([]models.DeviceTelemetry, error)

	// History returns every known device's last reading, regardless of age.
	History(ctx context.Context, assetID string, limit int) ([]models.DeviceTelemetry, error)

	// Series returns expanded charting samples.
	Series(ctx context.Context, assetID string, limit int) ([]models.SeriesPoint, error)
}

// Joiner is the engine's view of the push stream: fire-and-forget channel
// membership plus the connection flag.
type Joiner interface {
	Join(assetID string)
	Leave(assetID string)
	Connected() bool
}

// SnapshotCache persists last-known-good snapshots. Implementations never
// surface errors; a failed read is an absent entry.
type SnapshotCache interface {
	Get(ctx context.Context, assetID string) ([]models.DeviceTelemetry, bool)
	Put(ctx context.Context, assetID string, records []models.DeviceTelemetry)
}

// Clock abstracts time-related operations.
type Clock interface {
	Now() time.Time
	Ticker(d time.Duration) Ticker
}

// Ticker abstracts the ticker behavior.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}
