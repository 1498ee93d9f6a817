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

// Package cache persists last-known-good telemetry snapshots per asset.
package cache

import (
	"context"
	"encoding/json"

	"github.com/structhealth/spanwatch/pkg/kv"
	"github.com/structhealth/spanwatch/pkg/logger"
	"github.com/structhealth/spanwatch/pkg/models"
)

const keyPrefix = "telemetry/snapshot/"

// Snapshots stores the last successfully merged telemetry snapshot per asset.
// All store and codec failures degrade to "no cached data"; nothing errors
// out of this type.
type Snapshots struct {
	store  kv.KVStore
	logger logger.Logger
}

func NewSnapshots(store kv.KVStore, log logger.Logger) *Snapshots {
	return &Snapshots{
		store:  store,
		logger: log,
	}
}

// Get returns the cached snapshot for the asset, or found=false when no
// usable entry exists.
func (s *Snapshots) Get(ctx context.Context, assetID string) ([]models.DeviceTelemetry, bool) {
	value, found, err := s.store.Get(ctx, keyPrefix+assetID)
	if err != nil {
		s.logger.Debug().Err(err).Str("asset_id", assetID).Msg("Snapshot cache read failed")
		return nil, false
	}

	if !found || len(value) == 0 {
		return nil, false
	}

	var records []models.DeviceTelemetry

	if err := json.Unmarshal(value, &records); err != nil {
		// Corrupt entries read as empty; the next merge overwrites them.
		s.logger.Debug().Err(err).Str("asset_id", assetID).Msg("Snapshot cache entry unparseable")
		return nil, false
	}

	if len(records) == 0 {
		return nil, false
	}

	return records, true
}

// Put overwrites the asset's cached snapshot. Last write wins; failures are
// swallowed.
func (s *Snapshots) Put(ctx context.Context, assetID string, records []models.DeviceTelemetry) {
	if len(records) == 0 {
		return
	}

	value, err := json.Marshal(records)
	if err != nil {
		s.logger.Debug().Err(err).Str("asset_id", assetID).Msg("Snapshot cache encode failed")
		return
	}

	if err := s.store.Put(ctx, keyPrefix+assetID, value, 0); err != nil {
		s.logger.Debug().Err(err).Str("asset_id", assetID).Msg("Snapshot cache write failed")
	}
}
