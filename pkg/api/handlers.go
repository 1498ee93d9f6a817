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

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/structhealth/spanwatch/pkg/models"
	"github.com/structhealth/spanwatch/pkg/telemetry"
)

type statusResponse struct {
	AssetID     string     `json:"asset_id"`
	State       string     `json:"state"`
	Connected   bool       `json:"connected"`
	IsLoading   bool       `json:"is_loading"`
	IsFromCache bool       `json:"is_from_cache"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
}

type telemetryResponse struct {
	AssetID     string                   `json:"asset_id"`
	Devices     []models.DeviceTelemetry `json:"devices"`
	IsLoading   bool                     `json:"is_loading"`
	IsFromCache bool                     `json:"is_from_cache"`
	Connected   bool                     `json:"connected"`
	Errors      map[string]string        `json:"errors,omitempty"`
}

type seriesResponse struct {
	AssetID string               `json:"asset_id"`
	Points  []models.SeriesPoint `json:"points"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snapshot := s.engine.Snapshot()

	resp := statusResponse{
		AssetID:     snapshot.AssetID,
		State:       snapshot.State.String(),
		Connected:   snapshot.Connected,
		IsLoading:   snapshot.IsLoading,
		IsFromCache: snapshot.IsFromCache,
	}

	if !snapshot.LastUpdated.IsZero() {
		resp.LastUpdated = &snapshot.LastUpdated
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	assetID := mux.Vars(r)["id"]

	snapshot := s.engine.Snapshot()
	if snapshot.AssetID != assetID {
		writeError(w, "asset is not being observed", http.StatusNotFound)
		return
	}

	resp := telemetryResponse{
		AssetID:     snapshot.AssetID,
		Devices:     snapshot.Devices,
		IsLoading:   snapshot.IsLoading,
		IsFromCache: snapshot.IsFromCache,
		Connected:   snapshot.Connected,
		Errors:      errorMap(snapshot),
	}

	if resp.Devices == nil {
		resp.Devices = []models.DeviceTelemetry{}
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	assetID := mux.Vars(r)["id"]

	snapshot := s.engine.Snapshot()
	if snapshot.AssetID != assetID {
		writeError(w, "asset is not being observed", http.StatusNotFound)
		return
	}

	points := s.engine.Series()
	if points == nil {
		points = []models.SeriesPoint{}
	}

	s.writeJSON(w, http.StatusOK, seriesResponse{
		AssetID: assetID,
		Points:  points,
	})
}

func (s *Server) handleObserve(w http.ResponseWriter, r *http.Request) {
	assetID := mux.Vars(r)["id"]

	s.logger.Info().Str("asset_id", assetID).Msg("Observe request")
	s.engine.Observe(assetID)

	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleUnobserve(w http.ResponseWriter, _ *http.Request) {
	s.logger.Info().Msg("Unobserve request")
	s.engine.Observe("")

	w.WriteHeader(http.StatusAccepted)
}

func errorMap(snapshot telemetry.Snapshot) map[string]string {
	errs := make(map[string]string)

	if snapshot.HistoryErr != nil {
		errs["history"] = snapshot.HistoryErr.Error()
	}

	if snapshot.LatestErr != nil {
		errs["latest"] = snapshot.LatestErr.Error()
	}

	if snapshot.SeriesErr != nil {
		errs["series"] = snapshot.SeriesErr.Error()
	}

	if len(errs) == 0 {
		return nil
	}

	return errs
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
