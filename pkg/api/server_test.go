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
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/structhealth/spanwatch/pkg/logger"
	"github.com/structhealth/spanwatch/pkg/models"
	"github.com/structhealth/spanwatch/pkg/telemetry"
)

type fakeEngine struct {
	snapshot telemetry.Snapshot
	series   []models.SeriesPoint
	observed []string
}

func (f *fakeEngine) Observe(assetID string) {
	f.observed = append(f.observed, assetID)
}

func (f *fakeEngine) Snapshot() telemetry.Snapshot {
	return f.snapshot
}

func (f *fakeEngine) Series() []models.SeriesPoint {
	return f.series
}

func newTestServer(engine *fakeEngine) *Server {
	return NewServer(engine, logger.NewTestLogger())
}

func TestStatusEndpoint(t *testing.T) {
	freq := 3.5
	engine := &fakeEngine{
		snapshot: telemetry.Snapshot{
			AssetID:     "bridge-7",
			State:       telemetry.StateJoined,
			Connected:   true,
			LastUpdated: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			Devices: []models.DeviceTelemetry{
				{DeviceID: "S1", Mode: models.ModeFrequency, Frequency: &freq},
			},
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/status", http.NoBody)

	newTestServer(engine).Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "bridge-7", resp.AssetID)
	assert.Equal(t, "joined", resp.State)
	assert.True(t, resp.Connected)
	require.NotNil(t, resp.LastUpdated)
}

func TestTelemetryEndpoint(t *testing.T) {
	engine := &fakeEngine{
		snapshot: telemetry.Snapshot{
			AssetID:     "bridge-7",
			IsLoading:   true,
			IsFromCache: true,
			Devices:     []models.DeviceTelemetry{{DeviceID: "S1"}},
			HistoryErr:  errors.New("history down"),
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/assets/bridge-7/telemetry", http.NoBody)

	newTestServer(engine).Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp telemetryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.True(t, resp.IsLoading)
	assert.True(t, resp.IsFromCache)
	require.Len(t, resp.Devices, 1)
	assert.Equal(t, "history down", resp.Errors["history"])
}

func TestTelemetryUnobservedAssetIs404(t *testing.T) {
	engine := &fakeEngine{
		snapshot: telemetry.Snapshot{AssetID: "bridge-7"},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/assets/bridge-9/telemetry", http.NoBody)

	newTestServer(engine).Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSeriesEndpoint(t *testing.T) {
	engine := &fakeEngine{
		snapshot: telemetry.Snapshot{AssetID: "bridge-7"},
		series: []models.SeriesPoint{
			{DeviceID: "S1", Type: models.ModeFrequency, Value: 3.5},
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/assets/bridge-7/series", http.NoBody)

	newTestServer(engine).Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp seriesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Points, 1)
	assert.InDelta(t, 3.5, resp.Points[0].Value, 0.0001)
}

func TestObserveEndpoints(t *testing.T) {
	engine := &fakeEngine{}
	server := newTestServer(engine)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/assets/bridge-7/observe", http.NoBody)
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/api/observe", http.NoBody)
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"bridge-7", ""}, engine.observed)
}

func TestCORSPreflight(t *testing.T) {
	engine := &fakeEngine{}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/status", http.NoBody)

	newTestServer(engine).Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
