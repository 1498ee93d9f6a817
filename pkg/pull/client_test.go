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
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/structhealth/spanwatch/pkg/logger"
	"github.com/structhealth/spanwatch/pkg/models"
)

func TestLatestRemapsReadings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/assets/bridge-7/devices/latest", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"deviceId":"S1","mostRecentReading":{
				"timestamp":"2025-06-01T12:00:00Z","operatingMode":"frequency",
				"severity":"ok","frequency":3.5,"frequency2":7.1}},
			{"deviceId":"S2","mostRecentReading":null}
		]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret", logger.NewTestLogger())

	records, err := client.Latest(context.Background(), "bridge-7")
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, "S1", records[0].DeviceID)
	assert.Equal(t, "bridge-7", records[0].AssetID)
	assert.Equal(t, models.ModeFrequency, records[0].Mode)
	require.NotNil(t, records[0].Frequency)
	assert.InDelta(t, 3.5, *records[0].Frequency, 0.0001)
	require.NotNil(t, records[0].Frequency2)
	assert.InDelta(t, 7.1, *records[0].Frequency2, 0.0001)
	assert.Nil(t, records[0].Acceleration)
}

func TestHistoryPrefersNewerReading(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/assets/bridge-7/devices/history", r.URL.Path)
		assert.Equal(t, "50", r.URL.Query().Get("limit"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"deviceId":"S1",
				"lastKnownFrequencyReading":{
					"timestamp":"2025-06-01T10:00:00Z","operatingMode":"frequency","frequency":3.2},
				"lastKnownAccelerationReading":{
					"timestamp":"2025-06-01T11:00:00Z","operatingMode":"acceleration",
					"acceleration":{"x":0.1,"y":0.2,"z":9.8}}},
			{"deviceId":"S3"}
		]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", logger.NewTestLogger())

	records, err := client.History(context.Background(), "bridge-7", 50)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// The acceleration reading is newer, so it wins for S1.
	assert.Equal(t, models.ModeAcceleration, records[0].Mode)
	require.NotNil(t, records[0].Acceleration)
	assert.InDelta(t, 9.8, records[0].Acceleration.Z, 0.0001)
	assert.Nil(t, records[0].Frequency)

	// A device with no readings at all still appears.
	assert.Equal(t, "S3", records[1].DeviceID)
	assert.True(t, records[1].Timestamp.IsZero())
}

func TestSeriesDefaultsAccelerationAxis(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/assets/bridge-7/telemetry/series", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"deviceId":"S2","timestamp":"2025-06-01T12:00:00Z","type":"acceleration","value":9.8},
			{"deviceId":"S1","timestamp":"2025-06-01T12:00:01Z","type":"frequency","value":3.5,"secondaryValue":7.1}
		]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", logger.NewTestLogger())

	points, err := client.Series(context.Background(), "bridge-7", 0)
	require.NoError(t, err)
	require.Len(t, points, 2)

	assert.Equal(t, models.DefaultAccelerationAxis, points[0].Axis)
	assert.Empty(t, points[1].Axis)
	require.NotNil(t, points[1].SecondaryValue)
	assert.InDelta(t, 7.1, *points[1].SecondaryValue, 0.0001)
}

func TestClientSurfacesUnexpectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", logger.NewTestLogger())

	_, err := client.Latest(context.Background(), "bridge-7")
	require.Error(t, err)
	assert.ErrorIs(t, err, errUnexpectedStatusCode)
}

func TestClientSurfacesMalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", logger.NewTestLogger())

	_, err := client.History(context.Background(), "bridge-7", 0)
	require.Error(t, err)
}

func TestClientHonorsContextCancellation(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewClient(server.URL, "", logger.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		<-started
		cancel()
	}()

	done := make(chan error, 1)
	go func() {
		_, err := client.Series(ctx, "bridge-7", 0)
		done <- err
	}()

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("series call did not return after cancellation")
	}
}
