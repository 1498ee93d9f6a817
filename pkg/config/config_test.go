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

package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "spanwatch.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadAndValidate(t *testing.T) {
	path := writeConfig(t, `{
		"listen_addr": ":8090",
		"api_base_url": "https://monitor.example.com/api",
		"socket_url": "wss://monitor.example.com/sock",
		"refresh_interval": "45s",
		"aggressive_interval": "1s",
		"aggressive_count": 5
	}`)

	var cfg ServiceConfig
	require.NoError(t, LoadAndValidate(path, &cfg))

	assert.Equal(t, ":8090", cfg.ListenAddr)
	assert.Equal(t, 45*time.Second, cfg.RefreshInterval.Std())
	assert.Equal(t, time.Second, cfg.AggressiveInterval.Std())
	assert.Equal(t, 5, cfg.AggressiveCount)
	assert.Equal(t, defaultBucket, cfg.Bucket)
}

func TestLoadAndValidateMissingFields(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{
			name:    "missing listen addr",
			content: `{"api_base_url": "http://x", "socket_url": "ws://y"}`,
			wantErr: errListenAddrRequired,
		},
		{
			name:    "missing api base url",
			content: `{"listen_addr": ":8090", "socket_url": "ws://y"}`,
			wantErr: errAPIBaseURLRequired,
		},
		{
			name:    "missing socket url",
			content: `{"listen_addr": ":8090", "api_base_url": "http://x"}`,
			wantErr: errSocketURLRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg ServiceConfig

			err := LoadAndValidate(writeConfig(t, tt.content), &cfg)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoadAndValidateRejectsNonPointer(t *testing.T) {
	var cfg ServiceConfig

	err := LoadAndValidate("ignored.json", cfg)
	assert.ErrorIs(t, err, errInvalidConfigPtr)
}

func TestLoadAndValidateMissingFile(t *testing.T) {
	var cfg ServiceConfig

	err := LoadAndValidate(filepath.Join(t.TempDir(), "absent.json"), &cfg)
	assert.Error(t, err)
}

func TestDurationUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{name: "string form", input: `"30s"`, want: 30 * time.Second},
		{name: "numeric nanoseconds", input: `1000000000`, want: time.Second},
		{name: "bad string", input: `"soon"`, wantErr: true},
		{name: "wrong type", input: `[1]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration

			err := json.Unmarshal([]byte(tt.input), &d)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Std())
		})
	}
}
