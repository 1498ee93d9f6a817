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
	"errors"

	"github.com/structhealth/spanwatch/pkg/logger"
)

var (
	errListenAddrRequired = errors.New("listen_addr is required")
	errAPIBaseURLRequired = errors.New("api_base_url is required")
	errSocketURLRequired  = errors.New("socket_url is required")
)

const defaultBucket = "spanwatch-snapshots"

// ServiceConfig is the top-level spanwatch configuration.
type ServiceConfig struct {
	ListenAddr string `json:"listen_addr"`

	// Upstream monitoring REST API.
	APIBaseURL string `json:"api_base_url"`
	APIKey     string `json:"api_key"`

	// Telemetry socket server.
	SocketURL string `json:"socket_url"`

	// Snapshot cache; empty NATSURL falls back to the in-process store.
	NATSURL string `json:"nats_url"`
	Bucket  string `json:"bucket"`

	// Reconciliation cadence.
	HistoryLimit       int      `json:"history_limit"`
	SeriesLimit        int      `json:"series_limit"`
	RefreshInterval    Duration `json:"refresh_interval"`
	AggressiveInterval Duration `json:"aggressive_interval"`
	AggressiveCount    int      `json:"aggressive_count"`

	// Asset observed at startup, if any.
	DefaultAsset string `json:"default_asset"`

	Logging *logger.Config `json:"logging"`
}

func (c *ServiceConfig) Validate() error {
	if c.ListenAddr == "" {
		return errListenAddrRequired
	}

	if c.APIBaseURL == "" {
		return errAPIBaseURLRequired
	}

	if c.SocketURL == "" {
		return errSocketURLRequired
	}

	if c.Bucket == "" {
		c.Bucket = defaultBucket
	}

	return nil
}
