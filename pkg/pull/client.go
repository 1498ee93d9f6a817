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

// Package pull queries the monitoring REST API for telemetry snapshots.
package pull

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/structhealth/spanwatch/pkg/logger"
	"github.com/structhealth/spanwatch/pkg/models"
)

var errUnexpectedStatusCode = errors.New("unexpected status code")

const defaultTimeout = 10 * time.Second

// Client fetches the "latest", "history", and time-series views from the
// upstream API and remaps them into telemetry records.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     logger.Logger
}

func NewClient(baseURL, apiKey string, log logger.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: log,
	}
}

// Latest returns one record per device with a genuinely recent reading; the
// result may omit devices that went quiet, or be empty.
func (c *Client) Latest(ctx context.Context, assetID string) ([]models.DeviceTelemetry, error) {
	var entries []latestEntry

	endpoint := fmt.Sprintf("%s/assets/%s/devices/latest", c.baseURL, url.PathEscape(assetID))
	if err := c.getJSON(ctx, endpoint, &entries); err != nil {
		return nil, err
	}

	records := make([]models.DeviceTelemetry, 0, len(entries))

	for i := range entries {
		entry := &entries[i]
		if entry.MostRecentReading == nil {
			continue
		}

		records = append(records, entry.MostRecentReading.telemetry(entry.DeviceID, assetID))
	}

	return records, nil
}

// History returns every device known for the asset with its last reading,
// however old.
func (c *Client) History(ctx context.Context, assetID string, limit int) ([]models.DeviceTelemetry, error) {
	var entries []historyEntry

	endpoint := fmt.Sprintf("%s/assets/%s/devices/history", c.baseURL, url.PathEscape(assetID))
	if limit > 0 {
		endpoint += "?limit=" + strconv.Itoa(limit)
	}

	if err := c.getJSON(ctx, endpoint, &entries); err != nil {
		return nil, err
	}

	records := make([]models.DeviceTelemetry, 0, len(entries))
	for i := range entries {
		records = append(records, entries[i].telemetry(assetID))
	}

	return records, nil
}

// Series returns expanded charting samples for the asset.
func (c *Client) Series(ctx context.Context, assetID string, limit int) ([]models.SeriesPoint, error) {
	var entries []seriesEntry

	endpoint := fmt.Sprintf("%s/assets/%s/telemetry/series", c.baseURL, url.PathEscape(assetID))
	if limit > 0 {
		endpoint += "?limit=" + strconv.Itoa(limit)
	}

	if err := c.getJSON(ctx, endpoint, &entries); err != nil {
		return nil, err
	}

	points := make([]models.SeriesPoint, 0, len(entries))
	for i := range entries {
		points = append(points, entries[i].point(assetID))
	}

	return points, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return err
	}

	req.Header.Set("Accept", "application/json")

	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer c.closeResponse(resp)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", errUnexpectedStatusCode, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) closeResponse(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Failed to close response body")
	}
}
