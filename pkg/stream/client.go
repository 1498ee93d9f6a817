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

// Package stream maintains the websocket connection to the telemetry socket
// server and delivers per-device events after joining an asset channel.
package stream

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/structhealth/spanwatch/pkg/logger"
	"github.com/structhealth/spanwatch/pkg/models"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
	eventBuffer    = 128
)

// Client owns a single websocket connection with automatic reconnect. It is
// constructed by the composition root and wired into the engine explicitly;
// there is no lazily-built shared connection.
type Client struct {
	url      string
	apiKey   string
	clientID string
	logger   logger.Logger
	dialer   *websocket.Dialer

	writeMu sync.Mutex
	conn    *websocket.Conn

	connected atomic.Bool
	events    chan models.StreamEvent

	hookMu    sync.Mutex
	onConnect func()

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewClient(wsURL, apiKey string, log logger.Logger) *Client {
	return &Client{
		url:      wsURL,
		apiKey:   apiKey,
		clientID: uuid.NewString(),
		logger:   log,
		dialer:   websocket.DefaultDialer,
		events:   make(chan models.StreamEvent, eventBuffer),
		done:     make(chan struct{}),
	}
}

// Connect starts the connection loop. It returns immediately; Connected
// flips once a dial succeeds.
func (c *Client) Connect(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(1)

	go func() {
		defer c.wg.Done()
		c.run(ctx)
	}()
}

// Close tears down the connection and stops the reconnect loop. The events
// channel is closed once the read loop has exited.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)

		if c.cancel != nil {
			c.cancel()
		}

		c.closeConn()
		c.wg.Wait()
		close(c.events)
	})

	return nil
}

// Connected reports whether the socket is currently established.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Events returns the inbound event channel. Events arriving while the
// buffer is full are dropped rather than stalling the read loop.
func (c *Client) Events() <-chan models.StreamEvent {
	return c.events
}

// SetOnConnect registers a hook invoked after every successful dial,
// including reconnects. The engine uses it to re-join the observed asset.
func (c *Client) SetOnConnect(fn func()) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()

	c.onConnect = fn
}

// Join notifies the server that this client observes the asset's channel.
// Fire-and-forget: a failed write surfaces only as a log line and the
// reconnect hook retries it.
func (c *Client) Join(assetID string) {
	c.sendControl(actionJoin, assetID)
}

// Leave notifies the server that this client stopped observing the asset.
func (c *Client) Leave(assetID string) {
	c.sendControl(actionLeave, assetID)
}

func (c *Client) sendControl(action, assetID string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.conn == nil {
		return
	}

	msg := controlMessage{
		Action:   action,
		AssetID:  assetID,
		ClientID: c.clientID,
	}

	if err := c.conn.WriteJSON(&msg); err != nil {
		c.logger.Warn().
			Err(err).
			Str("action", action).
			Str("asset_id", assetID).
			Msg("Failed to send channel control message")
	}
}

func (c *Client) run(ctx context.Context) {
	backoff := initialBackoff

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}

		if err := c.dial(ctx); err != nil {
			c.logger.Warn().
				Err(err).
				Str("url", c.url).
				Dur("retry_in", backoff).
				Msg("Socket dial failed")

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			case <-c.done:
				return
			}

			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}

			continue
		}

		backoff = initialBackoff

		c.connected.Store(true)
		c.logger.Info().Str("url", c.url).Msg("Socket connected")

		c.hookMu.Lock()
		hook := c.onConnect
		c.hookMu.Unlock()

		if hook != nil {
			hook()
		}

		c.readLoop(ctx)

		c.connected.Store(false)
		c.closeConn()
		c.logger.Info().Str("url", c.url).Msg("Socket disconnected")
	}
}

func (c *Client) dial(ctx context.Context) error {
	header := http.Header{}
	if c.apiKey != "" {
		header.Set("X-API-Key", c.apiKey)
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	if err != nil {
		return err
	}

	c.writeMu.Lock()
	c.conn = conn
	c.writeMu.Unlock()

	return nil
}

func (c *Client) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}

		var event models.StreamEvent

		if err := c.conn.ReadJSON(&event); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn().Err(err).Msg("Socket read failed")
			}

			return
		}

		select {
		case c.events <- event:
		default:
			c.logger.Warn().
				Str("asset_id", event.AssetID).
				Str("device_id", event.DeviceID).
				Msg("Event buffer full, dropping update")
		}
	}
}

func (c *Client) closeConn() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.conn == nil {
		return
	}

	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = c.conn.Close()
	c.conn = nil
}
