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

package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/structhealth/spanwatch/pkg/logger"
	"github.com/structhealth/spanwatch/pkg/models"
)

type testSocketServer struct {
	server   *httptest.Server
	upgrader websocket.Upgrader
	conns    chan *websocket.Conn
}

func newTestSocketServer(t *testing.T) *testSocketServer {
	t.Helper()

	s := &testSocketServer{
		conns: make(chan *websocket.Conn, 4),
	}

	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.conns <- conn
	}))

	t.Cleanup(s.server.Close)

	return s
}

func (s *testSocketServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http")
}

func (s *testSocketServer) accept(t *testing.T) *websocket.Conn {
	t.Helper()

	select {
	case conn := <-s.conns:
		return conn
	case <-time.After(5 * time.Second):
		t.Fatal("no websocket connection accepted")
		return nil
	}
}

func TestClientJoinLeaveAndEvents(t *testing.T) {
	server := newTestSocketServer(t)

	client := NewClient(server.wsURL(), "secret", logger.NewTestLogger())

	connectedCh := make(chan struct{}, 4)
	client.SetOnConnect(func() { connectedCh <- struct{}{} })

	client.Connect(context.Background())
	defer func() { _ = client.Close() }()

	conn := server.accept(t)

	select {
	case <-connectedCh:
	case <-time.After(5 * time.Second):
		t.Fatal("onConnect hook never fired")
	}

	assert.True(t, client.Connected())

	client.Join("bridge-7")

	var join controlMessage
	require.NoError(t, conn.ReadJSON(&join))
	assert.Equal(t, actionJoin, join.Action)
	assert.Equal(t, "bridge-7", join.AssetID)
	assert.NotEmpty(t, join.ClientID)

	value := 10.1
	require.NoError(t, conn.WriteJSON(models.StreamEvent{
		Type:      models.EventTypeAccel,
		AssetID:   "bridge-7",
		DeviceID:  "S2",
		Timestamp: time.Date(2025, 6, 1, 12, 0, 2, 0, time.UTC),
		Payload:   models.StreamPayload{Value: &value},
	}))

	select {
	case event := <-client.Events():
		assert.Equal(t, "S2", event.DeviceID)
		require.NotNil(t, event.Payload.Value)
		assert.InDelta(t, value, *event.Payload.Value, 0.0001)
	case <-time.After(5 * time.Second):
		t.Fatal("event never delivered")
	}

	client.Leave("bridge-7")

	var leave controlMessage
	require.NoError(t, conn.ReadJSON(&leave))
	assert.Equal(t, actionLeave, leave.Action)
	assert.Equal(t, "bridge-7", leave.AssetID)
}

func TestClientReconnectsAfterServerClose(t *testing.T) {
	server := newTestSocketServer(t)

	client := NewClient(server.wsURL(), "", logger.NewTestLogger())
	client.Connect(context.Background())
	defer func() { _ = client.Close() }()

	first := server.accept(t)

	require.Eventually(t, client.Connected, 5*time.Second, 10*time.Millisecond)

	_ = first.Close()

	require.Eventually(t, func() bool { return !client.Connected() }, 5*time.Second, 10*time.Millisecond)

	// The loop dials again; a second connection shows up and the flag
	// recovers without a new Connect call.
	server.accept(t)
	require.Eventually(t, client.Connected, 10*time.Second, 10*time.Millisecond)
}

func TestJoinWhileDisconnectedIsNoop(t *testing.T) {
	client := NewClient("ws://127.0.0.1:1/sock", "", logger.NewTestLogger())

	// Never connected: must not panic or block.
	client.Join("bridge-7")
	client.Leave("bridge-7")
}
