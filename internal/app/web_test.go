// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/kart_gnss/internal/gps"
)

func (h *webHub) clientCount() int {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	return len(h.clients)
}

func TestWebHubAPIBeforeAndAfterFix(t *testing.T) {
	hub := newWebHub()
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/pvt")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	fix := gps.Fix{Latitude: 33.2131, Longitude: -87.545, Heading: 4500000, Valid: true}
	require.NoError(t, hub.Publish(fix))

	resp, err = http.Get(srv.URL + "/api/pvt")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var got gps.Fix
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, fix, got)
}

func TestWebHubIndexAndNotFound(t *testing.T) {
	srv := httptest.NewServer(newWebHub().Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	resp, err = http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebHubBroadcastsOverWebsocket(t *testing.T) {
	hub := newWebHub()
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.clientCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	fix := gps.Fix{Latitude: 1.5, Longitude: 2.5, Heading: 7, Satellites: 4}
	require.NoError(t, hub.Publish(fix))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got gps.Fix
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, fix, got)

	// client goes away and is forgotten
	conn.Close()
	require.Eventually(t, func() bool { return hub.clientCount() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestWebHubCloseDropsClients(t *testing.T) {
	hub := newWebHub()
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.clientCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, hub.Close())
	assert.Zero(t, hub.clientCount())
}

func TestWebHubServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- newWebHub().Serve(ctx, "127.0.0.1:0") }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
