// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/kart_gnss/internal/gps"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // kart network only
	},
}

const wsWriteWait = time.Second

// webHub keeps the latest fix for /api/pvt and pushes every fix to the
// websocket clients on /ws.
type webHub struct {
	mu      sync.RWMutex
	last    gps.Fix
	haveFix bool

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]struct{}
}

func newWebHub() *webHub {
	return &webHub{clients: make(map[*websocket.Conn]struct{})}
}

func (h *webHub) Name() string { return "web" }

func (h *webHub) Publish(f gps.Fix) error {
	h.mu.Lock()
	h.last = f
	h.haveFix = true
	h.mu.Unlock()

	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	for c := range h.clients {
		c.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := c.WriteJSON(f); err != nil {
			log.Debugf("web: dropping client %s: %v", c.RemoteAddr(), err)
			c.Close()
			delete(h.clients, c)
		}
	}
	return nil
}

func (h *webHub) Close() error {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	for c := range h.clients {
		c.Close()
		delete(h.clients, c)
	}
	return nil
}

// Handler routes /api/pvt, /ws and the index page.
func (h *webHub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/pvt", h.handlePVT)
	mux.HandleFunc("/ws", h.handleWS)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, indexHTML)
	})
	return mux
}

func (h *webHub) handlePVT(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.haveFix {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.last); err != nil {
		log.Warnf("web: json encode error: %v", err)
	}
}

func (h *webHub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("web: websocket upgrade error: %v", err)
		return
	}

	h.clientsMu.Lock()
	h.clients[conn] = struct{}{}
	h.clientsMu.Unlock()
	log.Debugf("web: client %s connected", conn.RemoteAddr())

	// Clients only listen; reading detects when they go away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debugf("web: websocket error: %v", err)
			}
			break
		}
	}

	h.clientsMu.Lock()
	if _, ok := h.clients[conn]; ok {
		conn.Close()
		delete(h.clients, conn)
	}
	h.clientsMu.Unlock()
}

// Serve listens on addr until ctx is done.
func (h *webHub) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: h.Handler()}
	errCh := make(chan error, 1)
	go func() {
		log.Infof("web: listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

const indexHTML = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Kart GNSS</title></head>
<body style="font-family: monospace">
<h2>Kart GNSS</h2>
<pre id="fix">waiting for fix...</pre>
<script>
const out = document.getElementById("fix");
const ws = new WebSocket("ws://" + location.host + "/ws");
ws.onmessage = (ev) => {
  const f = JSON.parse(ev.data);
  out.textContent =
    "Latitude:  " + f.lat.toFixed(7) + "\n" +
    "Longitude: " + f.lon.toFixed(7) + "\n" +
    "Heading:   " + (f.heading / 1e5).toFixed(1) + "\n" +
    "Sats:      " + f.sats + (f.valid ? "" : "  (no fix)");
};
ws.onclose = () => { out.textContent += "\n[disconnected]"; };
</script>
</body>
</html>
`
