/*
Copyright 2025 ForgeCI Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package eventstream relays the in-process event bus (C12) to remote
// watchers over WebSocket, the server-side half of the teacher's
// pkg/cli/logs.go WebSocket-follow client (gorilla/websocket.Dialer
// there, gorilla/websocket.Upgrader here).
package eventstream

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/go-logr/logr"

	"github.com/org/forgeci/pkg/event"
)

// Subscriber is the half of event.Bus the relay needs: Subscribe and
// Unsubscribe. event.Bus satisfies it directly.
type Subscriber interface {
	Subscribe() event.Subscription
	Unsubscribe(event.Subscription)
}

// Handler upgrades HTTP connections to WebSocket and streams every
// subsequently-published event to the connection as a JSON frame, until
// the client disconnects or the request context is cancelled.
type Handler struct {
	Bus      Subscriber
	Logger   logr.Logger
	upgrader websocket.Upgrader
}

// NewHandler builds a relay over bus. Origin checking is left permissive
// (same posture as the teacher's CLI client, which dials any configured
// --api-server with no origin allowlist of its own) — callers embedding
// this behind a public listener should wrap it with their own origin
// check via a custom upgrader if needed.
func NewHandler(bus Subscriber, logger logr.Logger) *Handler {
	return &Handler{
		Bus:    bus,
		Logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

const pingInterval = 30 * time.Second

// ServeHTTP upgrades r to a WebSocket connection and relays events for
// its lifetime. Implements http.Handler so it can be registered directly
// on a ServeMux, matching the teacher's handlers.*Handler.Handle* shape.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Error(err, "event stream upgrade failed")
		return
	}
	defer conn.Close()

	sub := h.Bus.Subscribe()
	defer h.Bus.Unsubscribe(sub)

	// Drain and discard anything the client sends (pings, close frames);
	// ReadMessage also surfaces client-initiated close so the write loop
	// can exit promptly instead of blocking on a dead connection.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case evt, ok := <-sub.Events:
			if !ok {
				return
			}
			payload, err := json.Marshal(evt)
			if err != nil {
				h.Logger.Error(err, "failed to marshal event for stream", "kind", evt.Kind)
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}
