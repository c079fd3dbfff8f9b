package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	// Subscribe before the handshake so events fired right after the
	// client sees the connection event are not lost.
	ch := s.hub.Subscribe()
	defer s.hub.Unsubscribe(ch)

	connectionEvent := ConnectionEvent{
		Event:     newEvent("connection", time.Now().UTC()),
		Connected: true,
	}
	payload, err := json.Marshal(connectionEvent)
	if err == nil {
		_ = conn.WriteMessage(websocket.TextMessage, payload)
	}

	for msg := range ch {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}
