package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	. "github.com/roelfdiedericks/ctxproxy/internal/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const trafficStreamInterval = 2 * time.Second

// handleTrafficStream upgrades to a websocket and pushes the current
// traffic stats on an interval, for live dashboards. This is an
// optional ops surface: clients that only want a snapshot should use
// GET /traffic/stats instead.
func (s *Server) handleTrafficStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		L_warn("http: traffic stream upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(trafficStreamInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := s.analyzer.GetStats()
			payload, err := json.Marshal(stats)
			if err != nil {
				L_error("http: failed to marshal traffic stats for stream", "error", err)
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}
