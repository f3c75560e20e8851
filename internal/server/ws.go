package server

import (
	"log/slog"
	"net/http"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	json "github.com/goccy/go-json"
)

// handleWS upgrades to a WebSocket and forwards broker events as JSON text
// frames until either side goes away.
func (s *server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		slog.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	id, ch := s.broker.Subscribe()
	defer s.broker.Unsubscribe(id)
	slog.Debug("websocket client connected", "id", id, "clients", s.broker.ClientCount())

	// Client frames are only read to notice the close.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := wsutil.ReadClientData(conn); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(evt)
			if err != nil {
				slog.Warn("encode event", "error", err)
				continue
			}
			if err := wsutil.WriteServerText(conn, data); err != nil {
				slog.Debug("websocket write failed", "id", id, "error", err)
				return
			}
		}
	}
}
