package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sebas/callhub/internal/events"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Observers connect from the dashboard and the phone view, which are
	// served from other origins in development
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebSocket attaches an observer to an event room and streams events
// as JSON until the peer disconnects. ?call_id=X joins the call's room;
// ?room= names a room directly; the default is the general room.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	room := r.URL.Query().Get("room")
	if callID := r.URL.Query().Get("call_id"); callID != "" {
		room = events.CallRoom(callID)
	}
	if room == "" {
		room = events.RoomGeneral
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("[API] WebSocket upgrade failed", "error", err)
		return
	}

	sub := s.hub.Subscribe(room)
	slog.Info("[API] Observer joined", "room", room, "remote", conn.RemoteAddr().String())

	defer func() {
		sub.Close()
		conn.Close()
		slog.Info("[API] Observer left", "room", room, "remote", conn.RemoteAddr().String())
	}()

	// Reader goroutine: observers never send data, but reading is required
	// to notice the close handshake
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				slog.Debug("[API] Observer write failed", "room", room, "error", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
