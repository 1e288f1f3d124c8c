package chat

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/heartmatch/core/internal/apperr"
	"github.com/heartmatch/core/internal/server"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS is enforced at the HTTP layer
		return true
	},
}

// handleWebSocket upgrades the request and pumps match events to the client
// until either side closes. Delivery is forward-only from the moment of
// subscription; clients recover gaps by reloading history after reconnect.
func (s *Service) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	actorID, err := server.ActorFrom(r.Context())
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	matchID, err := pathID(r, "matchID")
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}

	sub, err := s.Subscribe(r.Context(), matchID, actorID)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Cancel()
		s.appCtx.Logger.Error("websocket upgrade failed", "err", err)
		return
	}

	log := s.appCtx.Logger.With("match_id", matchID, "user_id", actorID)
	log.Debug("websocket subscriber connected")

	// reader: we never expect client frames, but reading is what detects the
	// peer closing; it also cancels the subscription on disconnect.
	go func() {
		defer sub.Cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// writer: drain subscription events into the socket
	for event := range sub.Events() {
		if err := conn.WriteJSON(event); err != nil {
			log.Debug("websocket write failed, dropping subscriber", "err", err)
			break
		}
	}

	sub.Cancel()
	_ = conn.Close()
	log.Debug("websocket subscriber disconnected")
}
