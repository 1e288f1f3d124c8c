package chat

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/heartmatch/core/internal/app"
	"github.com/heartmatch/core/internal/apperr"
	"github.com/heartmatch/core/internal/server"
)

// Registrar ties the chat service into the HTTP router
type Registrar struct {
	appCtx *app.AppContext
	hub    *Hub
}

// NewRegistrar creates a new Registrar for the chat service. The hub is
// shared with the server-wide Redis subscriber.
func NewRegistrar(appCtx *app.AppContext, hub *Hub) *Registrar {
	return &Registrar{appCtx: appCtx, hub: hub}
}

// Register attaches the chat routes to the router
func (reg *Registrar) Register(r chi.Router) {
	svc := NewService(reg.appCtx, reg.hub)
	r.Get("/matches", svc.handleListMatches)
	r.Delete("/matches/{matchID}", svc.handleUnmatch)
	r.Get("/matches/{matchID}/messages", svc.handleHistory)
	r.Post("/matches/{matchID}/messages", svc.handleSend)
	r.Get("/matches/{matchID}/ws", svc.handleWebSocket)
	r.Post("/messages/{messageID}/read", svc.handleMarkRead)
	r.Delete("/messages/{messageID}", svc.handleDeleteMessage)
}

type sendRequest struct {
	Body        string `json:"body"`
	ClientToken string `json:"client_token,omitempty"`
}

func (s *Service) handleSend(w http.ResponseWriter, r *http.Request) {
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

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteJSON(w, apperr.Invalid("malformed request body"))
		return
	}

	msg, err := s.Send(r.Context(), matchID, actorID, req.Body, req.ClientToken)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	server.RespondJSON(w, http.StatusCreated, msg)
}

func (s *Service) handleHistory(w http.ResponseWriter, r *http.Request) {
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

	messages, err := s.History(r.Context(), matchID, actorID)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	server.RespondJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (s *Service) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	actorID, err := server.ActorFrom(r.Context())
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	messageID, err := pathID(r, "messageID")
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}

	if err := s.MarkRead(r.Context(), messageID, actorID); err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	server.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	actorID, err := server.ActorFrom(r.Context())
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	messageID, err := pathID(r, "messageID")
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}

	if err := s.DeleteMessage(r.Context(), messageID, actorID); err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	server.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) handleListMatches(w http.ResponseWriter, r *http.Request) {
	actorID, err := server.ActorFrom(r.Context())
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}

	matches, err := s.ListMatches(r.Context(), actorID)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	server.RespondJSON(w, http.StatusOK, map[string]any{"matches": matches})
}

func (s *Service) handleUnmatch(w http.ResponseWriter, r *http.Request) {
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

	if err := s.Unmatch(r.Context(), matchID, actorID); err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	server.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func pathID(r *http.Request, name string) (uint64, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Invalid("%s must be a valid id", name)
	}
	return id, nil
}
