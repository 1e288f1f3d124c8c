package decide

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/heartmatch/core/internal/app"
	"github.com/heartmatch/core/internal/apperr"
	"github.com/heartmatch/core/internal/db"
	"github.com/heartmatch/core/internal/server"
)

// Registrar ties the decision service into the HTTP router
type Registrar struct {
	appCtx *app.AppContext
}

// NewRegistrar creates a new Registrar for the decision service
func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

// Register attaches the decision routes to the router
func (reg *Registrar) Register(r chi.Router) {
	svc := NewService(reg.appCtx)
	r.Post("/decisions", svc.handleRecordDecision)
	r.Get("/liked-you", svc.handleListLikedYou)
	r.Get("/liked-you/new", svc.handleListNewLikedYou)
	r.Get("/liked-you/count", svc.handleCountLikedYou)
}

type decisionRequest struct {
	TargetID uint64          `json:"target_id"`
	Kind     db.DecisionKind `json:"kind"`
}

func (s *Service) handleRecordDecision(w http.ResponseWriter, r *http.Request) {
	actorID, err := server.ActorFrom(r.Context())
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}

	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteJSON(w, apperr.Invalid("malformed request body"))
		return
	}

	result, err := s.RecordDecision(r.Context(), actorID, req.TargetID, req.Kind)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}

	server.RespondJSON(w, http.StatusOK, result)
}

func (s *Service) handleListLikedYou(w http.ResponseWriter, r *http.Request) {
	actorID, err := server.ActorFrom(r.Context())
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}

	page, err := s.ListLikedYou(r.Context(), actorID, paginationToken(r))
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	server.RespondJSON(w, http.StatusOK, page)
}

func (s *Service) handleListNewLikedYou(w http.ResponseWriter, r *http.Request) {
	actorID, err := server.ActorFrom(r.Context())
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}

	page, err := s.ListNewLikedYou(r.Context(), actorID, paginationToken(r))
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	server.RespondJSON(w, http.StatusOK, page)
}

func (s *Service) handleCountLikedYou(w http.ResponseWriter, r *http.Request) {
	actorID, err := server.ActorFrom(r.Context())
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}

	count, err := s.CountLikedYou(r.Context(), actorID)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	server.RespondJSON(w, http.StatusOK, map[string]uint64{"count": count})
}

func paginationToken(r *http.Request) *string {
	if token := r.URL.Query().Get("pagination_token"); token != "" {
		return &token
	}
	return nil
}
