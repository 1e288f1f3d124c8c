package discover

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/heartmatch/core/internal/app"
	"github.com/heartmatch/core/internal/apperr"
	"github.com/heartmatch/core/internal/repository"
	"github.com/heartmatch/core/internal/server"
)

// Registrar ties the discovery service into the HTTP router
type Registrar struct {
	appCtx *app.AppContext
}

// NewRegistrar creates a new Registrar for the discovery service
func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

// Register attaches the discovery routes to the router
func (reg *Registrar) Register(r chi.Router) {
	svc := NewService(reg.appCtx)
	r.Get("/recommendations", svc.handleRecommend)
}

func (s *Service) handleRecommend(w http.ResponseWriter, r *http.Request) {
	actorID, err := server.ActorFrom(r.Context())
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}

	q := r.URL.Query()
	filters := repository.Filters{
		Gender:   q.Get("gender"),
		Location: q.Get("location"),
	}
	filters.AgeMin, _ = strconv.Atoi(q.Get("age_min"))
	filters.AgeMax, _ = strconv.Atoi(q.Get("age_max"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	candidates, err := s.Recommend(r.Context(), actorID, filters, limit)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}

	server.RespondJSON(w, http.StatusOK, map[string]any{"candidates": candidates})
}
