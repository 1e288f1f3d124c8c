package discover

import (
	"context"
	"time"

	"github.com/heartmatch/core/internal/app"
	"github.com/heartmatch/core/internal/db"
	"github.com/heartmatch/core/internal/repository"
)

const (
	defaultLimit = 10
	maxLimit     = 50
)

// Service produces the deduplicated candidate stream for swiping.
type Service struct {
	appCtx      *app.AppContext
	profileRepo *repository.ProfileRepository
}

// NewService creates the discovery service with dependencies from AppContext.
func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:      appCtx,
		profileRepo: repository.NewProfileRepository(appCtx.DB),
	}
}

// Recommend returns up to limit active candidate profiles for the actor.
//
// Behavior:
//   - The exclusion set (self plus every previously judged target) is
//     recomputed per request so new decisions take effect immediately; an
//     unresolvable actor aborts the whole request.
//   - Filters are conjunctive; absent filters impose no constraint; age
//     bounds are evaluated against the request time.
//   - A contradictory age range (min > max) returns an empty list, as does an
//     exhausted candidate pool: "no more candidates" is an empty result, not
//     an error.
func (s *Service) Recommend(
	ctx context.Context,
	actorID uint64,
	filters repository.Filters,
	limit int,
) ([]db.Profile, error) {
	log := s.appCtx.Logger
	log.Debug("Recommend called", "actor", actorID, "filters", filters, "limit", limit)

	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	if filters.Contradictory() {
		// user-authored ranges may be invalid; not worth an error
		return []db.Profile{}, nil
	}

	excluded, err := s.profileRepo.BuildExclusionSet(ctx, actorID)
	if err != nil {
		log.Error("BuildExclusionSet failed", "actor", actorID, "err", err)
		return nil, err
	}

	candidates, err := s.profileRepo.FindCandidates(ctx, excluded, filters, limit, time.Now().UTC())
	if err != nil {
		log.Error("FindCandidates failed", "err", err)
		return nil, err
	}
	if candidates == nil {
		candidates = []db.Profile{}
	}

	log.Debug("Recommend result", "actor", actorID, "count", len(candidates))
	return candidates, nil
}
