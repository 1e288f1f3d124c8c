package decide

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/heartmatch/core/internal/app"
	"github.com/heartmatch/core/internal/apperr"
	"github.com/heartmatch/core/internal/db"
	"github.com/heartmatch/core/internal/repository"
)

// Service implements the decision & match protocol plus the "liked you"
// queries. It contains the business logic on top of repository and cache
// layers.
type Service struct {
	appCtx       *app.AppContext
	decisionRepo *repository.DecisionRepository
	matchRepo    *repository.MatchRepository
	profileRepo  *repository.ProfileRepository
}

// NewService creates the decision service with dependencies from AppContext.
func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:       appCtx,
		decisionRepo: repository.NewDecisionRepository(appCtx.DB),
		matchRepo:    repository.NewMatchRepository(appCtx.DB),
		profileRepo:  repository.NewProfileRepository(appCtx.DB),
	}
}

// Result is what one RecordDecision call produced. MatchCreated is true on
// exactly one of the two calls that complete a reciprocal pair, so the caller
// can fire the "it's a match" notification exactly once.
type Result struct {
	Decision     *db.Decision `json:"decision"`
	Match        *db.Match    `json:"match,omitempty"`
	MatchCreated bool         `json:"match_created"`
}

// RecordDecision persists the actor's decision on the target and performs
// match detection.
//
// Behavior:
//   - Self-targeting is rejected.
//   - The decision is insert-once; a duplicate for the same pair is treated
//     as already-recorded intent, not an error (the stored decision is
//     returned with MatchCreated=false).
//   - For like/super-like, a reciprocal liking decision triggers match
//     creation for the canonical pair. The storage unique index arbitrates
//     concurrent reciprocal likes: the losing side observes the existing
//     match and reports MatchCreated=false.
//   - Transient storage failures are retried a bounded number of times.
func (s *Service) RecordDecision(
	ctx context.Context,
	actorID, targetID uint64,
	kind db.DecisionKind,
) (*Result, error) {
	log := s.appCtx.Logger
	log.Debug("RecordDecision called", "actor", actorID, "target", targetID, "kind", kind)

	if !kind.Valid() {
		return nil, apperr.Invalid("unknown decision kind %q", kind)
	}
	if actorID == targetID {
		return nil, apperr.Invalid("cannot decide on yourself")
	}
	if err := s.requireProfile(ctx, actorID, apperr.ErrAuthenticationRequired); err != nil {
		return nil, err
	}
	if err := s.requireProfile(ctx, targetID, apperr.ErrNotFound); err != nil {
		return nil, err
	}

	var decision *db.Decision
	err := s.withRetry(ctx, func() error {
		var err error
		decision, err = s.decisionRepo.CreateDecision(ctx, actorID, targetID, kind)
		return err
	})
	if errors.Is(err, apperr.ErrDuplicateDecision) {
		// benign: intent already recorded, nothing new to detect
		existing, gerr := s.decisionRepo.Get(ctx, actorID, targetID)
		if gerr != nil {
			return nil, gerr
		}
		log.Debug("duplicate decision ignored", "actor", actorID, "target", targetID)
		return &Result{Decision: existing, MatchCreated: false}, nil
	}
	if err != nil {
		log.Error("CreateDecision failed", "err", err)
		return nil, err
	}

	// update cached like count for the target
	if kind.Liked() {
		key := s.appCtx.RedisCache.KeyForLikeCount(targetID)
		_, _ = s.appCtx.RedisCache.Incr(ctx, key)
		_ = s.appCtx.RedisCache.Client.Expire(ctx, key, time.Hour).Err()
	}

	result := &Result{Decision: decision}
	if !kind.Liked() {
		return result, nil
	}

	reciprocal, err := s.decisionRepo.HasLiked(ctx, targetID, actorID)
	if err != nil {
		log.Error("reciprocal check failed", "err", err)
		return nil, err
	}
	if !reciprocal {
		return result, nil
	}

	err = s.withRetry(ctx, func() error {
		match, created, merr := s.matchRepo.CreateIfAbsent(ctx, actorID, targetID)
		if merr != nil {
			return merr
		}
		result.Match = match
		result.MatchCreated = created
		return nil
	})
	if err != nil {
		log.Error("match creation failed", "err", err)
		return nil, err
	}

	if result.MatchCreated {
		log.Info("match created",
			"match_id", result.Match.ID,
			"user_a", result.Match.UserAID,
			"user_b", result.Match.UserBID,
		)
	}
	return result, nil
}

// Liker is one entry of a "liked you" listing.
type Liker struct {
	ActorID       string `json:"actor_id"`
	UnixTimestamp uint64 `json:"unix_timestamp"`
}

// LikersPage is a cursor-paginated "liked you" result.
type LikersPage struct {
	Likers              []Liker `json:"likers"`
	NextPaginationToken *string `json:"next_pagination_token,omitempty"`
}

const likersPageSize = 5

// ListLikedYou returns all users who liked the given recipient.
//
// Excludes users the recipient explicitly passed; cursor-paginated.
func (s *Service) ListLikedYou(ctx context.Context, recipientID uint64, paginationToken *string) (*LikersPage, error) {
	s.appCtx.Logger.Debug("ListLikedYou called", "recipient", recipientID)

	decisions, nextToken, err := s.decisionRepo.GetLikers(ctx, recipientID, paginationToken, likersPageSize)
	if err != nil {
		s.appCtx.Logger.Error("GetLikers failed", "err", err)
		return nil, err
	}
	return likersPage(decisions, nextToken), nil
}

// ListNewLikedYou returns users who liked the recipient but have not been
// liked back; mutual likes and passed users are excluded.
func (s *Service) ListNewLikedYou(ctx context.Context, recipientID uint64, paginationToken *string) (*LikersPage, error) {
	s.appCtx.Logger.Debug("ListNewLikedYou called", "recipient", recipientID)

	decisions, nextToken, err := s.decisionRepo.GetNewLikers(ctx, recipientID, paginationToken, likersPageSize)
	if err != nil {
		return nil, err
	}
	return likersPage(decisions, nextToken), nil
}

// CountLikedYou returns how many users liked the recipient.
// Cache-first strategy:
//  1. Attempts to read from Redis (likes:count:userID).
//  2. On cache miss or parse error, falls back to DB via CountLikers.
//  3. On DB fetch, updates Redis with a 1h TTL.
func (s *Service) CountLikedYou(ctx context.Context, recipientID uint64) (uint64, error) {
	s.appCtx.Logger.Debug("CountLikedYou called", "recipient", recipientID)

	key := s.appCtx.RedisCache.KeyForLikeCount(recipientID)

	// try cache first
	if cached, _ := s.appCtx.RedisCache.Get(ctx, key); cached != "" {
		if n, err := strconv.ParseUint(cached, 10, 64); err == nil {
			// refresh TTL since this user is active
			_ = s.appCtx.RedisCache.Client.Expire(ctx, key, time.Hour).Err()
			return n, nil
		}
	}

	// fallback: DB
	count, err := s.decisionRepo.CountLikers(ctx, recipientID)
	if err != nil {
		return 0, err
	}

	// set + TTL refresh
	_ = s.appCtx.RedisCache.Set(ctx, key, strconv.FormatInt(count, 10), time.Hour)

	return uint64(count), nil
}

// --- helpers ---

func likersPage(decisions []db.Decision, nextToken *string) *LikersPage {
	page := &LikersPage{}
	for _, d := range decisions {
		page.Likers = append(page.Likers, Liker{
			ActorID:       strconv.FormatUint(d.ActorID, 10),
			UnixTimestamp: uint64(d.CreatedAt.UnixMilli()),
		})
	}
	page.NextPaginationToken = nextToken
	return page
}

func (s *Service) requireProfile(ctx context.Context, id uint64, missing error) error {
	_, err := s.profileRepo.GetProfile(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return missing
	}
	return err
}

const (
	retryAttempts = 3
	retryBackoff  = 50 * time.Millisecond
)

// withRetry runs fn, retrying transient failures with linear backoff. Domain
// errors and plain SQL errors are surfaced immediately.
func (s *Service) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		err = fn()
		if err == nil || !retryable(err) {
			return err
		}
		s.appCtx.Logger.Warn("transient failure, retrying", "attempt", attempt, "err", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * retryBackoff):
		}
	}
	return err
}

func retryable(err error) bool {
	if apperr.IsTransient(err) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
