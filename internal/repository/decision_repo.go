package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/heartmatch/core/internal/apperr"
	"github.com/heartmatch/core/internal/db"
	"github.com/heartmatch/core/internal/utils/pagination"
)

// DecisionRepository provides data access methods for the Decision model.
// It encapsulates all queries related to likes/passes between users.
type DecisionRepository struct {
	db *gorm.DB
}

// NewDecisionRepository creates a new repository bound to the given DB connection.
func NewDecisionRepository(database *gorm.DB) *DecisionRepository {
	return &DecisionRepository{db: database}
}

// CreateDecision inserts the decision actor -> target, insert-once.
//
// Behavior:
//   - If no row exists for (actor_id, target_id), the decision is persisted.
//   - If a row already exists, the composite PK rejects the insert and the
//     error is mapped to ErrDuplicateDecision. Decisions are immutable; a
//     super-like cannot upgrade a prior like.
//
// Example:
//
//	d, err := repo.CreateDecision(ctx, 1, 2, db.KindLike) // user 1 liked user 2
func (r *DecisionRepository) CreateDecision(
	ctx context.Context,
	actorID, targetID uint64,
	kind db.DecisionKind,
) (*db.Decision, error) {
	decision := db.Decision{
		ActorID:  actorID,
		TargetID: targetID,
		Kind:     kind,
	}
	err := r.db.WithContext(ctx).Create(&decision).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, fmt.Errorf("decision %d->%d: %w", actorID, targetID, apperr.ErrDuplicateDecision)
	}
	if err != nil {
		return nil, err
	}
	return &decision, nil
}

// Get loads the decision actor -> target, if any.
func (r *DecisionRepository) Get(ctx context.Context, actorID, targetID uint64) (*db.Decision, error) {
	var d db.Decision
	err := r.db.WithContext(ctx).
		Where("actor_id = ? AND target_id = ?", actorID, targetID).
		First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("decision %d->%d: %w", actorID, targetID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// HasLiked checks whether an actor has liked (or super-liked) a target.
//
// Used for the reciprocal check in the decision protocol: a match exists the
// moment both directions carry a liking decision.
func (r *DecisionRepository) HasLiked(
	ctx context.Context,
	actorID, targetID uint64,
) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Decision{}).
		Where("actor_id = ? AND target_id = ? AND kind IN ?",
			actorID, targetID, []db.DecisionKind{db.KindLike, db.KindSuperLike}).
		Count(&count).Error
	return count > 0, err
}

// GetLikers returns all users who liked the given target.
//
// Behavior:
//   - Only liking decisions (like/super_like) toward target_id are returned.
//   - Excludes users that the target explicitly passed.
//   - Ordered by created_at DESC, actor_id DESC.
//   - Supports cursor-based pagination via paginationToken.
//
// Example:
//
//	repo.GetLikers(ctx, 42, nil, 20) // first 20 people who liked user 42
func (r *DecisionRepository) GetLikers(
	ctx context.Context,
	targetID uint64,
	paginationToken *string,
	limit int,
) ([]db.Decision, *string, error) {
	var decisions []db.Decision

	// decode cursor if provided
	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).
		Table("decisions d").
		Where("d.target_id = ? AND d.kind IN ?",
			targetID, []db.DecisionKind{db.KindLike, db.KindSuperLike}).
		Where(`
			NOT EXISTS (
				SELECT 1 FROM decisions d2
				WHERE d2.actor_id = ?
				  AND d2.target_id = d.actor_id
				  AND d2.kind = ?
			)`, targetID, db.KindPass).
		Order("d.created_at DESC, d.actor_id DESC").
		Limit(limit + 1)

	// apply cursor
	if cursor.ActorID > 0 && cursor.CreatedUnix > 0 {
		ts := time.UnixMilli(cursor.CreatedUnix)
		query = query.Where(
			"(d.created_at < ? OR (d.created_at = ? AND d.actor_id < ?))",
			ts, ts, cursor.ActorID,
		)
	}

	if err := query.Find(&decisions).Error; err != nil {
		return nil, nil, err
	}

	// pagination: build next cursor if needed
	var nextToken *string
	if len(decisions) > limit {
		last := decisions[limit-1]
		token, _ := pagination.Encode(pagination.Cursor{
			ActorID:     last.ActorID,
			CreatedUnix: last.CreatedAt.UnixMilli(),
		})
		nextToken = &token
		decisions = decisions[:limit]
	}

	return decisions, nextToken, nil
}

// GetNewLikers returns users who liked the target but have not been liked back.
//
// Behavior:
//   - Only liking decisions toward target_id are considered.
//   - Excludes mutual likes (target already liked them back).
//   - Excludes users the target explicitly passed.
//   - Ordered by created_at DESC, actor_id DESC, cursor-paginated.
func (r *DecisionRepository) GetNewLikers(
	ctx context.Context,
	targetID uint64,
	paginationToken *string,
	limit int,
) ([]db.Decision, *string, error) {
	var decisions []db.Decision

	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	// subquery to exclude mutual likes
	subQuery := r.db.
		Table("decisions").
		Select("1").
		Where("actor_id = d.target_id AND target_id = d.actor_id AND kind IN ?",
			[]db.DecisionKind{db.KindLike, db.KindSuperLike})

	query := r.db.WithContext(ctx).
		Table("decisions d").
		Where("d.target_id = ? AND d.kind IN ? AND NOT EXISTS (?)",
			targetID, []db.DecisionKind{db.KindLike, db.KindSuperLike}, subQuery).
		Where(`
			NOT EXISTS (
				SELECT 1 FROM decisions d2
				WHERE d2.actor_id = ?
				  AND d2.target_id = d.actor_id
				  AND d2.kind = ?
			)`, targetID, db.KindPass).
		Order("d.created_at DESC, d.actor_id DESC").
		Limit(limit + 1)

	if cursor.ActorID > 0 && cursor.CreatedUnix > 0 {
		ts := time.UnixMilli(cursor.CreatedUnix)
		query = query.Where(
			"(d.created_at < ? OR (d.created_at = ? AND d.actor_id < ?))",
			ts, ts, cursor.ActorID,
		)
	}

	if err := query.Find(&decisions).Error; err != nil {
		return nil, nil, err
	}

	var nextToken *string
	if len(decisions) > limit {
		last := decisions[limit-1]
		token, _ := pagination.Encode(pagination.Cursor{
			ActorID:     last.ActorID,
			CreatedUnix: last.CreatedAt.UnixMilli(),
		})
		nextToken = &token
		decisions = decisions[:limit]
	}

	return decisions, nextToken, nil
}

// CountLikers returns how many users liked the given target.
//
// Behavior:
//   - Counts only liking decisions toward target_id.
//   - Excludes users that the target explicitly passed.
//   - Used in conjunction with the Redis cache (DB is fallback).
func (r *DecisionRepository) CountLikers(
	ctx context.Context,
	targetID uint64,
) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("decisions d").
		Where("d.target_id = ? AND d.kind IN ?",
			targetID, []db.DecisionKind{db.KindLike, db.KindSuperLike}).
		Where(`
			NOT EXISTS (
				SELECT 1 FROM decisions d2
				WHERE d2.actor_id = ?
				  AND d2.target_id = d.actor_id
				  AND d2.kind = ?
			)`, targetID, db.KindPass).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// getString safely dereferences a string pointer for pagination tokens.
func getString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
