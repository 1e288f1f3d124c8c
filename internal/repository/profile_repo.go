package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/heartmatch/core/internal/apperr"
	"github.com/heartmatch/core/internal/db"
)

// Filters are the hard recommendation filters. Zero values impose no
// constraint; Gender "all" is equivalent to absent.
type Filters struct {
	AgeMin   int
	AgeMax   int
	Gender   string
	Location string
}

// Contradictory reports whether the filter set can never match anyone.
func (f Filters) Contradictory() bool {
	return f.AgeMin > 0 && f.AgeMax > 0 && f.AgeMin > f.AgeMax
}

// ProfileRepository provides data access for profiles and the candidate query.
type ProfileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new repository bound to the given DB connection.
func NewProfileRepository(database *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: database}
}

// GetProfile loads a profile with its ordered photos.
func (r *ProfileRepository) GetProfile(ctx context.Context, id uint64) (*db.Profile, error) {
	var p db.Profile
	err := r.db.WithContext(ctx).
		Preload("Photos", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("photo_order ASC")
		}).
		First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("profile %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// BuildExclusionSet returns every profile id that must never be recommended to
// the actor again: the actor itself plus the target of every prior decision,
// regardless of kind.
//
// Fails with ErrAuthenticationRequired if the actor's own profile cannot be
// resolved. That short-circuits the whole recommendation request; returning an
// empty set instead would re-surface already-judged candidates.
func (r *ProfileRepository) BuildExclusionSet(ctx context.Context, actorID uint64) (map[uint64]struct{}, error) {
	var exists int64
	if err := r.db.WithContext(ctx).
		Model(&db.Profile{}).
		Where("id = ?", actorID).
		Count(&exists).Error; err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, fmt.Errorf("actor %d: %w", actorID, apperr.ErrAuthenticationRequired)
	}

	var targets []uint64
	if err := r.db.WithContext(ctx).
		Model(&db.Decision{}).
		Where("actor_id = ?", actorID).
		Pluck("target_id", &targets).Error; err != nil {
		return nil, err
	}

	excluded := make(map[uint64]struct{}, len(targets)+1)
	excluded[actorID] = struct{}{}
	for _, id := range targets {
		excluded[id] = struct{}{}
	}
	return excluded, nil
}

// FindCandidates selects active profiles outside the exclusion set that satisfy
// every supplied filter, truncated to limit.
//
// Age bounds are converted to an inclusive birthdate range against `now` (the
// request time, never a cached clock). Ordering is created_at DESC, id DESC:
// stable for a given snapshot so a paging session never silently re-orders.
func (r *ProfileRepository) FindCandidates(
	ctx context.Context,
	excluded map[uint64]struct{},
	f Filters,
	limit int,
	now time.Time,
) ([]db.Profile, error) {
	excludedIDs := make([]uint64, 0, len(excluded))
	for id := range excluded {
		excludedIDs = append(excludedIDs, id)
	}

	query := r.db.WithContext(ctx).
		Model(&db.Profile{}).
		Preload("Photos", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("photo_order ASC")
		}).
		Where("active = ?", true).
		Where("id NOT IN ?", excludedIDs).
		Order("created_at DESC, id DESC").
		Limit(limit)

	if f.Gender != "" && f.Gender != "all" {
		query = query.Where("gender = ?", f.Gender)
	}
	if f.Location != "" {
		query = query.Where("location = ?", f.Location)
	}
	if f.AgeMax > 0 {
		// oldest allowed: born on or after (now - (ageMax+1) years, exclusive day)
		minBirthdate := now.AddDate(-f.AgeMax-1, 0, 1)
		query = query.Where("birthdate >= ?", minBirthdate)
	}
	if f.AgeMin > 0 {
		// youngest allowed: born on or before (now - ageMin years)
		maxBirthdate := now.AddDate(-f.AgeMin, 0, 0)
		query = query.Where("birthdate <= ?", maxBirthdate)
	}

	var candidates []db.Profile
	if err := query.Find(&candidates).Error; err != nil {
		return nil, err
	}
	return candidates, nil
}

// Deactivate soft-disables a profile. Kept for the external account service
// boundary; profiles are never hard-deleted.
func (r *ProfileRepository) Deactivate(ctx context.Context, id uint64) error {
	res := r.db.WithContext(ctx).
		Model(&db.Profile{}).
		Where("id = ?", id).
		Update("active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("profile %d: %w", id, apperr.ErrNotFound)
	}
	return nil
}
