package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/heartmatch/core/internal/apperr"
	"github.com/heartmatch/core/internal/db"
)

// MatchRepository provides data access for the Match model.
type MatchRepository struct {
	db *gorm.DB
}

// NewMatchRepository creates a new repository bound to the given DB connection.
func NewMatchRepository(database *gorm.DB) *MatchRepository {
	return &MatchRepository{db: database}
}

// CreateIfAbsent materializes the match for the unordered pair {x, y}.
//
// The pair is stored canonically sorted and guarded by a unique index, which
// is the sole source of truth for "does this match exist". When both users
// like each other in the same instant and both sides attempt creation, exactly
// one insert wins; the loser reads the existing row back and reports
// created=false. Check-then-insert without the index would be a race.
func (r *MatchRepository) CreateIfAbsent(ctx context.Context, x, y uint64) (*db.Match, bool, error) {
	a, b := db.CanonicalPair(x, y)
	match := db.Match{UserAID: a, UserBID: b, Active: true}

	err := r.db.WithContext(ctx).Create(&match).Error
	if err == nil {
		return &match, true, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, false, err
	}

	// lost the race (or the match predates this call): fetch the winner's row
	existing, err := r.GetByPair(ctx, a, b)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// Get loads a match by id.
func (r *MatchRepository) Get(ctx context.Context, matchID uint64) (*db.Match, error) {
	var m db.Match
	err := r.db.WithContext(ctx).First(&m, matchID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("match %d: %w", matchID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetByPair loads the match row for an unordered pair, if any.
func (r *MatchRepository) GetByPair(ctx context.Context, x, y uint64) (*db.Match, error) {
	a, b := db.CanonicalPair(x, y)
	var m db.Match
	err := r.db.WithContext(ctx).
		Where("user_a_id = ? AND user_b_id = ?", a, b).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("match {%d,%d}: %w", a, b, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListForUser returns the user's active matches, most recent first.
func (r *MatchRepository) ListForUser(ctx context.Context, userID uint64) ([]db.Match, error) {
	var matches []db.Match
	err := r.db.WithContext(ctx).
		Where("(user_a_id = ? OR user_b_id = ?) AND active = ?", userID, userID, true).
		Order("matched_at DESC, id DESC").
		Find(&matches).Error
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// Deactivate flips the match inactive (unmatch). The row is kept; messaging
// into an inactive match is rejected at the service layer.
func (r *MatchRepository) Deactivate(ctx context.Context, matchID uint64) error {
	res := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("id = ?", matchID).
		Update("active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("match %d: %w", matchID, apperr.ErrNotFound)
	}
	return nil
}
