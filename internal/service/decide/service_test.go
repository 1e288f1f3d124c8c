package decide_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/heartmatch/core/internal/app"
	"github.com/heartmatch/core/internal/apperr"
	"github.com/heartmatch/core/internal/cache"
	"github.com/heartmatch/core/internal/config"
	"github.com/heartmatch/core/internal/db"
	"github.com/heartmatch/core/internal/service/decide"
)

// seedMinimal wipes the DB and inserts the deterministic dataset used by
// most tests here.
//
// Dataset:
//   - Profiles: user1 (male), user2 (female), user3 (female)
//   - Decisions:
//   - user1 → user2 = like
//   - user3 → user1 = like (excluded later because user1 → user3 = pass)
//   - user1 → user3 = pass
//
// user2 has not decided on user1 yet, so tests can complete the mutual pair.
func seedMinimal(t *testing.T, gdb *gorm.DB) {
	t.Helper()

	now := time.Now().UTC()
	profiles := []db.Profile{
		{ID: 1, Nickname: "user1", Email: "u1@test.com", Gender: "male", Birthdate: now.AddDate(-28, 0, 0), Active: true},
		{ID: 2, Nickname: "user2", Email: "u2@test.com", Gender: "female", Birthdate: now.AddDate(-26, 0, 0), Active: true},
		{ID: 3, Nickname: "user3", Email: "u3@test.com", Gender: "female", Birthdate: now.AddDate(-31, 0, 0), Active: true},
	}
	require.NoError(t, gdb.Create(&profiles).Error)

	decisions := []db.Decision{
		{ActorID: 1, TargetID: 2, Kind: db.KindLike},
		{ActorID: 3, TargetID: 1, Kind: db.KindLike},
		{ActorID: 1, TargetID: 3, Kind: db.KindPass},
	}
	require.NoError(t, gdb.Create(&decisions).Error)
}

// setupService spins up an in-memory SQLite DB, applies migrations, seeds
// test data, starts a miniredis, and wires everything into a decide.Service.
func setupService(t *testing.T) *decide.Service {
	t.Helper()

	dbName := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	dbase, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{
		NowFunc:                func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)

	sqlDB, err := dbase.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(dbase))
	seedMinimal(t, dbase)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()

	redisCache := cache.NewRedisCache(cfg)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // discard logs in tests

	appCtx := app.New(dbase, redisCache, logger)
	return decide.NewService(appCtx)
}

// TestRecordDecisionMutualLike walks scenario: user1 already likes user2;
// user2 likes back and completes the pair. Exactly that second call reports
// match_created=true.
func TestRecordDecisionMutualLike(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)

	result, err := svc.RecordDecision(ctx, 2, 1, db.KindLike)
	require.NoError(t, err)

	assert.True(t, result.MatchCreated)
	require.NotNil(t, result.Match)
	assert.Equal(t, uint64(1), result.Match.UserAID)
	assert.Equal(t, uint64(2), result.Match.UserBID)
	assert.True(t, result.Match.Active)
}

// TestRecordDecisionOneWay: liking someone who has not decided yet creates
// no match.
func TestRecordDecisionOneWay(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)

	result, err := svc.RecordDecision(ctx, 2, 3, db.KindLike)
	require.NoError(t, err)

	assert.False(t, result.MatchCreated)
	assert.Nil(t, result.Match)
	require.NotNil(t, result.Decision)
	assert.Equal(t, db.KindLike, result.Decision.Kind)
}

// TestRecordDecisionSuperLikeCountsAsLike: a super-like completes a mutual
// pair the same way a like does.
func TestRecordDecisionSuperLikeCountsAsLike(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)

	result, err := svc.RecordDecision(ctx, 2, 1, db.KindSuperLike)
	require.NoError(t, err)
	assert.True(t, result.MatchCreated)
}

// TestRecordDecisionPassNeverMatches: a pass records intent but triggers no
// reciprocal check.
func TestRecordDecisionPassNeverMatches(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)

	// user3 already likes user1; a pass back must not match them
	result, err := svc.RecordDecision(ctx, 2, 3, db.KindPass)
	require.NoError(t, err)
	assert.False(t, result.MatchCreated)
	assert.Nil(t, result.Match)
}

// TestRecordDecisionDuplicateIsBenign: repeating a decision neither errors
// nor re-fires match creation; the stored decision comes back unchanged.
func TestRecordDecisionDuplicateIsBenign(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)

	first, err := svc.RecordDecision(ctx, 2, 1, db.KindLike)
	require.NoError(t, err)
	require.True(t, first.MatchCreated)

	retry, err := svc.RecordDecision(ctx, 2, 1, db.KindLike)
	require.NoError(t, err, "duplicate decision is already-recorded intent, not an error")
	assert.False(t, retry.MatchCreated, "match notification must fire exactly once")
	assert.Equal(t, db.KindLike, retry.Decision.Kind)

	// and the immutable original survives a conflicting retry too
	retry2, err := svc.RecordDecision(ctx, 2, 1, db.KindPass)
	require.NoError(t, err)
	assert.Equal(t, db.KindLike, retry2.Decision.Kind)
}

// TestMatchCreatedExactlyOnce: regardless of which side completes the pair,
// only one row exists and only one call observed creation.
func TestMatchCreatedExactlyOnce(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)

	a, err := svc.RecordDecision(ctx, 2, 1, db.KindLike)
	require.NoError(t, err)
	b, err := svc.RecordDecision(ctx, 1, 2, db.KindLike)
	require.NoError(t, err) // duplicate of the seed like, benign

	created := 0
	if a.MatchCreated {
		created++
	}
	if b.MatchCreated {
		created++
	}
	assert.Equal(t, 1, created)
}

func TestRecordDecisionValidation(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)

	_, err := svc.RecordDecision(ctx, 1, 1, db.KindLike)
	assert.ErrorIs(t, err, apperr.ErrInvalidOperation, "self-target")

	_, err = svc.RecordDecision(ctx, 1, 2, db.DecisionKind("wink"))
	assert.ErrorIs(t, err, apperr.ErrInvalidOperation, "unknown kind")

	_, err = svc.RecordDecision(ctx, 99, 1, db.KindLike)
	assert.ErrorIs(t, err, apperr.ErrAuthenticationRequired, "unresolved actor")

	_, err = svc.RecordDecision(ctx, 1, 99, db.KindLike)
	assert.ErrorIs(t, err, apperr.ErrNotFound, "unknown target")
}

// TestListLikedYou checks that only valid likers are returned: user3's like
// on user1 is hidden because user1 passed user3, and user2 appears only once
// they actually like user1.
func TestListLikedYou(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)

	page, err := svc.ListLikedYou(ctx, 1, nil)
	require.NoError(t, err)
	require.Empty(t, page.Likers, "user3's like is hidden by user1's pass")

	_, err = svc.RecordDecision(ctx, 2, 1, db.KindLike)
	require.NoError(t, err)

	page, err = svc.ListLikedYou(ctx, 1, nil)
	require.NoError(t, err)
	require.Len(t, page.Likers, 1)
	assert.Equal(t, "2", page.Likers[0].ActorID)
}

// TestListNewLikedYou: mutual likes are excluded from the "new" view.
func TestListNewLikedYou(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)

	page, err := svc.ListNewLikedYou(ctx, 2, nil)
	require.NoError(t, err)
	require.Len(t, page.Likers, 1, "user1's like on user2 is not yet mutual")
	assert.Equal(t, "1", page.Likers[0].ActorID)

	_, err = svc.RecordDecision(ctx, 2, 1, db.KindLike)
	require.NoError(t, err)

	page, err = svc.ListNewLikedYou(ctx, 2, nil)
	require.NoError(t, err)
	assert.Empty(t, page.Likers, "mutual like drops out of the new list")
}

// TestCountLikedYouCache verifies like counts with the cache-first strategy.
func TestCountLikedYouCache(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)

	// First call → DB
	count, err := svc.CountLikedYou(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	// Second call → cache
	count, err = svc.CountLikedYou(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}
