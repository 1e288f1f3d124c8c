package discover_test

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
	"github.com/heartmatch/core/internal/repository"
	"github.com/heartmatch/core/internal/service/decide"
	"github.com/heartmatch/core/internal/service/discover"
)

// setupCtx spins up an in-memory SQLite DB, applies migrations, starts a
// miniredis, and wires everything into an AppContext.
//
// Each test gets its own isolated DB + Redis.
func setupCtx(t *testing.T) *app.AppContext {
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

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()

	redisCache := cache.NewRedisCache(cfg)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // discard logs in tests

	return app.New(dbase, redisCache, logger)
}

func seedProfile(t *testing.T, appCtx *app.AppContext, id uint64, gender string, age int, active bool) {
	t.Helper()
	p := db.Profile{
		ID:        id,
		Nickname:  fmt.Sprintf("user%d", id),
		Email:     fmt.Sprintf("u%d@test.com", id),
		Gender:    gender,
		Location:  "Taipei",
		Birthdate: time.Now().UTC().AddDate(-age, 0, -1),
		Active:    active,
	}
	require.NoError(t, appCtx.DB.Create(&p).Error)
}

// TestRecommendAgeGenderFilters: a fresh user filtering on age 25-30 and
// female sees only active female profiles aged 25-30, never themselves.
func TestRecommendAgeGenderFilters(t *testing.T) {
	ctx := context.Background()
	appCtx := setupCtx(t)
	svc := discover.NewService(appCtx)

	seedProfile(t, appCtx, 1, "male", 28, true) // the actor
	seedProfile(t, appCtx, 2, "female", 26, true)
	seedProfile(t, appCtx, 3, "female", 24, true)  // too young
	seedProfile(t, appCtx, 4, "female", 30, true)
	seedProfile(t, appCtx, 5, "female", 27, false) // deactivated
	seedProfile(t, appCtx, 6, "male", 27, true)    // wrong gender

	candidates, err := svc.Recommend(ctx, 1, repository.Filters{
		AgeMin: 25, AgeMax: 30, Gender: "female",
	}, 10)
	require.NoError(t, err)

	ids := ids(candidates)
	assert.ElementsMatch(t, []uint64{2, 4}, ids)
}

// TestRecommendExcludesDecidedTargets: after U1 passes on U2, U2 never
// reappears even with no filters.
func TestRecommendExcludesDecidedTargets(t *testing.T) {
	ctx := context.Background()
	appCtx := setupCtx(t)
	svc := discover.NewService(appCtx)
	decideSvc := decide.NewService(appCtx)

	seedProfile(t, appCtx, 1, "male", 28, true)
	seedProfile(t, appCtx, 2, "female", 26, true)
	seedProfile(t, appCtx, 3, "female", 27, true)

	_, err := decideSvc.RecordDecision(ctx, 1, 2, db.KindPass)
	require.NoError(t, err)

	candidates, err := svc.Recommend(ctx, 1, repository.Filters{}, 10)
	require.NoError(t, err)

	assert.ElementsMatch(t, []uint64{3}, ids(candidates))
}

func TestRecommendNewDecisionTakesEffectImmediately(t *testing.T) {
	ctx := context.Background()
	appCtx := setupCtx(t)
	svc := discover.NewService(appCtx)
	decideSvc := decide.NewService(appCtx)

	seedProfile(t, appCtx, 1, "male", 28, true)
	seedProfile(t, appCtx, 2, "female", 26, true)

	candidates, err := svc.Recommend(ctx, 1, repository.Filters{}, 10)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	// decide, then fetch again: the exclusion set is recomputed per request
	_, err = decideSvc.RecordDecision(ctx, 1, 2, db.KindLike)
	require.NoError(t, err)

	candidates, err = svc.Recommend(ctx, 1, repository.Filters{}, 10)
	require.NoError(t, err)
	assert.Empty(t, candidates, "exhausted pool is an empty list, not an error")
}

func TestRecommendContradictoryAgeRange(t *testing.T) {
	ctx := context.Background()
	appCtx := setupCtx(t)
	svc := discover.NewService(appCtx)

	seedProfile(t, appCtx, 1, "male", 28, true)
	seedProfile(t, appCtx, 2, "female", 26, true)

	candidates, err := svc.Recommend(ctx, 1, repository.Filters{AgeMin: 30, AgeMax: 25}, 10)
	require.NoError(t, err, "user-authored nonsense is not an error")
	assert.Empty(t, candidates)
}

func TestRecommendUnresolvedActor(t *testing.T) {
	ctx := context.Background()
	appCtx := setupCtx(t)
	svc := discover.NewService(appCtx)

	_, err := svc.Recommend(ctx, 42, repository.Filters{}, 10)
	assert.ErrorIs(t, err, apperr.ErrAuthenticationRequired)
}

func TestRecommendLimit(t *testing.T) {
	ctx := context.Background()
	appCtx := setupCtx(t)
	svc := discover.NewService(appCtx)

	seedProfile(t, appCtx, 1, "male", 28, true)
	for i := uint64(2); i <= 8; i++ {
		seedProfile(t, appCtx, i, "female", 26, true)
	}

	candidates, err := svc.Recommend(ctx, 1, repository.Filters{}, 3)
	require.NoError(t, err)
	assert.Len(t, candidates, 3)
}

func ids(profiles []db.Profile) []uint64 {
	out := make([]uint64, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, p.ID)
	}
	return out
}
