package chat_test

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
	"github.com/heartmatch/core/internal/service/chat"
)

// setupService wires an isolated SQLite DB and miniredis into a chat.Service
// with one seeded match {1,2} plus an outsider profile 3.
func setupService(t *testing.T) (*chat.Service, *db.Match, *cache.RedisCache) {
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

	now := time.Now().UTC()
	profiles := []db.Profile{
		{ID: 1, Nickname: "user1", Email: "u1@test.com", Gender: "male", Birthdate: now.AddDate(-28, 0, 0), Active: true},
		{ID: 2, Nickname: "user2", Email: "u2@test.com", Gender: "female", Birthdate: now.AddDate(-26, 0, 0), Active: true},
		{ID: 3, Nickname: "user3", Email: "u3@test.com", Gender: "female", Birthdate: now.AddDate(-31, 0, 0), Active: true},
	}
	require.NoError(t, dbase.Create(&profiles).Error)

	match := db.Match{UserAID: 1, UserBID: 2, Active: true}
	require.NoError(t, dbase.Create(&match).Error)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()

	redisCache := cache.NewRedisCache(cfg)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	appCtx := app.New(dbase, redisCache, logger)
	hub := chat.NewHub(logger)
	return chat.NewService(appCtx, hub), &match, redisCache
}

// TestSendAndHistorySingleOrder: both parties send within the same
// millisecond window; history returns one deterministic order for all
// readers, nothing duplicated, nothing dropped.
func TestSendAndHistorySingleOrder(t *testing.T) {
	ctx := context.Background()
	svc, match, _ := setupService(t)

	m1, err := svc.Send(ctx, match.ID, 1, "hello", "")
	require.NoError(t, err)
	m2, err := svc.Send(ctx, match.ID, 2, "hi", "")
	require.NoError(t, err)

	for _, reader := range []uint64{1, 2} {
		history, err := svc.History(ctx, match.ID, reader)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, m1.ID, history[0].ID)
		assert.Equal(t, m2.ID, history[1].ID)
	}
}

func TestSendAuthorization(t *testing.T) {
	ctx := context.Background()
	svc, match, _ := setupService(t)

	_, err := svc.Send(ctx, match.ID, 3, "let me in", "")
	assert.ErrorIs(t, err, apperr.ErrNotAParticipant)

	_, err = svc.Send(ctx, match.ID, 1, "   ", "")
	assert.ErrorIs(t, err, apperr.ErrInvalidOperation, "blank body")

	_, err = svc.Send(ctx, 999, 1, "hello?", "")
	assert.ErrorIs(t, err, apperr.ErrNotFound, "unknown match")
}

func TestSendDedupToken(t *testing.T) {
	ctx := context.Background()
	svc, match, _ := setupService(t)

	first, err := svc.Send(ctx, match.ID, 1, "hello", "tok-1")
	require.NoError(t, err)

	// blind retry of the same send
	retry, err := svc.Send(ctx, match.ID, 1, "hello", "tok-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, retry.ID)

	history, err := svc.History(ctx, match.ID, 1)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestUnmatchBlocksSending(t *testing.T) {
	ctx := context.Background()
	svc, match, _ := setupService(t)

	// an outsider may not unmatch
	err := svc.Unmatch(ctx, match.ID, 3)
	assert.ErrorIs(t, err, apperr.ErrNotAParticipant)

	require.NoError(t, svc.Unmatch(ctx, match.ID, 1))

	_, err = svc.Send(ctx, match.ID, 2, "hello?", "")
	assert.ErrorIs(t, err, apperr.ErrMatchInactive)

	// history stays readable after deactivation
	_, err = svc.History(ctx, match.ID, 2)
	assert.NoError(t, err)
}

func TestMarkRead(t *testing.T) {
	ctx := context.Background()
	svc, match, _ := setupService(t)

	msg, err := svc.Send(ctx, match.ID, 1, "hello", "")
	require.NoError(t, err)

	// the sender cannot read their own message
	err = svc.MarkRead(ctx, msg.ID, 1)
	assert.ErrorIs(t, err, apperr.ErrInvalidOperation)

	// an outsider cannot either
	err = svc.MarkRead(ctx, msg.ID, 3)
	assert.ErrorIs(t, err, apperr.ErrNotAParticipant)

	require.NoError(t, svc.MarkRead(ctx, msg.ID, 2))

	// read state is visible to both participants
	for _, reader := range []uint64{1, 2} {
		history, err := svc.History(ctx, match.ID, reader)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.NotNil(t, history[0].ReadAt)
	}
}

func TestDeleteMessageSenderOnly(t *testing.T) {
	ctx := context.Background()
	svc, match, _ := setupService(t)

	msg, err := svc.Send(ctx, match.ID, 1, "oops", "")
	require.NoError(t, err)

	err = svc.DeleteMessage(ctx, msg.ID, 2)
	assert.ErrorIs(t, err, apperr.ErrNotAParticipant, "only the sender may delete")

	require.NoError(t, svc.DeleteMessage(ctx, msg.ID, 1))

	history, err := svc.History(ctx, match.ID, 2)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestListMatchesResolvesCounterpart(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setupService(t)

	views, err := svc.ListMatches(ctx, 1)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, uint64(2), views[0].OtherUser.ID)

	views, err = svc.ListMatches(ctx, 2)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, uint64(1), views[0].OtherUser.ID)

	views, err = svc.ListMatches(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, views)
}

// TestSubscribeDeliversNewMessages: a live subscription sees messages sent
// after it was opened, in insertion order, via the Redis fan-out.
func TestSubscribeDeliversNewMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc, match, redisCache := setupService(t)

	svc.Hub().StartRedisSubscriber(ctx, redisCache)

	sub, err := svc.Subscribe(ctx, match.ID, 2)
	require.NoError(t, err)
	defer sub.Cancel()

	// give the pattern subscription a moment to attach
	time.Sleep(50 * time.Millisecond)

	m1, err := svc.Send(ctx, match.ID, 1, "hello", "")
	require.NoError(t, err)
	m2, err := svc.Send(ctx, match.ID, 2, "hi", "")
	require.NoError(t, err)

	got := receiveEvents(t, sub, 2)
	assert.Equal(t, m1.ID, got[0].Message.ID)
	assert.Equal(t, m2.ID, got[1].Message.ID)
}

func TestSubscribeAuthorization(t *testing.T) {
	ctx := context.Background()
	svc, match, _ := setupService(t)

	_, err := svc.Subscribe(ctx, match.ID, 3)
	assert.ErrorIs(t, err, apperr.ErrNotAParticipant)

	require.NoError(t, svc.Unmatch(ctx, match.ID, 1))
	_, err = svc.Subscribe(ctx, match.ID, 2)
	assert.ErrorIs(t, err, apperr.ErrMatchInactive)
}

func TestSubscriptionCancelIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, match, _ := setupService(t)

	sub, err := svc.Subscribe(ctx, match.ID, 1)
	require.NoError(t, err)

	sub.Cancel()
	assert.NotPanics(t, sub.Cancel, "cancelling twice is a no-op")

	_, open := <-sub.Events()
	assert.False(t, open, "events channel closes on cancel")
}

// --- helpers ---

func receiveEvents(t *testing.T, sub *chat.Subscription, n int) []chat.Event {
	t.Helper()
	events := make([]chat.Event, 0, n)
	timeout := time.After(2 * time.Second)
	for len(events) < n {
		select {
		case ev, ok := <-sub.Events():
			require.True(t, ok, "subscription closed early")
			events = append(events, ev)
		case <-timeout:
			t.Fatalf("timed out waiting for %d events, got %d", n, len(events))
		}
	}
	return events
}
