package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/heartmatch/core/internal/cache"
	"github.com/heartmatch/core/internal/db"
)

// Event is the payload broadcast over Redis and pushed to subscribers.
type Event struct {
	Type    string      `json:"type"` // "message"
	MatchID uint64      `json:"match_id"`
	Message *db.Message `json:"message,omitempty"`
}

// Subscription is a forward-only push channel scoped to one match. It carries
// no replay: a subscriber that reconnects must call History to recover the
// gap. Cancel is explicit and idempotent.
type Subscription struct {
	matchID uint64
	events  chan Event

	hub  *Hub
	once sync.Once
}

// Events yields newly inserted messages from the moment of subscription on.
// The channel closes when the subscription is cancelled.
func (s *Subscription) Events() <-chan Event { return s.events }

// Cancel detaches the subscription. Cancelling twice is a no-op, not an error.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.hub.remove(s)
		close(s.events)
	})
}

// Hub is the per-instance registry of live subscriptions, fanning match
// events out to everyone currently subscribed to that match.
type Hub struct {
	mu   sync.RWMutex
	subs map[uint64]map[*Subscription]struct{}
	log  *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		subs: make(map[uint64]map[*Subscription]struct{}),
		log:  log,
	}
}

// Subscribe registers a push channel for one match.
func (h *Hub) Subscribe(matchID uint64) *Subscription {
	sub := &Subscription{
		matchID: matchID,
		events:  make(chan Event, 16),
		hub:     h,
	}

	h.mu.Lock()
	if h.subs[matchID] == nil {
		h.subs[matchID] = make(map[*Subscription]struct{})
	}
	h.subs[matchID][sub] = struct{}{}
	h.mu.Unlock()

	return sub
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[sub.matchID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, sub.matchID)
		}
	}
}

// Broadcast fans an event out to every local subscription of its match.
// Sends are non-blocking: a subscriber that cannot keep up misses events and
// recovers via History, matching the no-replay contract.
func (h *Hub) Broadcast(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[event.MatchID] {
		select {
		case sub.events <- event:
		default:
			h.log.Warn("dropping chat event for slow subscriber", "match_id", event.MatchID)
		}
	}
}

// StartRedisSubscriber runs the shared per-instance Redis listener that feeds
// the hub. Publishing goes through Redis so every instance, not just the one
// that handled the send, delivers to its local subscribers.
func (h *Hub) StartRedisSubscriber(ctx context.Context, rdb *cache.RedisCache) {
	go h.runRedisSubscriber(ctx, rdb)
}

func (h *Hub) runRedisSubscriber(ctx context.Context, rdb *cache.RedisCache) {
	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		func() {
			pubsub := rdb.SubscribeMatchEvents(ctx)
			defer pubsub.Close()

			h.log.Info("chat redis subscriber started", "pattern", "chat:match:*")

			for {
				msg, err := pubsub.ReceiveMessage(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					h.log.Error("chat redis subscriber error", "err", err)
					time.Sleep(backoff)
					backoff *= 2
					if backoff > 30*time.Second {
						backoff = 30 * time.Second
					}
					return
				}

				backoff = time.Second

				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					h.log.Error("failed to unmarshal chat event", "err", err)
					continue
				}

				h.Broadcast(event)
			}
		}()
	}
}
