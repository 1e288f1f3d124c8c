package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/heartmatch/core/internal/app"
	"github.com/heartmatch/core/internal/apperr"
	"github.com/heartmatch/core/internal/db"
	"github.com/heartmatch/core/internal/repository"
)

const maxBodyLen = 2000

// Service is the per-match message channel: ordered message log, read state,
// and the realtime subscription fan-out.
type Service struct {
	appCtx      *app.AppContext
	matchRepo   *repository.MatchRepository
	messageRepo *repository.MessageRepository
	profileRepo *repository.ProfileRepository
	hub         *Hub
}

// NewService creates the chat service with dependencies from AppContext.
func NewService(appCtx *app.AppContext, hub *Hub) *Service {
	return &Service{
		appCtx:      appCtx,
		matchRepo:   repository.NewMatchRepository(appCtx.DB),
		messageRepo: repository.NewMessageRepository(appCtx.DB),
		profileRepo: repository.NewProfileRepository(appCtx.DB),
		hub:         hub,
	}
}

// Hub exposes the underlying fan-out registry (the server wires its Redis
// subscriber at startup).
func (s *Service) Hub() *Hub { return s.hub }

// Send appends a message to the match's log and publishes it to subscribers.
//
// Behavior:
//   - senderID must be a party of the match (NotAParticipant otherwise) and
//     the match must still be active (MatchInactive otherwise).
//   - clientToken deduplicates retries; when the client supplies none the
//     server generates one, making only client-driven retries dedup-safe.
//   - Ordering is server-assigned; concurrent sends from both parties land in
//     one total order with no merge conflict (append-only, never edited).
func (s *Service) Send(
	ctx context.Context,
	matchID, senderID uint64,
	body, clientToken string,
) (*db.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperr.Invalid("message body must not be empty")
	}
	if len(body) > maxBodyLen {
		return nil, apperr.Invalid("message body exceeds %d characters", maxBodyLen)
	}

	match, err := s.requireParticipant(ctx, matchID, senderID)
	if err != nil {
		return nil, err
	}
	if !match.Active {
		return nil, fmt.Errorf("match %d: %w", matchID, apperr.ErrMatchInactive)
	}

	if clientToken == "" {
		clientToken = uuid.NewString()
	}

	msg, err := s.messageRepo.Append(ctx, matchID, senderID, body, clientToken)
	if err != nil {
		s.appCtx.Logger.Error("message append failed", "match_id", matchID, "err", err)
		return nil, err
	}

	s.publish(ctx, Event{Type: "message", MatchID: matchID, Message: msg})

	return msg, nil
}

// History returns the match's non-deleted messages in ascending creation
// order. Read state is visible to both participants.
func (s *Service) History(ctx context.Context, matchID, readerID uint64) ([]db.Message, error) {
	if _, err := s.requireParticipant(ctx, matchID, readerID); err != nil {
		return nil, err
	}
	messages, err := s.messageRepo.History(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []db.Message{}
	}
	return messages, nil
}

// MarkRead stamps the message as read by its recipient.
func (s *Service) MarkRead(ctx context.Context, messageID, readerID uint64) error {
	msg, err := s.messageRepo.Get(ctx, messageID)
	if err != nil {
		return err
	}
	if _, err := s.requireParticipant(ctx, msg.MatchID, readerID); err != nil {
		return err
	}
	if msg.SenderID == readerID {
		return apperr.Invalid("cannot mark your own message as read")
	}
	return s.messageRepo.MarkRead(ctx, messageID, time.Now().UTC())
}

// DeleteMessage soft-deletes a message. Only the sender may do this.
func (s *Service) DeleteMessage(ctx context.Context, messageID, actorID uint64) error {
	msg, err := s.messageRepo.Get(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != actorID {
		return fmt.Errorf("message %d: %w", messageID, apperr.ErrNotAParticipant)
	}
	return s.messageRepo.SoftDelete(ctx, messageID)
}

// Subscribe opens a forward-only push channel for the match, after the same
// participant check as Send. The caller must Cancel the subscription.
func (s *Service) Subscribe(ctx context.Context, matchID, userID uint64) (*Subscription, error) {
	match, err := s.requireParticipant(ctx, matchID, userID)
	if err != nil {
		return nil, err
	}
	if !match.Active {
		return nil, fmt.Errorf("match %d: %w", matchID, apperr.ErrMatchInactive)
	}
	return s.hub.Subscribe(matchID), nil
}

// MatchView is a match with the counterpart profile resolved for the caller.
type MatchView struct {
	Match     db.Match   `json:"match"`
	OtherUser db.Profile `json:"other_user"`
}

// ListMatches returns the user's active matches, counterpart resolved,
// most recent first.
func (s *Service) ListMatches(ctx context.Context, userID uint64) ([]MatchView, error) {
	matches, err := s.matchRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]MatchView, 0, len(matches))
	for _, m := range matches {
		otherID := m.UserAID
		if otherID == userID {
			otherID = m.UserBID
		}
		other, err := s.profileRepo.GetProfile(ctx, otherID)
		if err != nil {
			s.appCtx.Logger.Warn("skipping match with unresolvable counterpart",
				"match_id", m.ID, "other_id", otherID, "err", err)
			continue
		}
		views = append(views, MatchView{Match: m, OtherUser: *other})
	}
	return views, nil
}

// Unmatch deactivates the match for both parties. The row and its messages
// are retained; further sends are rejected with MatchInactive.
func (s *Service) Unmatch(ctx context.Context, matchID, actorID uint64) error {
	if _, err := s.requireParticipant(ctx, matchID, actorID); err != nil {
		return err
	}
	if err := s.matchRepo.Deactivate(ctx, matchID); err != nil {
		return err
	}
	s.appCtx.Logger.Info("match deactivated", "match_id", matchID, "by", actorID)
	return nil
}

// --- helpers ---

func (s *Service) requireParticipant(ctx context.Context, matchID, userID uint64) (*db.Match, error) {
	match, err := s.matchRepo.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !match.HasParticipant(userID) {
		return nil, fmt.Errorf("user %d on match %d: %w", userID, matchID, apperr.ErrNotAParticipant)
	}
	return match, nil
}

// publish routes the event through Redis so every instance fans out to its
// local subscribers. If Redis is unreachable the local hub still delivers,
// degrading to single-instance push rather than losing the event entirely.
func (s *Service) publish(ctx context.Context, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.appCtx.Logger.Error("failed to marshal chat event", "err", err)
		return
	}
	if err := s.appCtx.RedisCache.PublishMatchEvent(ctx, event.MatchID, payload); err != nil {
		s.appCtx.Logger.Warn("redis publish failed, delivering locally", "err", err)
		s.hub.Broadcast(event)
	}
}
