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

// MessageRepository provides data access for the append-only message log.
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new repository bound to the given DB connection.
func NewMessageRepository(database *gorm.DB) *MessageRepository {
	return &MessageRepository{db: database}
}

// Append inserts a message into the match's log.
//
// clientToken deduplicates blind retries: a resend after a timeout hits the
// (match_id, sender_id, client_token) unique index and the original row is
// returned instead of a second copy. Message sends are not otherwise
// idempotent, unlike decisions.
func (r *MessageRepository) Append(
	ctx context.Context,
	matchID, senderID uint64,
	body, clientToken string,
) (*db.Message, error) {
	msg := db.Message{
		MatchID:     matchID,
		SenderID:    senderID,
		Body:        body,
		ClientToken: clientToken,
	}
	err := r.db.WithContext(ctx).Create(&msg).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// retry of an already-delivered send
		var existing db.Message
		ferr := r.db.WithContext(ctx).
			Where("match_id = ? AND sender_id = ? AND client_token = ?", matchID, senderID, clientToken).
			First(&existing).Error
		if ferr != nil {
			return nil, ferr
		}
		return &existing, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// Get loads a message by id, deleted ones included (callers decide visibility).
func (r *MessageRepository) Get(ctx context.Context, messageID uint64) (*db.Message, error) {
	var m db.Message
	err := r.db.WithContext(ctx).First(&m, messageID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("message %d: %w", messageID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// History returns the match's non-deleted messages in their single total
// order: created_at ASC with the autoincrement id as tiebreak, so concurrent
// sends from both parties read back identically for every reader.
func (r *MessageRepository) History(ctx context.Context, matchID uint64) ([]db.Message, error) {
	var messages []db.Message
	err := r.db.WithContext(ctx).
		Where("match_id = ? AND deleted = ?", matchID, false).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// MarkRead stamps the message's read time. Idempotent: an already-read
// message keeps its original timestamp.
func (r *MessageRepository) MarkRead(ctx context.Context, messageID uint64, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&db.Message{}).
		Where("id = ? AND read_at IS NULL", messageID).
		Update("read_at", at)
	return res.Error
}

// SoftDelete hides the message from history. Only flips the flag; the row is
// retained.
func (r *MessageRepository) SoftDelete(ctx context.Context, messageID uint64) error {
	res := r.db.WithContext(ctx).
		Model(&db.Message{}).
		Where("id = ?", messageID).
		Update("deleted", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("message %d: %w", messageID, apperr.ErrNotFound)
	}
	return nil
}
