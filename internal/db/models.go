package db

import (
	"time"
)

// DecisionKind is the recorded intent of a swipe.
type DecisionKind string

const (
	KindLike      DecisionKind = "like"
	KindSuperLike DecisionKind = "super_like"
	KindPass      DecisionKind = "pass"
)

// Liked reports whether the kind counts toward a mutual match.
func (k DecisionKind) Liked() bool {
	return k == KindLike || k == KindSuperLike
}

// Valid reports whether k is one of the three known kinds.
func (k DecisionKind) Valid() bool {
	switch k {
	case KindLike, KindSuperLike, KindPass:
		return true
	}
	return false
}

// Profile is a user's dating profile. Owned by the user it represents and
// soft-deactivated via Active, never hard-deleted.
type Profile struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Nickname     string    `gorm:"size:64;not null" json:"nickname"`
	Email        string    `gorm:"uniqueIndex;size:128;not null" json:"email"`
	PasswordHash string    `gorm:"size:255" json:"-"`
	Birthdate    time.Time `gorm:"not null" json:"birthdate"`
	Gender       string    `gorm:"size:16;not null;index" json:"gender"`
	Location     string    `gorm:"size:128;index" json:"location"`
	HeightCM     int       `json:"height_cm,omitempty"`
	Occupation   string    `gorm:"size:128" json:"occupation,omitempty"`
	Education    string    `gorm:"size:128" json:"education,omitempty"`
	Bio          string    `gorm:"size:1024" json:"bio,omitempty"`
	Latitude     float64   `json:"latitude,omitempty"`
	Longitude    float64   `json:"longitude,omitempty"`
	Active       bool      `gorm:"default:true;index" json:"active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Photos []Photo `gorm:"foreignKey:ProfileID" json:"photos,omitempty"`
}

// Photo is an ordered reference to an externally stored image.
type Photo struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	ProfileID uint64 `gorm:"not null;index:idx_profile_order,priority:1" json:"profile_id"`
	URL       string `gorm:"size:512;not null" json:"url"`
	Order     int    `gorm:"column:photo_order;index:idx_profile_order,priority:2" json:"order"`
}

// Decision is an immutable directed edge: actor decided on target.
//
// Composite PK: (ActorID, TargetID)
//   - One row per pair, insert-once. A second decision for the same pair hits
//     the PK and is rejected, keeping history auditable.
//
// Indexes:
//   - idx_target_kind_created_actor(target_id, kind, created_at DESC, actor_id)
//     serves "who liked me" lists with cursor pagination.
//   - idx_actor_target_kind(actor_id, target_id, kind)
//     serves the O(1) reciprocal-like lookup.
type Decision struct {
	ActorID   uint64       `gorm:"primaryKey;index:idx_actor_target_kind,priority:1" json:"actor_id"`
	TargetID  uint64       `gorm:"primaryKey;index:idx_target_kind_created_actor,priority:1;index:idx_actor_target_kind,priority:2" json:"target_id"`
	Kind      DecisionKind `gorm:"size:16;not null;index:idx_target_kind_created_actor,priority:2;index:idx_actor_target_kind,priority:3" json:"kind"`
	CreatedAt time.Time    `gorm:"autoCreateTime;index:idx_target_kind_created_actor,priority:3,sort:desc" json:"created_at"`
}

// Match is the undirected mutual-like pairing. The pair is stored canonically
// sorted (UserAID < UserBID) and the unique index is the sole source of truth
// for "does this match exist" under concurrent reciprocal likes.
type Match struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserAID   uint64    `gorm:"not null;uniqueIndex:idx_match_pair,priority:1" json:"user_a_id"`
	UserBID   uint64    `gorm:"not null;uniqueIndex:idx_match_pair,priority:2" json:"user_b_id"`
	Active    bool      `gorm:"default:true" json:"active"`
	MatchedAt time.Time `gorm:"autoCreateTime" json:"matched_at"`
}

// Participants returns both party ids.
func (m *Match) Participants() (uint64, uint64) { return m.UserAID, m.UserBID }

// HasParticipant reports whether userID is one of the match's two parties.
func (m *Match) HasParticipant(userID uint64) bool {
	return m.UserAID == userID || m.UserBID == userID
}

// CanonicalPair sorts two user ids into match storage order.
func CanonicalPair(x, y uint64) (uint64, uint64) {
	if x < y {
		return x, y
	}
	return y, x
}

// Message is an append-only chat message inside a match. The autoincrement ID
// is the total order within the match (CreatedAt ties included). ClientToken
// deduplicates blind send retries.
type Message struct {
	ID          uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MatchID     uint64     `gorm:"not null;index;uniqueIndex:idx_msg_dedup,priority:1" json:"match_id"`
	SenderID    uint64     `gorm:"not null;uniqueIndex:idx_msg_dedup,priority:2" json:"sender_id"`
	Body        string     `gorm:"size:2048;not null" json:"body"`
	ClientToken string     `gorm:"size:64;not null;uniqueIndex:idx_msg_dedup,priority:3" json:"client_token"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	Deleted     bool       `gorm:"default:false" json:"-"`
}
