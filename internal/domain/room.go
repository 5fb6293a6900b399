package domain

import (
	"bytes"
	"time"
)

// Room is the conversation container for an unordered pair of users.
// The pair is stored canonically (lo < hi by uuid byte order) so that a
// pair maps to exactly one row regardless of who messaged first.
type Room struct {
	ID        RoomID    `gorm:"type:uuid;primaryKey" json:"id"`
	LoUserID  UserID    `gorm:"type:uuid;not null;uniqueIndex:ux_rooms_pair,priority:1" json:"loUserId"`
	HiUserID  UserID    `gorm:"type:uuid;not null;uniqueIndex:ux_rooms_pair,priority:2" json:"hiUserId"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
}

func (Room) TableName() string { return "rooms" }

// CanonicalPair orders two user ids into the (lo, hi) form used by Room.
func CanonicalPair(a, b UserID) (lo, hi UserID) {
	if bytes.Compare(a[:], b[:]) < 0 {
		return a, b
	}
	return b, a
}

// Peer returns the other participant of the room.
func (r *Room) Peer(me UserID) UserID {
	if r.LoUserID == me {
		return r.HiUserID
	}
	return r.LoUserID
}
