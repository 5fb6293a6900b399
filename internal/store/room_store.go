package store

import (
	"context"
	"errors"
	"time"

	"lingo/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RoomStore struct{ db *gorm.DB }

// GetOrCreate returns the room for the unordered pair, creating it
// lazily on first use. A concurrent create losing the unique-index race
// falls back to re-reading the winner's row.
func (r *RoomStore) GetOrCreate(ctx context.Context, a, b domain.UserID) (*domain.Room, error) {
	lo, hi := domain.CanonicalPair(a, b)

	var room domain.Room
	err := r.db.WithContext(ctx).
		First(&room, "lo_user_id = ? AND hi_user_id = ?", lo, hi).Error
	if err == nil {
		return &room, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	room = domain.Room{
		ID:        uuid.New(),
		LoUserID:  lo,
		HiUserID:  hi,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&room).Error; err != nil {
		var existing domain.Room
		if ferr := r.db.WithContext(ctx).
			First(&existing, "lo_user_id = ? AND hi_user_id = ?", lo, hi).Error; ferr == nil {
			return &existing, nil
		}
		return nil, err
	}
	return &room, nil
}

func (r *RoomStore) ForUser(ctx context.Context, userID domain.UserID) ([]domain.Room, error) {
	var rooms []domain.Room
	if err := r.db.WithContext(ctx).
		Where("lo_user_id = ? OR hi_user_id = ?", userID, userID).
		Find(&rooms).Error; err != nil {
		return nil, err
	}
	return rooms, nil
}
