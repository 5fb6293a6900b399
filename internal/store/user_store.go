package store

import (
	"context"
	"time"

	"lingo/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserStore struct{ db *gorm.DB }

func (u *UserStore) Create(ctx context.Context, usr *domain.User) error {
	if usr.ID == uuid.Nil {
		usr.ID = uuid.New()
	}
	return u.db.WithContext(ctx).Create(usr).Error
}

func (u *UserStore) GetByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	var user domain.User
	if err := u.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &user, nil
}

func (u *UserStore) GetByHandle(ctx context.Context, handle string) (*domain.User, error) {
	var user domain.User
	if err := u.db.WithContext(ctx).First(&user, "handle = ?", handle).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &user, nil
}

func (u *UserStore) UpdateLanguage(ctx context.Context, id domain.UserID, language string) error {
	return u.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ?", id).
		Update("preferred_language", language).Error
}

// SetPresence flips the online flag and stamps last_seen.
func (u *UserStore) SetPresence(ctx context.Context, id domain.UserID, online bool, at time.Time) error {
	return u.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_online": online, "last_seen": at}).Error
}
