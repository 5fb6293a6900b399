package store

import (
	"context"
	"time"

	"lingo/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MessageStore struct{ db *gorm.DB }

func (m *MessageStore) Create(ctx context.Context, msg *domain.Message) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	return m.db.WithContext(ctx).Create(msg).Error
}

func (m *MessageStore) ListRoom(ctx context.Context, roomID domain.RoomID) ([]domain.Message, error) {
	var msgs []domain.Message
	if err := m.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at asc").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

func (m *MessageStore) LastInRoom(ctx context.Context, roomID domain.RoomID) (*domain.Message, error) {
	var msg domain.Message
	if err := m.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at desc").
		First(&msg).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &msg, nil
}

// Undelivered lists messages in the room sent by someone other than
// recipientID that have never been pushed, newest-window bounded.
func (m *MessageStore) Undelivered(ctx context.Context, roomID domain.RoomID, recipientID domain.UserID, since time.Time, limit int) ([]domain.Message, error) {
	var msgs []domain.Message
	tx := m.db.WithContext(ctx).
		Where("room_id = ? AND sender_id <> ? AND delivered_at IS NULL AND created_at >= ?",
			roomID, recipientID, since).
		Order("created_at asc")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if err := tx.Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// MarkDelivered is idempotent: a message already marked keeps its first
// delivery timestamp.
func (m *MessageStore) MarkDelivered(ctx context.Context, id domain.MessageID, at time.Time) error {
	return m.db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ? AND delivered_at IS NULL", id).
		Update("delivered_at", at).Error
}

// CacheTranslation stores a translated rendering beside the immutable
// original content.
func (m *MessageStore) CacheTranslation(ctx context.Context, id domain.MessageID, translated, sourceLang, targetLang string) error {
	return m.db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"translated_content":  translated,
			"original_language":   sourceLang,
			"translated_language": targetLang,
			"is_translated":       true,
		}).Error
}
