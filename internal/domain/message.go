package domain

import "time"

// Message is one stored chat message. Content, SenderID and CreatedAt are
// immutable once written; the translation columns and DeliveredAt are
// filled in after the fact (translation caching, delivery marking).
// DeliveredAt == nil means the recipient has never been pushed this
// message, live or via redelivery.
type Message struct {
	ID                 MessageID  `gorm:"type:uuid;primaryKey" json:"id"`
	RoomID             RoomID     `gorm:"type:uuid;not null;index:idx_messages_room_created,priority:1" json:"roomId"`
	SenderID           UserID     `gorm:"type:uuid;not null" json:"senderId"`
	Content            string     `gorm:"type:text;not null" json:"content"`
	TranslatedContent  string     `gorm:"type:text" json:"translatedContent,omitempty"`
	OriginalLanguage   string     `gorm:"type:text" json:"originalLanguage,omitempty"`
	TranslatedLanguage string     `gorm:"type:text" json:"translatedLanguage,omitempty"`
	IsTranslated       bool       `gorm:"not null;default:false" json:"isTranslated"`
	CreatedAt          time.Time  `gorm:"not null;index:idx_messages_room_created,priority:2" json:"createdAt"`
	DeliveredAt        *time.Time `json:"deliveredAt,omitempty"`
}

func (Message) TableName() string { return "messages" }

func (m *Message) Delivered() bool { return m.DeliveredAt != nil }
