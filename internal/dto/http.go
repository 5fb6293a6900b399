package dto

import "time"

type RegisterRequest struct {
	Handle            string `json:"handle"`
	Password          string `json:"password"`
	PreferredLanguage string `json:"preferredLanguage"`
}

type LoginRequest struct {
	Handle            string `json:"handle"`
	Password          string `json:"password"`
	PreferredLanguage string `json:"preferredLanguage,omitempty"`
}

type TokenResponse struct {
	AccessToken       string `json:"accessToken"`
	ExpiresIn         int64  `json:"expiresIn"`
	UserID            string `json:"userId"`
	Handle            string `json:"handle"`
	PreferredLanguage string `json:"preferredLanguage"`
}

type RosterEntry struct {
	PeerHandle          string    `json:"peerHandle"`
	IsOnline            bool      `json:"isOnline"`
	LastMessagePreview  string    `json:"lastMessagePreview"`
	LastMessageTime     time.Time `json:"lastMessageTime"`
	IsLastMessageFromMe bool      `json:"isLastMessageFromMe"`
}

type LanguagesResponse struct {
	Languages []string `json:"languages"`
}
