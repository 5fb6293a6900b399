// Package dto holds the wire shapes exchanged with clients: the socket
// event envelope plus the HTTP request/response bodies.
package dto

import (
	"encoding/json"
	"time"
)

// Envelope frames every socket event: one JSON object per text frame.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Event type names, inbound and outbound.
const (
	EventAuthenticate = "authenticate"
	EventSendMessage  = "sendMessage"
	EventFetchHistory = "fetchHistory"
	EventFetchRoster  = "fetchRoster"
	EventTypingStart  = "typingStart"
	EventTypingStop   = "typingStop"

	EventAuthResult       = "authResult"
	EventRosterChanged    = "rosterChanged"
	EventPeerJoined       = "peerJoined"
	EventPeerLeft         = "peerLeft"
	EventMessageDelivered = "messageDelivered"
	EventSendAck          = "sendAck"
	EventSendError        = "sendError"
	EventHistoryPayload   = "historyPayload"
	EventRosterPayload    = "rosterPayload"
	EventPendingNotice    = "pendingNotice"
	EventEvicted          = "evicted"
)

type AuthResult struct {
	OK                bool   `json:"ok"`
	Handle            string `json:"handle,omitempty"`
	PreferredLanguage string `json:"preferredLanguage,omitempty"`
	Error             string `json:"error,omitempty"`
}

type RosterChanged struct {
	Handles []string `json:"handles"`
}

type PeerEvent struct {
	Handle string `json:"handle"`
}

type MessageDelivered struct {
	MessageID          string    `json:"messageId"`
	From               string    `json:"from"`
	Text               string    `json:"text"`
	OriginalText       string    `json:"originalText"`
	OriginalLanguage   string    `json:"originalLanguage,omitempty"`
	TranslatedLanguage string    `json:"translatedLanguage,omitempty"`
	IsTranslated       bool      `json:"isTranslated"`
	Timestamp          time.Time `json:"timestamp"`
}

type SendAck struct {
	To        string    `json:"to"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

type SendError struct {
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

type HistoryMessage struct {
	MessageID          string    `json:"messageId"`
	From               string    `json:"from"`
	FromMe             bool      `json:"fromMe"`
	Text               string    `json:"text"`
	OriginalText       string    `json:"originalText"`
	OriginalLanguage   string    `json:"originalLanguage,omitempty"`
	TranslatedLanguage string    `json:"translatedLanguage,omitempty"`
	IsTranslated       bool      `json:"isTranslated"`
	Timestamp          time.Time `json:"timestamp"`
}

type HistoryPayload struct {
	With     string           `json:"with"`
	Messages []HistoryMessage `json:"messages"`
}

type Typing struct {
	From string `json:"from"`
}

type PendingNotice struct {
	Count int `json:"count"`
}

type Evicted struct {
	Reason string `json:"reason"`
}

// Inbound payloads.

type SendMessageRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

type FetchHistoryRequest struct {
	With string `json:"with"`
}

type TypingRequest struct {
	To string `json:"to"`
}
