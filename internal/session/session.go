// Package session owns the in-process mapping between identities and
// live connections: at most one session per handle, last writer wins.
package session

import (
	"fmt"
	"sync"
	"time"

	"lingo/internal/domain"
)

// Conn is the transport-side view of one live client connection. The
// registry never cares how bytes move; it only pushes events and closes.
type Conn interface {
	// Send writes one event envelope to the client.
	Send(event string, data any) error
	// Close severs the connection. Must be safe to call more than once.
	Close()
	// Key identifies the underlying connection, so a re-login on the
	// same connection can be told apart from a takeover.
	Key() string
}

// Session is the live binding between one identity and one connection.
// Exists only in process memory.
type Session struct {
	Conn              Conn
	Handle            string
	UserID            domain.UserID
	PreferredLanguage string

	// Dedup remembers what this session has already been shown, so the
	// redelivery scan never re-emits a message delivered live or in an
	// earlier pass. Discarded with the session.
	Dedup *Dedup
}

// Dedup tracks delivered messages by two keys: the message id, and a
// composite of content, creation instant and sender. The composite
// absorbs interleavings where a message was pushed before its id was
// recorded; two genuinely identical messages sent in the same
// nanosecond by the same sender collide there, which is an accepted
// approximation, not a bug.
type Dedup struct {
	mu   sync.Mutex
	ids  map[domain.MessageID]struct{}
	keys map[string]struct{}
}

func NewDedup() *Dedup {
	return &Dedup{
		ids:  make(map[domain.MessageID]struct{}),
		keys: make(map[string]struct{}),
	}
}

func contentKey(content string, createdAt time.Time, sender domain.UserID) string {
	return fmt.Sprintf("%d|%s|%s", createdAt.UnixNano(), sender, content)
}

func (d *Dedup) Add(m *domain.Message) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids[m.ID] = struct{}{}
	d.keys[contentKey(m.Content, m.CreatedAt, m.SenderID)] = struct{}{}
}

func (d *Dedup) Seen(m *domain.Message) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.ids[m.ID]; ok {
		return true
	}
	_, ok := d.keys[contentKey(m.Content, m.CreatedAt, m.SenderID)]
	return ok
}
