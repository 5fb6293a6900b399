package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"lingo/internal/domain"
	"lingo/internal/dto"
	"lingo/internal/observability/metrics"
)

// Presence is the slice of the identity store the registry needs to
// flip online flags. Best-effort: a failed flip never blocks a session
// transition.
type Presence interface {
	SetPresence(ctx context.Context, id domain.UserID, online bool, at time.Time) error
}

type Registry struct {
	mu       sync.Mutex
	byHandle map[string]*Session
	byConn   map[string]*Session

	presence Presence
	now      func() time.Time
}

func NewRegistry(presence Presence) *Registry {
	return &Registry{
		byHandle: make(map[string]*Session),
		byConn:   make(map[string]*Session),
		presence: presence,
		now:      time.Now,
	}
}

// Register installs the session as the sole owner of its handle. Any
// older session for the handle on a different connection is evicted
// first; the registry's mapping is authoritative whether or not the
// stale transport acknowledges the close. The returned flag reports
// whether this was a genuinely new participant rather than a refresh
// of the same connection.
func (r *Registry) Register(s *Session) (fresh bool) {
	if s.Dedup == nil {
		s.Dedup = NewDedup()
	}

	r.mu.Lock()
	// A re-auth on the same connection under a different handle ends
	// the previous identity's session first, or it would linger in
	// byHandle with no connection entry left to release it.
	var switched *Session
	if prev, ok := r.byConn[s.Conn.Key()]; ok && prev.Handle != s.Handle {
		if cur := r.byHandle[prev.Handle]; cur == prev {
			delete(r.byHandle, prev.Handle)
			switched = prev
		}
	}
	old, existed := r.byHandle[s.Handle]
	sameConn := existed && old.Conn.Key() == s.Conn.Key()
	if existed {
		delete(r.byConn, old.Conn.Key())
	}
	r.byHandle[s.Handle] = s
	r.byConn[s.Conn.Key()] = s
	r.mu.Unlock()

	if switched != nil {
		metrics.SessionsActive.WithLabelValues().Dec()
		r.setPresence(switched.UserID, false)
		r.Broadcast(dto.EventPeerLeft, dto.PeerEvent{Handle: switched.Handle}, s.Handle)
		r.Broadcast(dto.EventRosterChanged, dto.RosterChanged{Handles: r.Handles()}, s.Handle)
	}
	if existed && !sameConn {
		r.evict(old)
	}
	if !existed {
		metrics.SessionsActive.WithLabelValues().Inc()
	}

	r.setPresence(s.UserID, true)

	fresh = !existed
	if fresh {
		r.Broadcast(dto.EventPeerJoined, dto.PeerEvent{Handle: s.Handle}, s.Handle)
		r.Broadcast(dto.EventRosterChanged, dto.RosterChanged{Handles: r.Handles()}, s.Handle)
	}
	return fresh
}

// evict is the explicit stale-connection transition: tell the old
// client why, then cut it loose. Fire-and-forget — a transport that
// cannot be severed cleanly does not hold up the new registration.
func (r *Registry) evict(old *Session) {
	metrics.SessionEvictionsTotal.WithLabelValues().Inc()
	slog.Info("evicting stale session", "handle", old.Handle, "conn", old.Conn.Key())
	go func() {
		_ = old.Conn.Send(dto.EventEvicted, dto.Evicted{Reason: "signed in elsewhere"})
		old.Conn.Close()
	}()
}

func (r *Registry) Lookup(handle string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byHandle[handle]
	return s, ok
}

// Release drops the session bound to the connection, if any, flips the
// identity offline and tells the remaining sessions.
func (r *Registry) Release(conn Conn) {
	r.mu.Lock()
	s, ok := r.byConn[conn.Key()]
	if ok {
		delete(r.byConn, conn.Key())
		// Only drop the handle mapping if it still points at this
		// session; a takeover may already have replaced it.
		if cur := r.byHandle[s.Handle]; cur == s {
			delete(r.byHandle, s.Handle)
		} else {
			ok = false
		}
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	metrics.SessionsActive.WithLabelValues().Dec()
	r.setPresence(s.UserID, false)
	r.Broadcast(dto.EventPeerLeft, dto.PeerEvent{Handle: s.Handle}, s.Handle)
	r.Broadcast(dto.EventRosterChanged, dto.RosterChanged{Handles: r.Handles()}, s.Handle)
	slog.Info("session released", "handle", s.Handle)
}

// Broadcast pushes an event to every live session except the named
// handle. Send failures are the transport's problem, not ours.
func (r *Registry) Broadcast(event string, data any, exceptHandle string) {
	r.mu.Lock()
	targets := make([]*Session, 0, len(r.byHandle))
	for handle, s := range r.byHandle {
		if handle == exceptHandle {
			continue
		}
		targets = append(targets, s)
	}
	r.mu.Unlock()

	for _, s := range targets {
		if err := s.Conn.Send(event, data); err != nil {
			slog.Debug("broadcast send failed", "handle", s.Handle, "event", event, "error", err)
		}
	}
}

// Handles returns the currently online handles, sorted.
func (r *Registry) Handles() []string {
	r.mu.Lock()
	out := make([]string, 0, len(r.byHandle))
	for handle := range r.byHandle {
		out = append(out, handle)
	}
	r.mu.Unlock()
	sort.Strings(out)
	return out
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byHandle)
}

func (r *Registry) setPresence(id domain.UserID, online bool) {
	if r.presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := r.presence.SetPresence(ctx, id, online, r.now().UTC()); err != nil {
		slog.Warn("presence update failed", "user_id", id, "online", online, "error", err)
	}
}
