package delivery

import (
	"context"
	"log/slog"
	"time"

	"lingo/internal/domain"
	"lingo/internal/dto"
	"lingo/internal/observability/metrics"
	"lingo/internal/session"
	"lingo/internal/store"
)

// Redelivery drains a user's undelivered backlog once per successful
// session registration. The scan is a bounded, idempotent substitute
// for a real outbox: anything it misses (or fails to mark) is simply
// picked up again on the next login.
type Redelivery struct {
	store    *store.Store
	resolver Resolver

	// window: undelivered messages older than this are treated as
	// expired and never pushed, though they stay readable via history.
	// grace: messages younger than this are presumed still in-flight
	// through the live path and skipped to avoid racing it.
	window time.Duration
	grace  time.Duration
	batch  int
	now    func() time.Time
}

func NewRedelivery(st *store.Store, translator Translator, window, grace time.Duration, batch int) *Redelivery {
	if batch <= 0 {
		batch = 200
	}
	return &Redelivery{
		store:    st,
		resolver: Resolver{Store: st, Translator: translator},
		window:   window,
		grace:    grace,
		batch:    batch,
		now:      time.Now,
	}
}

// Drain pushes every eligible undelivered message to the freshly
// registered session, returning how many were emitted. Per-message
// failures are logged and skipped; the scan keeps going.
func (r *Redelivery) Drain(ctx context.Context, sess *session.Session) (int, error) {
	rooms, err := r.store.Rooms().ForUser(ctx, sess.UserID)
	if err != nil {
		return 0, err
	}

	now := r.now().UTC()
	since := now.Add(-r.window)
	cutoff := now.Add(-r.grace)

	delivered := 0
	for i := range rooms {
		room := &rooms[i]
		msgs, err := r.store.Messages().Undelivered(ctx, room.ID, sess.UserID, since, r.batch)
		if err != nil {
			slog.Warn("redelivery scan failed for room", "room_id", room.ID, "error", err)
			continue
		}
		for j := range msgs {
			msg := &msgs[j]
			if msg.CreatedAt.After(cutoff) {
				continue
			}
			if sess.Dedup.Seen(msg) {
				continue
			}
			if r.emit(ctx, sess, msg) {
				delivered++
			}
		}
	}

	if delivered > 0 {
		_ = sess.Conn.Send(dto.EventPendingNotice, dto.PendingNotice{Count: delivered})
	}
	return delivered, nil
}

func (r *Redelivery) emit(ctx context.Context, sess *session.Session, msg *domain.Message) bool {
	sender, err := r.store.Users().GetByID(ctx, msg.SenderID)
	if err != nil {
		slog.Warn("redelivery sender lookup failed", "message_id", msg.ID, "error", err)
		return false
	}

	text, isTranslated, translatedLang := r.resolver.Resolve(ctx, msg, sess.PreferredLanguage)

	event := dto.MessageDelivered{
		MessageID:          msg.ID.String(),
		From:               sender.Handle,
		Text:               text,
		OriginalText:       msg.Content,
		OriginalLanguage:   msg.OriginalLanguage,
		TranslatedLanguage: translatedLang,
		IsTranslated:       isTranslated,
		Timestamp:          msg.CreatedAt,
	}
	if err := sess.Conn.Send(dto.EventMessageDelivered, event); err != nil {
		slog.Info("redelivery push failed", "to", sess.Handle, "message_id", msg.ID, "error", err)
		return false
	}

	sess.Dedup.Add(msg)
	if err := r.store.Messages().MarkDelivered(ctx, msg.ID, r.now().UTC()); err != nil {
		// Retried idempotently on the next login.
		slog.Warn("mark delivered failed during redelivery", "message_id", msg.ID, "error", err)
	}
	metrics.MessagesDeliveredTotal.WithLabelValues("redelivery").Inc()
	return true
}
