package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"lingo/internal/domain"
	"lingo/internal/dto"
	"lingo/internal/observability/metrics"
	"lingo/internal/session"
	"lingo/internal/store"
)

var ErrEmptyMessage = errors.New("empty message")

// Pipeline carries one send through validate → persist → route → ack.
// Persistence failures reject the send outright; everything after the
// store write is best-effort and can only downgrade, never lose, the
// message.
type Pipeline struct {
	store    *store.Store
	registry *session.Registry
	resolver Resolver
	now      func() time.Time
}

func NewPipeline(st *store.Store, registry *session.Registry, translator Translator) *Pipeline {
	return &Pipeline{
		store:    st,
		registry: registry,
		resolver: Resolver{Store: st, Translator: translator},
		now:      time.Now,
	}
}

// Send processes one message from the sender's live session. The
// returned ack always carries the sender's original text — a sender
// sees what they typed, never a round-tripped translation.
func (p *Pipeline) Send(ctx context.Context, sender *session.Session, to, text string) (dto.SendAck, error) {
	text = strings.TrimSpace(text)

	// Validated
	if text == "" {
		metrics.MessagesSentTotal.WithLabelValues("rejected").Inc()
		return dto.SendAck{}, ErrEmptyMessage
	}
	if to == sender.Handle {
		metrics.MessagesSentTotal.WithLabelValues("rejected").Inc()
		return dto.SendAck{}, domain.ErrSelfMessage
	}

	// Persisted
	recipient, err := p.store.Users().GetByHandle(ctx, to)
	if err != nil {
		metrics.MessagesSentTotal.WithLabelValues("failure").Inc()
		return dto.SendAck{}, fmt.Errorf("%w: unknown recipient %q", domain.ErrPersistenceUnavailable, to)
	}
	// Room creation and the message row commit together or not at all.
	var msg domain.Message
	err = p.store.WithTx(ctx, func(tx *store.Store) error {
		room, err := tx.Rooms().GetOrCreate(ctx, sender.UserID, recipient.ID)
		if err != nil {
			return err
		}
		msg = domain.Message{
			RoomID:           room.ID,
			SenderID:         sender.UserID,
			Content:          text,
			OriginalLanguage: sender.PreferredLanguage,
			CreatedAt:        p.now().UTC(),
		}
		return tx.Messages().Create(ctx, &msg)
	})
	if err != nil {
		metrics.MessagesSentTotal.WithLabelValues("failure").Inc()
		return dto.SendAck{}, fmt.Errorf("%w: %v", domain.ErrPersistenceUnavailable, err)
	}

	// Routed. An offline recipient is a normal branch, not an error:
	// the row stays undelivered for the redelivery scan.
	if recipSess, online := p.registry.Lookup(to); online {
		p.routeLive(ctx, sender, recipSess, &msg)
	}

	// Acked
	metrics.MessagesSentTotal.WithLabelValues("success").Inc()
	return dto.SendAck{To: to, Text: text, Timestamp: msg.CreatedAt}, nil
}

func (p *Pipeline) routeLive(ctx context.Context, sender *session.Session, recipient *session.Session, msg *domain.Message) {
	text, isTranslated, translatedLang := p.resolver.Resolve(ctx, msg, recipient.PreferredLanguage)

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
	if err := recipient.Conn.Send(dto.EventMessageDelivered, event); err != nil {
		// Connection died between lookup and write; leave the row
		// undelivered so the next login picks it up.
		slog.Info("live delivery failed, deferring", "to", recipient.Handle, "message_id", msg.ID, "error", err)
		return
	}

	recipient.Dedup.Add(msg)
	if err := p.store.Messages().MarkDelivered(ctx, msg.ID, p.now().UTC()); err != nil {
		// The dedup record still shields this session from a re-push.
		slog.Warn("mark delivered failed", "message_id", msg.ID, "error", err)
	}
	metrics.MessagesDeliveredTotal.WithLabelValues("live").Inc()
}
