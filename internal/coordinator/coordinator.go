// Package coordinator is the boundary between the transport and the
// chat core: it normalizes inbound events, authenticates connections,
// and fans work out to the registry, delivery pipeline, redelivery
// engine, typing router and roster builder.
package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"lingo/internal/auth"
	"lingo/internal/delivery"
	"lingo/internal/domain"
	"lingo/internal/dto"
	"lingo/internal/roster"
	"lingo/internal/session"
	"lingo/internal/store"
	"lingo/internal/typing"
)

// EventConn is a connection the coordinator can serve: the registry's
// view plus an inbound event stream.
type EventConn interface {
	session.Conn
	ReadEvent() (dto.Envelope, error)
}

type Coordinator struct {
	auth       *auth.Service
	registry   *session.Registry
	pipeline   *delivery.Pipeline
	redelivery *delivery.Redelivery
	typing     *typing.Router
	roster     *roster.Builder
	store      *store.Store
	resolver   delivery.Resolver
}

func New(
	authSvc *auth.Service,
	registry *session.Registry,
	pipeline *delivery.Pipeline,
	redelivery *delivery.Redelivery,
	typingRouter *typing.Router,
	rosterBuilder *roster.Builder,
	st *store.Store,
	translator delivery.Translator,
) *Coordinator {
	return &Coordinator{
		auth:       authSvc,
		registry:   registry,
		pipeline:   pipeline,
		redelivery: redelivery,
		typing:     typingRouter,
		roster:     rosterBuilder,
		store:      st,
		resolver:   delivery.Resolver{Store: st, Translator: translator},
	}
}

func (c *Coordinator) Registry() *session.Registry { return c.registry }

// Serve runs one connection's event loop until the transport errors
// out or the context is done, then releases whatever session the
// connection held.
func (c *Coordinator) Serve(ctx context.Context, conn EventConn) {
	defer func() {
		c.registry.Release(conn)
		conn.Close()
	}()

	var sess *session.Session
	for {
		if ctx.Err() != nil {
			return
		}
		env, err := conn.ReadEvent()
		if err != nil {
			return
		}

		switch env.Type {
		case dto.EventAuthenticate:
			// A failed re-auth leaves any established session alone.
			if s := c.handleAuthenticate(ctx, conn, env.Data); s != nil {
				sess = s
			}
		case dto.EventSendMessage:
			c.handleSend(ctx, conn, sess, env.Data)
		case dto.EventFetchHistory:
			c.handleHistory(ctx, conn, sess, env.Data)
		case dto.EventFetchRoster:
			c.handleRoster(ctx, conn, sess)
		case dto.EventTypingStart, dto.EventTypingStop:
			c.handleTyping(sess, env.Type, env.Data)
		default:
			slog.Debug("ignoring unknown event", "type", env.Type)
		}
	}
}

// NormalizeAuthPayload accepts what clients actually send — a bare
// handle string or a structured object — and returns the one typed
// AuthRequest the rest of the system works with.
func NormalizeAuthPayload(raw json.RawMessage) domain.AuthRequest {
	var handle string
	if err := json.Unmarshal(raw, &handle); err == nil {
		return domain.AuthRequest{Handle: handle}
	}
	var req domain.AuthRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return domain.AuthRequest{}
	}
	return req
}

func (c *Coordinator) handleAuthenticate(ctx context.Context, conn EventConn, raw json.RawMessage) *session.Session {
	req := NormalizeAuthPayload(raw)
	user, err := c.auth.Authenticate(ctx, req)
	if err != nil {
		_ = conn.Send(dto.EventAuthResult, dto.AuthResult{OK: false, Error: authError(err)})
		return nil
	}

	sess := &session.Session{
		Conn:              conn,
		Handle:            user.Handle,
		UserID:            user.ID,
		PreferredLanguage: user.PreferredLanguage,
		Dedup:             session.NewDedup(),
	}
	c.registry.Register(sess)

	_ = conn.Send(dto.EventAuthResult, dto.AuthResult{
		OK:                true,
		Handle:            user.Handle,
		PreferredLanguage: user.PreferredLanguage,
	})
	_ = conn.Send(dto.EventRosterChanged, dto.RosterChanged{Handles: c.registry.Handles()})

	// Backlog drains only after a successful registration; a failed
	// authenticate above never reaches this point.
	if _, err := c.redelivery.Drain(ctx, sess); err != nil {
		slog.Warn("redelivery drain failed", "handle", sess.Handle, "error", err)
	}
	return sess
}

func (c *Coordinator) handleSend(ctx context.Context, conn EventConn, sess *session.Session, raw json.RawMessage) {
	if sess == nil {
		_ = conn.Send(dto.EventSendError, dto.SendError{Reason: "NotAuthenticated"})
		return
	}
	var req dto.SendMessageRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		_ = conn.Send(dto.EventSendError, dto.SendError{Reason: "BadRequest"})
		return
	}

	ack, err := c.pipeline.Send(ctx, sess, req.To, req.Text)
	if err != nil {
		_ = conn.Send(dto.EventSendError, sendError(err))
		return
	}
	_ = conn.Send(dto.EventSendAck, ack)
}

func (c *Coordinator) handleHistory(ctx context.Context, conn EventConn, sess *session.Session, raw json.RawMessage) {
	if sess == nil {
		_ = conn.Send(dto.EventSendError, dto.SendError{Reason: "NotAuthenticated"})
		return
	}
	var req dto.FetchHistoryRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.With == "" {
		_ = conn.Send(dto.EventSendError, dto.SendError{Reason: "BadRequest"})
		return
	}

	payload, err := c.History(ctx, sess.UserID, sess.PreferredLanguage, req.With)
	if err != nil {
		slog.Warn("history fetch failed", "handle", sess.Handle, "with", req.With, "error", err)
		_ = conn.Send(dto.EventSendError, dto.SendError{Reason: "HistoryUnavailable"})
		return
	}
	_ = conn.Send(dto.EventHistoryPayload, payload)
}

// History replays a room's full message list with translations resolved
// for the requesting side. Replay never mutates stored originals and
// never marks anything delivered: expired-but-undelivered messages stay
// readable here even though they will never arrive as a push.
func (c *Coordinator) History(ctx context.Context, me domain.UserID, myLanguage, withHandle string) (dto.HistoryPayload, error) {
	payload := dto.HistoryPayload{With: withHandle, Messages: []dto.HistoryMessage{}}

	if myLanguage == "" {
		self, err := c.store.Users().GetByID(ctx, me)
		if err != nil {
			return payload, err
		}
		myLanguage = self.PreferredLanguage
	}

	peer, err := c.store.Users().GetByHandle(ctx, withHandle)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return payload, nil
		}
		return payload, err
	}
	room, err := c.store.Rooms().GetOrCreate(ctx, me, peer.ID)
	if err != nil {
		return payload, err
	}
	msgs, err := c.store.Messages().ListRoom(ctx, room.ID)
	if err != nil {
		return payload, err
	}

	for i := range msgs {
		m := &msgs[i]
		hm := dto.HistoryMessage{
			MessageID:    m.ID.String(),
			FromMe:       m.SenderID == me,
			Text:         m.Content,
			OriginalText: m.Content,
			Timestamp:    m.CreatedAt,
		}
		if hm.FromMe {
			hm.From = ""
		} else {
			hm.From = peer.Handle
			text, isTranslated, translatedLang := c.resolver.Resolve(ctx, m, myLanguage)
			hm.Text = text
			hm.IsTranslated = isTranslated
			hm.OriginalLanguage = m.OriginalLanguage
			hm.TranslatedLanguage = translatedLang
		}
		payload.Messages = append(payload.Messages, hm)
	}
	return payload, nil
}

func (c *Coordinator) handleRoster(ctx context.Context, conn EventConn, sess *session.Session) {
	if sess == nil {
		_ = conn.Send(dto.EventSendError, dto.SendError{Reason: "NotAuthenticated"})
		return
	}
	entries, err := c.roster.Build(ctx, sess.UserID)
	if err != nil {
		slog.Warn("roster build failed", "handle", sess.Handle, "error", err)
		_ = conn.Send(dto.EventSendError, dto.SendError{Reason: "RosterUnavailable"})
		return
	}
	_ = conn.Send(dto.EventRosterPayload, entries)
}

func (c *Coordinator) handleTyping(sess *session.Session, event string, raw json.RawMessage) {
	if sess == nil {
		return
	}
	var req dto.TypingRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.To == "" {
		return
	}
	if event == dto.EventTypingStart {
		c.typing.Start(sess.Handle, req.To)
	} else {
		c.typing.Stop(sess.Handle, req.To)
	}
}

func authError(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid credentials"
	case errors.Is(err, domain.ErrHandleTaken):
		return "handle already taken"
	case errors.Is(err, domain.ErrUnsupportedLanguage):
		return "unsupported language"
	default:
		return "authentication failed"
	}
}

func sendError(err error) dto.SendError {
	switch {
	case errors.Is(err, domain.ErrSelfMessage):
		return dto.SendError{Reason: "SelfMessageError", Detail: domain.ErrSelfMessage.Error()}
	case errors.Is(err, domain.ErrPersistenceUnavailable):
		return dto.SendError{Reason: "PersistenceError", Detail: domain.ErrPersistenceUnavailable.Error()}
	case errors.Is(err, delivery.ErrEmptyMessage):
		return dto.SendError{Reason: "EmptyMessageError", Detail: delivery.ErrEmptyMessage.Error()}
	default:
		return dto.SendError{Reason: "SendFailed"}
	}
}
