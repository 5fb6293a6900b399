// Package typing forwards ephemeral is-typing signals between live
// sessions. Nothing here is persisted, queued or retried: an offline
// recipient simply never learns the sender was typing.
package typing

import (
	"lingo/internal/dto"
	"lingo/internal/session"
)

type Router struct {
	registry *session.Registry
}

func NewRouter(registry *session.Registry) *Router {
	return &Router{registry: registry}
}

func (r *Router) Start(from, to string) {
	r.forward(dto.EventTypingStart, from, to)
}

func (r *Router) Stop(from, to string) {
	r.forward(dto.EventTypingStop, from, to)
}

func (r *Router) forward(event, from, to string) {
	recipient, ok := r.registry.Lookup(to)
	if !ok {
		return
	}
	_ = recipient.Conn.Send(event, dto.Typing{From: from})
}
