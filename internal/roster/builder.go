// Package roster aggregates a user's prior conversations into the
// contact list shown after login: peer, online flag, last-message
// preview, newest first. Strictly read-only.
package roster

import (
	"context"
	"errors"
	"sort"

	"lingo/internal/domain"
	"lingo/internal/dto"
	"lingo/internal/store"
)

const previewRunes = 80

type Builder struct {
	store *store.Store
}

func NewBuilder(st *store.Store) *Builder {
	return &Builder{store: st}
}

// Build lists the user's conversations sorted descending by last
// message time. Rooms without any message yet (created by a history
// fetch that never led anywhere) are omitted. A brand-new user gets an
// empty roster, not an error.
func (b *Builder) Build(ctx context.Context, userID domain.UserID) ([]dto.RosterEntry, error) {
	rooms, err := b.store.Rooms().ForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	entries := make([]dto.RosterEntry, 0, len(rooms))
	for i := range rooms {
		room := &rooms[i]
		last, err := b.store.Messages().LastInRoom(ctx, room.ID)
		if err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				continue
			}
			return nil, err
		}
		peer, err := b.store.Users().GetByID(ctx, room.Peer(userID))
		if err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				continue
			}
			return nil, err
		}
		entries = append(entries, dto.RosterEntry{
			PeerHandle:          peer.Handle,
			IsOnline:            peer.IsOnline,
			LastMessagePreview:  preview(last.Content),
			LastMessageTime:     last.CreatedAt,
			IsLastMessageFromMe: last.SenderID == userID,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastMessageTime.After(entries[j].LastMessageTime)
	})
	return entries, nil
}

func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewRunes {
		return content
	}
	return string(runes[:previewRunes]) + "…"
}
