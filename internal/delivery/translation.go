// Package delivery orchestrates the send pipeline and the offline
// redelivery scan. The one invariant everything here bends around:
// a message is stored durably before any client can observe it.
package delivery

import (
	"context"
	"log/slog"

	"lingo/internal/domain"
	"lingo/internal/store"
	"lingo/internal/translate"
)

// Translator is the slice of the translation orchestrator the delivery
// paths need. Always returns something deliverable.
type Translator interface {
	Translate(ctx context.Context, text, sourceLanguage, targetLanguage string) translate.Result
}

// Resolver renders a stored message for one recipient's language,
// reusing the translation cached on the row when it matches and
// caching a fresh one back when it doesn't. The stored original is
// never touched.
type Resolver struct {
	Store      *store.Store
	Translator Translator
}

// Resolve returns the display text for targetLanguage plus the
// translation markers for the outgoing event. Degrades to the original
// content whenever translation is unavailable.
func (r Resolver) Resolve(ctx context.Context, m *domain.Message, targetLanguage string) (text string, isTranslated bool, translatedLanguage string) {
	if m.OriginalLanguage == "" || m.OriginalLanguage == targetLanguage {
		return m.Content, false, ""
	}
	if m.IsTranslated && m.TranslatedLanguage == targetLanguage && m.TranslatedContent != "" {
		return m.TranslatedContent, true, m.TranslatedLanguage
	}

	res := r.Translator.Translate(ctx, m.Content, m.OriginalLanguage, targetLanguage)
	if !res.IsTranslated {
		return m.Content, false, ""
	}
	if err := r.Store.Messages().CacheTranslation(ctx, m.ID, res.Text, m.OriginalLanguage, targetLanguage); err != nil {
		// Cache miss next time; the recipient still gets the translation.
		slog.Warn("translation cache write failed", "message_id", m.ID, "error", err)
	} else {
		m.TranslatedContent = res.Text
		m.TranslatedLanguage = targetLanguage
		m.IsTranslated = true
	}
	return res.Text, true, targetLanguage
}
