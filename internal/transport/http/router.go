// Package http exposes the service's HTTP surface: auth endpoints,
// read-only roster and history, the websocket upgrade, and the usual
// health and metrics plumbing.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lingo/internal/auth"
	"lingo/internal/coordinator"
	"lingo/internal/domain"
	"lingo/internal/dto"
	"lingo/internal/netutil"
	obsmw "lingo/internal/observability/middleware"
	"lingo/internal/roster"
	"lingo/internal/translate"
	"lingo/internal/transport/ws"
)

type Handler struct {
	auth   *auth.Service
	coord  *coordinator.Coordinator
	roster *roster.Builder
}

func clientIP(r *http.Request) string {
	// If you put the service behind a proxy later, these will matter.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// XFF can be a list: client, proxy1, proxy2...
		ip := strings.TrimSpace(strings.Split(xff, ",")[0])
		if normalized, ok := netutil.NormalizeIP(ip); ok {
			return normalized
		}
	}
	if xr := r.Header.Get("X-Real-IP"); xr != "" {
		if normalized, ok := netutil.NormalizeIP(xr); ok {
			return normalized
		}
	}
	if normalized, ok := netutil.NormalizeIP(r.RemoteAddr); ok {
		return normalized
	}
	return r.RemoteAddr
}

func NewRouter(authSvc *auth.Service, coord *coordinator.Coordinator, rosterBuilder *roster.Builder, corsOrigins string) http.Handler {
	h := &Handler{auth: authSvc, coord: coord, roster: rosterBuilder}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(httprate.LimitByIP(300, time.Minute))

	origins := strings.Split(corsOrigins, ",")
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   originsIfSet(origins),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/v1/auth/register", h.register)
	r.Post("/v1/auth/login", h.login)
	r.Get("/v1/languages", h.languages)

	r.Group(func(pr chi.Router) {
		pr.Use(h.bearerAuth)
		pr.Get("/v1/roster", h.rosterHandler)
		pr.Get("/v1/history", h.history)
	})

	r.Get("/ws", h.serveWS)

	return r
}

func originsIfSet(origins []string) []string {
	out := origins[:0]
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// reqLogger tags handler logs with the ids the outer middleware put in
// the request context.
func reqLogger(r *http.Request) *slog.Logger {
	return slog.With(
		"request_id", obsmw.RequestIDFromContext(r.Context()),
		"trace_id", obsmw.TraceIDFromContext(r.Context()),
	)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": h.coord.Registry().Count(),
	})
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	user, err := h.auth.Register(r.Context(), req.Handle, req.Password, req.PreferredLanguage)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, domain.ErrHandleTaken) {
			status = http.StatusConflict
		}
		http.Error(w, err.Error(), status)
		return
	}
	h.issueToken(w, r, user)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	user, err := h.auth.Login(r.Context(), req.Handle, req.Password, req.PreferredLanguage)
	if err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	h.issueToken(w, r, user)
}

func (h *Handler) issueToken(w http.ResponseWriter, r *http.Request, user *domain.User) {
	token, expiresIn, err := h.auth.IssueToken(user)
	if err != nil {
		reqLogger(r).Error("token issue failed", "handle", user.Handle, "ip", clientIP(r), "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, dto.TokenResponse{
		AccessToken:       token,
		ExpiresIn:         expiresIn,
		UserID:            user.ID.String(),
		Handle:            user.Handle,
		PreferredLanguage: user.PreferredLanguage,
	})
}

func (h *Handler) languages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.LanguagesResponse{Languages: translate.SupportedLanguages()})
}

type ctxKey int

const userIDKey ctxKey = 0

func (h *Handler) bearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get("Authorization"))
		const prefix = "Bearer "
		if !strings.HasPrefix(raw, prefix) {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		userID, _, err := h.auth.Tokens().Verify(strings.TrimSpace(raw[len(prefix):]))
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	})
}

func userFromContext(ctx context.Context) (domain.UserID, bool) {
	id, ok := ctx.Value(userIDKey).(domain.UserID)
	return id, ok
}

func (h *Handler) rosterHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	entries, err := h.roster.Build(r.Context(), userID)
	if err != nil {
		reqLogger(r).Error("roster build failed", "userId", userID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	withHandle := strings.TrimSpace(r.URL.Query().Get("with"))
	if withHandle == "" {
		http.Error(w, "missing with parameter", http.StatusBadRequest)
		return
	}
	language := strings.TrimSpace(r.URL.Query().Get("language"))
	payload, err := h.coord.History(r.Context(), userID, language, withHandle)
	if err != nil {
		reqLogger(r).Error("history fetch failed", "userId", userID, "with", withHandle, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (h *Handler) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.Accept(w, r)
	if err != nil {
		reqLogger(r).Warn("ws handshake failed", "ip", clientIP(r), "error", err)
		return
	}
	// The connection outlives the handshake request; the serve loop owns
	// its lifetime from here.
	h.coord.Serve(r.Context(), conn)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("response encode failed", "error", err)
	}
}
