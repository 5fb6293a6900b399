// Package auth owns identities: argon2id credentials, HS256 access
// tokens, and the account flows shared by the HTTP endpoints and the
// socket authenticate event.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"lingo/internal/domain"
	"lingo/internal/observability/metrics"
	"lingo/internal/store"
	"lingo/internal/translate"

	"github.com/google/uuid"
)

type Service struct {
	store       *store.Store
	hasher      *PasswordHasher
	tokens      *Tokens
	defaultLang string
	now         func() time.Time
}

func NewService(st *store.Store, hasher *PasswordHasher, tokens *Tokens, defaultLang string) *Service {
	if defaultLang == "" || !translate.IsSupported(defaultLang) {
		defaultLang = "English"
	}
	return &Service{store: st, hasher: hasher, tokens: tokens, defaultLang: defaultLang, now: time.Now}
}

func (s *Service) Tokens() *Tokens { return s.tokens }

// Register creates a new identity. The handle must be free; the
// password is optional (a handle registered without one stays open).
func (s *Service) Register(ctx context.Context, handle, password, language string) (*domain.User, error) {
	result := "success"
	defer func() { metrics.AuthAttemptsTotal.WithLabelValues("register", result).Inc() }()

	handle = strings.TrimSpace(handle)
	if handle == "" {
		result = "failure"
		return nil, domain.ErrInvalidCredentials
	}
	language, err := s.resolveLanguage(language, true)
	if err != nil {
		result = "failure"
		return nil, err
	}

	if _, err := s.store.Users().GetByHandle(ctx, handle); err == nil {
		result = "failure"
		return nil, domain.ErrHandleTaken
	} else if !errors.Is(err, store.ErrRecordNotFound) {
		result = "failure"
		return nil, err
	}

	now := s.now().UTC()
	user := &domain.User{
		ID:                uuid.New(),
		Handle:            handle,
		PreferredLanguage: language,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if password != "" {
		hash, salt, params, err := s.hasher.Hash(password)
		if err != nil {
			result = "failure"
			return nil, err
		}
		user.PasswordHash, user.PasswordSalt, user.PasswordParams = hash, salt, params
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		result = "failure"
		return nil, err
	}
	return user, nil
}

// Login authenticates an existing identity and refreshes its preferred
// language when the client sent one.
func (s *Service) Login(ctx context.Context, handle, password, language string) (*domain.User, error) {
	result := "success"
	defer func() { metrics.AuthAttemptsTotal.WithLabelValues("login", result).Inc() }()

	user, err := s.verify(ctx, handle, password)
	if err != nil {
		result = "failure"
		return nil, err
	}
	if err := s.refreshLanguage(ctx, user, language); err != nil {
		result = "failure"
		return nil, err
	}
	return user, nil
}

// Authenticate resolves a normalized socket AuthRequest: a token, a
// known handle (password required only if the handle was claimed with
// one), or an unseen handle which is signed up on the spot.
func (s *Service) Authenticate(ctx context.Context, req domain.AuthRequest) (*domain.User, error) {
	result := "success"
	defer func() { metrics.AuthAttemptsTotal.WithLabelValues("socket", result).Inc() }()

	if req.Token != "" {
		userID, _, err := s.tokens.Verify(req.Token)
		if err != nil {
			result = "failure"
			return nil, domain.ErrInvalidCredentials
		}
		user, err := s.store.Users().GetByID(ctx, userID)
		if err != nil {
			result = "failure"
			return nil, domain.ErrInvalidCredentials
		}
		if err := s.refreshLanguage(ctx, user, req.PreferredLanguage); err != nil {
			result = "failure"
			return nil, err
		}
		return user, nil
	}

	handle := strings.TrimSpace(req.Handle)
	if handle == "" {
		result = "failure"
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.store.Users().GetByHandle(ctx, handle)
	switch {
	case err == nil:
		if user.HasPassword() && !s.hasher.Verify(req.Password, user.PasswordHash, user.PasswordSalt, user.PasswordParams) {
			result = "failure"
			return nil, domain.ErrInvalidCredentials
		}
		if err := s.refreshLanguage(ctx, user, req.PreferredLanguage); err != nil {
			result = "failure"
			return nil, err
		}
		return user, nil
	case errors.Is(err, store.ErrRecordNotFound):
		user, err := s.Register(ctx, handle, req.Password, req.PreferredLanguage)
		if err != nil {
			result = "failure"
			return nil, err
		}
		return user, nil
	default:
		result = "failure"
		return nil, err
	}
}

// IssueToken mints an access token for the user.
func (s *Service) IssueToken(user *domain.User) (string, int64, error) {
	return s.tokens.Issue(user)
}

func (s *Service) verify(ctx context.Context, handle, password string) (*domain.User, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, domain.ErrInvalidCredentials
	}
	user, err := s.store.Users().GetByHandle(ctx, handle)
	if err != nil {
		// Don't leak whether the handle exists.
		return nil, domain.ErrInvalidCredentials
	}
	if user.HasPassword() && !s.hasher.Verify(password, user.PasswordHash, user.PasswordSalt, user.PasswordParams) {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

func (s *Service) resolveLanguage(language string, strict bool) (string, error) {
	language = strings.TrimSpace(language)
	if language == "" {
		return s.defaultLang, nil
	}
	if !translate.IsSupported(language) {
		if strict {
			return "", domain.ErrUnsupportedLanguage
		}
		slog.Warn("ignoring unsupported preferred language", "language", language)
		return "", nil
	}
	return language, nil
}

func (s *Service) refreshLanguage(ctx context.Context, user *domain.User, language string) error {
	resolved, err := s.resolveLanguage(language, false)
	if err != nil {
		return err
	}
	if language == "" {
		// No preference sent; keep whatever is stored.
		return nil
	}
	if resolved == "" || resolved == user.PreferredLanguage {
		return nil
	}
	if err := s.store.Users().UpdateLanguage(ctx, user.ID, resolved); err != nil {
		return err
	}
	user.PreferredLanguage = resolved
	return nil
}
