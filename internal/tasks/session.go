package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vkm/internal/models"
	"github.com/desertthunder/vkm/internal/repositories"
	"github.com/desertthunder/vkm/internal/services"
	"github.com/desertthunder/vkm/internal/shared"
)

// TokenSource tells where a resolved token came from.
type TokenSource string

const (
	SourcePrefetched TokenSource = "pre-fetched"
	SourceCached     TokenSource = "cached"
	SourceLogin      TokenSource = "new"
)

// Authenticator performs the VK login. [*services.AuthFlow] implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, creds services.Credentials) (*services.AccessToken, error)
}

// TokenValidator checks a token against VK.
type TokenValidator func(ctx context.Context, token string) error

// ResolveOpts are the inputs of [Session.Resolve].
type ResolveOpts struct {
	Token       string // pre-fetched token, skips the cache and the login
	Credentials services.Credentials
	Fresh       bool // ignore the cache and log in again
}

// ResolvedToken is the token a command should use.
type ResolvedToken struct {
	Token     string
	UserID    string
	ExpiresAt *time.Time
	Source    TokenSource
}

// Session resolves access tokens from flags, the token cache or a fresh login.
type Session struct {
	auth     Authenticator
	tokens   TokenStore
	validate TokenValidator
	logger   *log.Logger
	now      func() time.Time
}

// NewSession creates a [Session]. validate may be nil to trust cached tokens without a call.
func NewSession(auth Authenticator, tokens TokenStore, validate TokenValidator, logger *log.Logger) *Session {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Session{auth: auth, tokens: tokens, validate: validate, logger: logger, now: time.Now}
}

// Resolve returns a usable access token.
func (s *Session) Resolve(ctx context.Context, progress chan<- ProgressUpdate, opts ResolveOpts) (*ResolvedToken, error) {
	if opts.Token != "" {
		sendProgress(progress, cachedTokenUpdate(SourcePrefetched))
		return &ResolvedToken{Token: opts.Token, Source: SourcePrefetched}, nil
	}

	if !opts.Fresh {
		cached, err := s.cached(ctx, opts.Credentials.Login)
		if err != nil {
			return nil, err
		}
		if cached != nil {
			sendProgress(progress, cachedTokenUpdate(SourceCached))
			return cached, nil
		}
	}

	return s.login(ctx, progress, opts.Credentials)
}

// cached returns the cached token for login when it is still usable, or nil.
func (s *Session) cached(ctx context.Context, login string) (*ResolvedToken, error) {
	if s.tokens == nil {
		return nil, nil
	}

	token, err := s.tokens.Latest(login)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token cache: %w", err)
	}

	if token.Expired(s.now()) {
		s.logger.Debug("cached token expired", "login", token.Login, "expires_at", token.ExpiresAt)
		return nil, nil
	}

	if s.validate != nil {
		if err := s.validate(ctx, token.Token); err != nil {
			var apiErr *services.APIError
			if !errors.As(err, &apiErr) {
				return nil, err
			}
			s.logger.Warn("cached token rejected", "login", token.Login, "err", err)
			if _, err := s.tokens.Delete(token.Login); err != nil {
				s.logger.Warn("failed to drop rejected token", "err", err)
			}
			return nil, nil
		}
	}

	return &ResolvedToken{Token: token.Token, UserID: token.UserID, ExpiresAt: token.ExpiresAt, Source: SourceCached}, nil
}

func (s *Session) login(ctx context.Context, progress chan<- ProgressUpdate, creds services.Credentials) (*ResolvedToken, error) {
	if creds.Login == "" || creds.Password == "" {
		return nil, fmt.Errorf("%w: a login and password are needed to obtain a token", shared.ErrMissingCredentials)
	}
	if s.auth == nil {
		return nil, fmt.Errorf("%w: login flow not configured", shared.ErrServiceUnavailable)
	}

	sendProgress(progress, loginUpdate(creds.Login))
	access, err := s.auth.Authenticate(ctx, creds)
	if err != nil {
		return nil, err
	}

	resolved := &ResolvedToken{
		Token:     access.Token,
		UserID:    access.UserID,
		ExpiresAt: access.ExpiresAt(),
		Source:    SourceLogin,
	}

	if s.tokens != nil {
		cached := models.NewCachedToken(creds.Login, access.Token, access.UserID, resolved.ExpiresAt)
		if err := s.tokens.Save(cached); err != nil {
			s.logger.Warn("failed to cache token", "err", err)
		}
	}

	s.logger.Info("logged in", "login", creds.Login, "user_id", access.UserID)
	return resolved, nil
}

// Status returns the cached token for login, or any login when empty.
func (s *Session) Status(login string) (*models.CachedToken, error) {
	if s.tokens == nil {
		return nil, repositories.ErrNotFound
	}
	return s.tokens.Latest(login)
}

// Logout removes cached tokens for login, or all of them when login is empty.
func (s *Session) Logout(login string) (int64, error) {
	if s.tokens == nil {
		return 0, nil
	}
	if login == "" {
		return s.tokens.DeleteAll()
	}
	return s.tokens.Delete(login)
}
