// Package auth implements credential login, token refresh and logout on top
// of the token codec and the Redis session store.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-admin/meridian-admin/internal/shared"
	"github.com/meridian-admin/meridian-admin/internal/token"
	"github.com/meridian-admin/meridian-admin/internal/users"
)

// UserSource exposes the account lookups login needs.
type UserSource interface {
	ByID(ctx context.Context, id int64) (*users.User, error)
	ByUsername(ctx context.Context, username string) (*users.User, error)
	Roles(ctx context.Context, userID int64) ([]int64, []string, error)
	TouchLogin(ctx context.Context, id int64) error
}

// SessionStore records and revokes live tokens.
type SessionStore interface {
	Record(ctx context.Context, prefix string, principalID int64, token string, ttl time.Duration) error
	Exists(ctx context.Context, prefix string, principalID int64, token string) (bool, error)
	Delete(ctx context.Context, prefix string, principalID int64, token string) error
	InvalidateAll(ctx context.Context, prefix string, principalID int64, exceptToken string) (int, error)
}

// LoginRecorder captures login attempts for the audit trail. Implementations
// must not block the login path.
type LoginRecorder interface {
	RecordLogin(ctx context.Context, username, ip, userAgent string, ok bool, msg string)
}

// Service handles authentication flows.
type Service struct {
	logger        *slog.Logger
	userSource    UserSource
	codec         *token.Codec
	sessions      SessionStore
	audit         LoginRecorder
	accessPrefix  string
	refreshPrefix string
}

// NewService builds a Service instance.
func NewService(logger *slog.Logger, userSource UserSource, codec *token.Codec, sessions SessionStore, audit LoginRecorder, accessPrefix, refreshPrefix string) *Service {
	return &Service{
		logger:        logger,
		userSource:    userSource,
		codec:         codec,
		sessions:      sessions,
		audit:         audit,
		accessPrefix:  accessPrefix,
		refreshPrefix: refreshPrefix,
	}
}

// TokenPair is the login and refresh result.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	AccessExpire time.Time `json:"access_token_expire_time"`
	User         *users.User `json:"user,omitempty"`
}

// ClientInfo carries request metadata for the audit trail.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// Login verifies credentials and issues a token pair. Disabled accounts are
// rejected after the password check so the error does not leak which part
// failed first. Accounts without multi-login have every previous token
// revoked on each new login.
func (s *Service) Login(ctx context.Context, username, password string, client ClientInfo) (*TokenPair, error) {
	u, err := s.userSource.ByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.recordLogin(ctx, username, client, false, "unknown username")
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.recordLogin(ctx, username, client, false, "wrong password")
		return nil, shared.ErrInvalidCredentials
	}
	if !u.Active() {
		s.recordLogin(ctx, username, client, false, "account locked")
		return nil, shared.ErrUserLocked
	}

	roleIDs, roleNames, err := s.userSource.Roles(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	u.RoleIDs = roleIDs
	u.RoleNames = roleNames

	if !u.IsMultiLogin {
		s.revokeAll(ctx, u.ID, "")
	}

	pair, err := s.issue(ctx, u)
	if err != nil {
		return nil, err
	}
	if err := s.userSource.TouchLogin(ctx, u.ID); err != nil {
		s.logWarn("touch last login", err)
	}
	s.recordLogin(ctx, username, client, true, "login ok")
	pair.User = u
	return pair, nil
}

// Refresh exchanges a live refresh token for a new pair. The used refresh
// token is revoked so it is single use.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	principalID, err := s.codec.Validate(refreshToken)
	if err != nil {
		return nil, err
	}
	live, err := s.sessions.Exists(ctx, s.refreshPrefix, principalID, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err)
	}
	if !live {
		return nil, token.ErrTokenInvalid
	}

	u, err := s.userByID(ctx, principalID)
	if err != nil {
		return nil, err
	}
	if !u.Active() {
		return nil, shared.ErrUserLocked
	}

	if err := s.sessions.Delete(ctx, s.refreshPrefix, principalID, refreshToken); err != nil {
		s.logWarn("revoke refresh token", err)
	}
	return s.issue(ctx, u)
}

// Logout revokes the presented access token only. Other devices stay
// logged in.
func (s *Service) Logout(ctx context.Context, principalID int64, accessToken string) error {
	if err := s.sessions.Delete(ctx, s.accessPrefix, principalID, accessToken); err != nil {
		return fmt.Errorf("auth: logout: %w", err)
	}
	return nil
}

// LogoutEverywhereElse revokes every token of the principal except the one
// backing the current request.
func (s *Service) LogoutEverywhereElse(ctx context.Context, principalID int64, currentToken string) (int, error) {
	revoked, err := s.sessions.InvalidateAll(ctx, s.accessPrefix, principalID, currentToken)
	if err != nil {
		return 0, fmt.Errorf("auth: logout others: %w", err)
	}
	n, err := s.sessions.InvalidateAll(ctx, s.refreshPrefix, principalID, "")
	if err != nil {
		return revoked, fmt.Errorf("auth: logout others: %w", err)
	}
	return revoked + n, nil
}

func (s *Service) issue(ctx context.Context, u *users.User) (*TokenPair, error) {
	access, refresh, err := s.codec.Issue(u.ID, u.RoleIDs)
	if err != nil {
		return nil, fmt.Errorf("auth: issue tokens: %w", err)
	}
	if err := s.sessions.Record(ctx, s.accessPrefix, u.ID, access, s.codec.AccessTTL()); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err)
	}
	if err := s.sessions.Record(ctx, s.refreshPrefix, u.ID, refresh, s.codec.RefreshTTL()); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err)
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		AccessExpire: time.Now().Add(s.codec.AccessTTL()),
	}, nil
}

func (s *Service) userByID(ctx context.Context, id int64) (*users.User, error) {
	u, err := s.userSource.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	roleIDs, roleNames, err := s.userSource.Roles(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	u.RoleIDs = roleIDs
	u.RoleNames = roleNames
	return u, nil
}

func (s *Service) revokeAll(ctx context.Context, principalID int64, exceptToken string) {
	for _, prefix := range []string{s.accessPrefix, s.refreshPrefix} {
		if _, err := s.sessions.InvalidateAll(ctx, prefix, principalID, exceptToken); err != nil {
			s.logWarn("revoke sessions", err)
		}
	}
}

func (s *Service) recordLogin(ctx context.Context, username string, client ClientInfo, ok bool, msg string) {
	if s.audit != nil {
		s.audit.RecordLogin(ctx, username, client.IP, client.UserAgent, ok, msg)
	}
}

func (s *Service) logWarn(msg string, err error) {
	if s.logger != nil {
		s.logger.Warn(msg, slog.Any("error", err))
	}
}
