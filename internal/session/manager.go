package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aryan0dhankhar/landledger/internal/domain"
	"github.com/aryan0dhankhar/landledger/internal/security/auth"
)

// Manager issues bearer tokens and checks them against the session store
type Manager struct {
	tokens *auth.TokenManager
	store  Store
	ttl    time.Duration
	logger *slog.Logger
}

func NewManager(tokens *auth.TokenManager, store Store, ttl time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{tokens: tokens, store: store, ttl: ttl, logger: logger}
}

// Issue opens a session for user and returns its token
func (m *Manager) Issue(ctx context.Context, user *domain.User) (string, error) {
	sessionID := uuid.NewString()
	token, err := m.tokens.GenerateToken(user.ID, user.Email, string(user.Role), sessionID, m.ttl)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	if err := m.store.Put(ctx, user.ID, sessionID, m.ttl); err != nil {
		return "", err
	}
	return token, nil
}

// Validate returns the claims of a live session. Signature, expiry and revocation
// failures all come back as an auth error.
func (m *Manager) Validate(ctx context.Context, token string) (*auth.Claims, error) {
	claims, err := m.tokens.ValidateToken(token)
	if errors.Is(err, auth.ErrTokenExpired) {
		return nil, &domain.Error{Kind: domain.ErrAuth, Message: "session expired", Err: err}
	}
	if err != nil {
		return nil, &domain.Error{Kind: domain.ErrAuth, Message: "invalid token", Err: err}
	}
	ok, err := m.store.Exists(ctx, claims.UserID, claims.SessionID())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.Auth("session has ended")
	}
	return claims, nil
}

// Revoke ends the session behind token. Unknown, expired and malformed tokens
// are ignored so logout can be repeated.
func (m *Manager) Revoke(ctx context.Context, token string) (*auth.Claims, error) {
	claims, err := m.tokens.ValidateToken(token)
	if err != nil {
		m.logger.Debug("revoke ignored unusable token", slog.String("error", err.Error()))
		return nil, nil
	}
	if err := m.store.Delete(ctx, claims.UserID, claims.SessionID()); err != nil {
		return nil, err
	}
	return claims, nil
}

// RevokeUser ends every session of a user
func (m *Manager) RevokeUser(ctx context.Context, userID string) error {
	n, err := m.store.DeleteUser(ctx, userID)
	if err != nil {
		return err
	}
	m.logger.Info("user sessions revoked", slog.String("user_id", userID), slog.Int("count", n))
	return nil
}
