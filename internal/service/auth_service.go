package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/aryan0dhankhar/landledger/internal/domain"
	"github.com/aryan0dhankhar/landledger/internal/security/audit"
	"github.com/aryan0dhankhar/landledger/internal/security/auth"
)

// SessionIssuer opens and closes bearer-token sessions
type SessionIssuer interface {
	Issue(ctx context.Context, user *domain.User) (string, error)
	Revoke(ctx context.Context, token string) (*auth.Claims, error)
	RevokeUser(ctx context.Context, userID string) error
}

// TargetClearer drops per-user verification state on logout
type TargetClearer interface {
	Clear(userID string)
}

// AuthService handles accounts and sessions
type AuthService struct {
	store    domain.Store
	sessions SessionIssuer
	targets  TargetClearer
	audit    *audit.Logger
	logger   *slog.Logger
	hashCost int
	now      func() time.Time
}

// NewAuthService creates a new authentication service. sessions may be nil, in
// which case no tokens are issued (the local command line keeps its own session).
func NewAuthService(store domain.Store, sessions SessionIssuer, targets TargetClearer, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthService{
		store:    store,
		sessions: sessions,
		targets:  targets,
		audit:    audit.NewLogger(logger),
		logger:   logger,
		hashCost: bcrypt.DefaultCost,
		now:      time.Now,
	}
}

// RegisterInput is the sign-up form
type RegisterInput struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// AuthResult is returned when a session is established
type AuthResult struct {
	User  domain.User `json:"user"`
	Token string      `json:"token,omitempty"`
}

// Register creates a user account and signs it in
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	name := strings.TrimSpace(in.Name)
	email := domain.NormalizeEmail(in.Email)
	if name == "" || email == "" || in.Password == "" || in.ConfirmPassword == "" {
		return nil, domain.Validation("please fill in all fields")
	}
	if in.Password != in.ConfirmPassword {
		return nil, domain.Validation("passwords do not match")
	}

	user, err := s.createUser(ctx, name, email, in.Password, domain.RoleUser)
	if err != nil {
		return nil, err
	}

	s.audit.LogAction(ctx, user.ID, "register", "user", user.ID, "success", "")
	s.logger.Info("user registered", slog.String("user_id", user.ID))
	return s.establish(ctx, user)
}

func (s *AuthService) createUser(ctx context.Context, name, email, password string, role domain.Role) (*domain.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		s.logger.Error("failed to hash password", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.store.Update(ctx, func(tx domain.Tx) error {
		if _, err := tx.GetUserByEmail(email); err == nil {
			return domain.Conflict("user with this email already exists")
		} else if !errors.Is(err, domain.ErrRecordNotFound) {
			return err
		}
		return tx.CreateUser(user)
	})
	if err != nil {
		return nil, domain.FromStore(err, "user")
	}
	return user, nil
}

// Login checks credentials and opens a session
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.Validation("email and password are required")
	}

	var user *domain.User
	err := s.store.View(ctx, func(tx domain.Tx) error {
		u, err := tx.GetUserByEmail(email)
		user = u
		return err
	})
	if errors.Is(err, domain.ErrRecordNotFound) {
		s.logger.Info("login attempt with unknown email")
		return nil, domain.Auth("invalid email or password")
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Info("login failed with wrong password", slog.String("user_id", user.ID))
		s.audit.LogAction(ctx, user.ID, "login", "user", user.ID, "denied", "wrong password")
		return nil, domain.Auth("invalid email or password")
	}

	s.audit.LogAction(ctx, user.ID, "login", "user", user.ID, "success", "")
	s.logger.Info("user logged in", slog.String("user_id", user.ID))
	return s.establish(ctx, user)
}

func (s *AuthService) establish(ctx context.Context, user *domain.User) (*AuthResult, error) {
	result := &AuthResult{User: user.Public()}
	if s.sessions == nil {
		return result, nil
	}
	token, err := s.sessions.Issue(ctx, user)
	if err != nil {
		s.logger.Error("failed to issue session", slog.String("error", err.Error()))
		return nil, err
	}
	result.Token = token
	return result, nil
}

// Logout ends the session behind token. Repeating it, or passing a token that
// already expired, succeeds.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if s.sessions == nil || token == "" {
		return nil
	}
	claims, err := s.sessions.Revoke(ctx, token)
	if err != nil {
		return err
	}
	if claims != nil {
		if s.targets != nil {
			s.targets.Clear(claims.UserID)
		}
		s.logger.Info("user logged out", slog.String("user_id", claims.UserID))
	}
	return nil
}

// Actor loads the account behind a session; a missing account is an auth failure
func (s *AuthService) Actor(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.Me(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.Auth("account no longer exists")
	}
	return user, err
}

// Me returns the stored account
func (s *AuthService) Me(ctx context.Context, userID string) (*domain.User, error) {
	var user *domain.User
	err := s.store.View(ctx, func(tx domain.Tx) error {
		u, err := tx.GetUser(userID)
		user = u
		return err
	})
	if err != nil {
		return nil, domain.FromStore(err, "user")
	}
	return user, nil
}

// UpdateProfile changes name and email and refreshes the owner and party
// snapshots held by the user's lands and transfers.
func (s *AuthService) UpdateProfile(ctx context.Context, userID, name, email string) (*domain.User, error) {
	name = strings.TrimSpace(name)
	email = domain.NormalizeEmail(email)
	if name == "" || email == "" {
		return nil, domain.Validation("name and email are required")
	}

	var updated *domain.User
	err := s.store.Update(ctx, func(tx domain.Tx) error {
		user, err := tx.GetUser(userID)
		if err != nil {
			return err
		}
		if other, err := tx.GetUserByEmail(email); err == nil && other.ID != userID {
			return domain.Conflict("email is already used by another account")
		}

		user.Name = name
		user.Email = email
		user.UpdatedAt = s.now().UTC()
		if err := tx.UpdateUser(user); err != nil {
			return err
		}

		lands, err := tx.ListLandsByOwner(userID)
		if err != nil {
			return err
		}
		for _, land := range lands {
			land.OwnerName = name
			land.OwnerEmail = email
			land.UpdatedAt = user.UpdatedAt
			if err := tx.UpdateLand(land); err != nil {
				return err
			}
		}

		transfers, err := tx.ListTransfers()
		if err != nil {
			return err
		}
		for _, t := range transfers {
			if !t.Involves(userID) {
				continue
			}
			if t.FromUserID == userID {
				t.FromUserName, t.FromUserEmail = name, email
			}
			if t.ToUserID == userID {
				t.ToUserName, t.ToUserEmail = name, email
			}
			if err := tx.UpdateTransfer(t); err != nil {
				return err
			}
		}

		updated = user
		return nil
	})
	if err != nil {
		return nil, domain.FromStore(err, "user")
	}

	s.logger.Info("profile updated", slog.String("user_id", userID))
	public := updated.Public()
	return &public, nil
}

// ChangePassword replaces the password after checking the current one
func (s *AuthService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if oldPassword == "" || newPassword == "" {
		return domain.Validation("current and new password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.hashCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	err = s.store.Update(ctx, func(tx domain.Tx) error {
		user, err := tx.GetUser(userID)
		if err != nil {
			return err
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
			return domain.Auth("current password is incorrect")
		}
		user.PasswordHash = string(hash)
		user.UpdatedAt = s.now().UTC()
		return tx.UpdateUser(user)
	})
	if err != nil {
		return domain.FromStore(err, "user")
	}

	s.logger.Info("user changed password", slog.String("user_id", userID))
	return nil
}

// EnsureAdmin seeds an administrator account when the store has no users yet
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	var count int
	err := s.store.View(ctx, func(tx domain.Tx) error {
		users, err := tx.ListUsers()
		count = len(users)
		return err
	})
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	user, err := s.createUser(ctx, "Administrator", domain.NormalizeEmail(email), password, domain.RoleAdmin)
	if err != nil {
		return fmt.Errorf("failed to seed administrator: %w", err)
	}
	s.logger.Info("administrator account seeded", slog.String("user_id", user.ID), slog.String("email", user.Email))
	return nil
}
