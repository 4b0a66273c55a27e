package service

import (
	"context"
	"log/slog"

	"github.com/aryan0dhankhar/landledger/internal/domain"
	"github.com/aryan0dhankhar/landledger/internal/security"
	"github.com/aryan0dhankhar/landledger/internal/security/audit"
)

// SessionRevoker ends every session a user holds
type SessionRevoker interface {
	RevokeUser(ctx context.Context, userID string) error
}

// AdminService exposes registry-wide listings and account removal
type AdminService struct {
	store    domain.Store
	authz    *security.AuthorizationService
	sessions SessionRevoker
	targets  TargetClearer
	audit    *audit.Logger
	logger   *slog.Logger
}

// NewAdminService creates a new admin service. sessions and targets may be nil.
func NewAdminService(store domain.Store, authz *security.AuthorizationService, sessions SessionRevoker, targets TargetClearer, logger *slog.Logger) *AdminService {
	if logger == nil {
		logger = slog.Default()
	}
	if authz == nil {
		authz = security.NewAuthorizationService(logger)
	}
	return &AdminService{
		store:    store,
		authz:    authz,
		sessions: sessions,
		targets:  targets,
		audit:    audit.NewLogger(logger),
		logger:   logger,
	}
}

func (s *AdminService) require(ctx context.Context, actor *domain.User, perm security.Permission) error {
	if err := s.authz.ValidatePermission(actor.Role, perm); err != nil {
		s.audit.LogDenied(ctx, actor.ID, string(perm))
		return err
	}
	return nil
}

// ListUsers returns every account without password hashes
func (s *AdminService) ListUsers(ctx context.Context, actor *domain.User) ([]domain.User, error) {
	if err := s.require(ctx, actor, security.PermManageUsers); err != nil {
		return nil, err
	}
	users := []domain.User{}
	err := s.store.View(ctx, func(tx domain.Tx) error {
		list, err := tx.ListUsers()
		if err != nil {
			return err
		}
		for _, u := range list {
			users = append(users, u.Public())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

// ListLands returns every registered parcel
func (s *AdminService) ListLands(ctx context.Context, actor *domain.User) ([]*domain.Land, error) {
	if err := s.require(ctx, actor, security.PermListAllLands); err != nil {
		return nil, err
	}
	var lands []*domain.Land
	err := s.store.View(ctx, func(tx domain.Tx) error {
		l, err := tx.ListLands()
		lands = l
		return err
	})
	if err != nil {
		return nil, err
	}
	if lands == nil {
		lands = []*domain.Land{}
	}
	return lands, nil
}

// ListTransfers returns the whole transfer log in recording order
func (s *AdminService) ListTransfers(ctx context.Context, actor *domain.User) ([]*domain.Transfer, error) {
	if err := s.require(ctx, actor, security.PermListAllTransfers); err != nil {
		return nil, err
	}
	var transfers []*domain.Transfer
	err := s.store.View(ctx, func(tx domain.Tx) error {
		t, err := tx.ListTransfers()
		transfers = t
		return err
	})
	if err != nil {
		return nil, err
	}
	if transfers == nil {
		transfers = []*domain.Transfer{}
	}
	return transfers, nil
}

// DeletionResult summarizes the cascade of DeleteUser
type DeletionResult struct {
	UserID             string `json:"userId"`
	LandsRemoved       int    `json:"landsRemoved"`
	TransfersRelabeled int    `json:"transfersRelabeled"`
}

// DeleteUser removes a non-admin account and its parcels. Transfers that
// reference the account keep their rows with the party name relabeled.
func (s *AdminService) DeleteUser(ctx context.Context, actor *domain.User, userID string) (*DeletionResult, error) {
	if err := s.require(ctx, actor, security.PermManageUsers); err != nil {
		return nil, err
	}

	result := &DeletionResult{UserID: userID}
	err := s.store.Update(ctx, func(tx domain.Tx) error {
		target, err := tx.GetUser(userID)
		if err != nil {
			return domain.FromStore(err, "user")
		}
		if target.IsAdmin() {
			return domain.Precondition("admin accounts cannot be deleted")
		}

		removed, err := tx.DeleteLandsByOwner(userID)
		if err != nil {
			return err
		}
		result.LandsRemoved = removed

		transfers, err := tx.ListTransfers()
		if err != nil {
			return err
		}
		for _, t := range transfers {
			if !t.Involves(userID) {
				continue
			}
			if t.FromUserID == userID {
				t.FromUserName = domain.DeletedUserName
			}
			if t.ToUserID == userID {
				t.ToUserName = domain.DeletedUserName
			}
			if err := tx.UpdateTransfer(t); err != nil {
				return err
			}
			result.TransfersRelabeled++
		}

		return tx.DeleteUser(userID)
	})
	if err != nil {
		s.audit.LogDeletion(ctx, actor.ID, userID, "failed", err.Error())
		return nil, domain.FromStore(err, "user")
	}

	if s.targets != nil {
		s.targets.Clear(userID)
	}
	if s.sessions != nil {
		if err := s.sessions.RevokeUser(ctx, userID); err != nil {
			s.logger.Warn("failed to revoke sessions of deleted user",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.audit.LogDeletion(ctx, actor.ID, userID, "success", "")
	s.logger.Info("user deleted",
		slog.String("user_id", userID),
		slog.Int("lands_removed", result.LandsRemoved),
		slog.Int("transfers_relabeled", result.TransfersRelabeled),
	)
	return result, nil
}
