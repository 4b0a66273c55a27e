package security

import (
	"log/slog"
	"slices"

	"github.com/aryan0dhankhar/landledger/internal/domain"
)

// Permission represents an action permission
type Permission string

const (
	PermRegisterLand     Permission = "register_land"
	PermVerifyLand       Permission = "verify_land"
	PermTransferLand     Permission = "transfer_land"
	PermReadAnyLand      Permission = "read_any_land"
	PermListAllLands     Permission = "list_all_lands"
	PermListAllTransfers Permission = "list_all_transfers"
	PermManageUsers      Permission = "manage_users"
)

// RolePermissions maps roles to their permissions
var RolePermissions = map[domain.Role][]Permission{
	domain.RoleAdmin: {
		PermRegisterLand,
		PermVerifyLand,
		PermTransferLand,
		PermReadAnyLand,
		PermListAllLands,
		PermListAllTransfers,
		PermManageUsers,
	},
	domain.RoleUser: {
		PermRegisterLand,
		PermVerifyLand,
		PermTransferLand,
	},
}

// AuthorizationService handles role checks
type AuthorizationService struct {
	logger *slog.Logger
}

// NewAuthorizationService creates a new authorization service
func NewAuthorizationService(logger *slog.Logger) *AuthorizationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthorizationService{
		logger: logger,
	}
}

// HasPermission checks if a role has a specific permission
func (as *AuthorizationService) HasPermission(role domain.Role, permission Permission) bool {
	return slices.Contains(RolePermissions[role], permission)
}

// ValidatePermission fails with a forbidden error unless the role holds permission
func (as *AuthorizationService) ValidatePermission(role domain.Role, permission Permission) error {
	if !as.HasPermission(role, permission) {
		as.logger.Warn("permission denied",
			slog.String("role", string(role)),
			slog.String("permission", string(permission)),
		)
		return domain.Forbidden("forbidden")
	}
	return nil
}

// GetRolePermissions returns all permissions for a role
func (as *AuthorizationService) GetRolePermissions(role domain.Role) []Permission {
	return RolePermissions[role]
}
