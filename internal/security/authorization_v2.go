package security

import (
	"log/slog"

	"github.com/aryan0dhankhar/landledger/internal/domain"
)

// ResourceType identifies the kind of resource being accessed
type ResourceType string

const (
	ResourceLand     ResourceType = "land"
	ResourceTransfer ResourceType = "transfer"
)

// ResourcePermission describes access to one owned resource
type ResourcePermission struct {
	ResourceType ResourceType
	ResourceID   string
	OwnerID      string
	Permission   Permission // lets roles holding it bypass the ownership check
}

// AuthorizationServiceV2 extends AuthorizationService with resource-level checks
type AuthorizationServiceV2 struct {
	*AuthorizationService
}

// NewAuthorizationServiceV2 creates a new resource-aware authorization service
func NewAuthorizationServiceV2(logger *slog.Logger) *AuthorizationServiceV2 {
	return &AuthorizationServiceV2{AuthorizationService: NewAuthorizationService(logger)}
}

// ValidateResourceAccess allows the owner, or any role holding perm.Permission
func (a *AuthorizationServiceV2) ValidateResourceAccess(actor *domain.User, perm ResourcePermission) error {
	if perm.OwnerID == actor.ID {
		return nil
	}
	if perm.Permission != "" && a.HasPermission(actor.Role, perm.Permission) {
		return nil
	}

	a.logger.Warn("resource access denied",
		slog.String("user_id", actor.ID),
		slog.String("resource_id", perm.ResourceID),
		slog.String("resource_type", string(perm.ResourceType)),
		slog.String("owner_id", perm.OwnerID),
	)
	return domain.Forbidden("access denied: you do not own this %s", perm.ResourceType)
}
