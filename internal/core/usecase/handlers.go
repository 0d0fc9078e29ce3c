package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/campusgate/access-core/internal/core/domain"
	"github.com/campusgate/access-core/internal/core/ports"
	"github.com/campusgate/access-core/internal/dispatch"
)

var (
	manageRoles         = domain.Key(domain.ActionManage, domain.ResourceRoles)
	managePermissions   = domain.Key(domain.ActionManage, domain.ResourcePermissions)
	manageSubscriptions = domain.Key(domain.ActionManage, domain.ResourceSubscriptions)
)

// MenuProjector yields the menu visible to a user.
type MenuProjector interface {
	VisibleMenu(ctx context.Context, userID string) ([]domain.MenuNode, error)
}

// Handlers serves every use case against the engine and the store.
type Handlers struct {
	store       ports.RBACRepository
	authz       ports.Authorizer
	credentials ports.CredentialService
	menu        MenuProjector
	log         zerolog.Logger
	now         func() time.Time
}

func NewHandlers(
	store ports.RBACRepository,
	authz ports.Authorizer,
	credentials ports.CredentialService,
	menu MenuProjector,
	log zerolog.Logger,
) *Handlers {
	return &Handlers{
		store:       store,
		authz:       authz,
		credentials: credentials,
		menu:        menu,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Register adds every use case to reg.
func (h *Handlers) Register(reg *dispatch.Registry) {
	dispatch.RegisterQueryFunc(reg, h.getEffectivePermissions)
	dispatch.RegisterQueryFunc(reg, h.checkPermission)
	dispatch.RegisterQueryFunc(reg, h.getUserRoles)
	dispatch.RegisterQueryFunc(reg, h.getActiveSubscription)
	dispatch.RegisterQueryFunc(reg, h.getVisibleMenu)
	dispatch.RegisterQueryFunc(reg, h.validateCredential)
	dispatch.RegisterQueryFunc(reg, h.issueCredential)

	dispatch.RegisterCommandFunc(reg, h.createRole)
	dispatch.RegisterCommandFunc(reg, h.setRoleActive)
	dispatch.RegisterCommandFunc(reg, h.grantPermission)
	dispatch.RegisterCommandFunc(reg, h.revokePermission)
	dispatch.RegisterCommandFunc(reg, h.assignRole)
	dispatch.RegisterCommandFunc(reg, h.revokeRole)
	dispatch.RegisterCommandFunc(reg, h.createSubscription)
	dispatch.RegisterCommandFunc(reg, h.updateSubscriptionStatus)
}
