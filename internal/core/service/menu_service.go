package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/campusgate/access-core/internal/core/domain"
	"github.com/campusgate/access-core/internal/core/ports"
)

// MenuService projects the configured menu onto a user's permissions.
type MenuService struct {
	source ports.MenuSource
	authz  ports.Authorizer
	log    zerolog.Logger
}

func NewMenuService(source ports.MenuSource, authz ports.Authorizer, log zerolog.Logger) *MenuService {
	return &MenuService{source: source, authz: authz, log: log}
}

// VisibleMenu returns the subtree of the menu the user may see. The
// permission set is read once per call. Any failure returns an error and no
// menu.
func (s *MenuService) VisibleMenu(ctx context.Context, userID string) ([]domain.MenuNode, error) {
	rows, err := s.source.LoadMenu(ctx)
	if err != nil {
		return nil, fmt.Errorf("visible menu: load: %w", err)
	}
	forest, err := domain.BuildMenuTree(rows)
	if err != nil {
		return nil, fmt.Errorf("visible menu: %w", err)
	}

	held, err := s.authz.Permissions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("visible menu: %w", err)
	}

	visible := pruneMenu(forest, held)
	s.log.Debug().Str("user_id", userID).Int("roots", len(visible)).Msg("menu projected")
	return visible, nil
}

// pruneMenu keeps a node when its requirement list is empty or any listed key
// is held. A hidden node takes its whole subtree with it. A visible node stays
// even when none of its children do.
func pruneMenu(nodes []domain.MenuNode, held domain.PermissionSet) []domain.MenuNode {
	out := make([]domain.MenuNode, 0, len(nodes))
	for _, n := range nodes {
		if len(n.RequiredPermissions) > 0 && !held.HasAny(n.RequiredPermissions...) {
			continue
		}
		n.Children = pruneMenu(n.Children, held)
		if len(n.Children) == 0 {
			n.Children = nil
		}
		out = append(out, n)
	}
	return out
}
