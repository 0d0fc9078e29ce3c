package ports

import (
	"context"

	"github.com/campusgate/access-core/internal/core/domain"
)

// MenuSource supplies the configured menu as flat rows keyed by parent id.
type MenuSource interface {
	LoadMenu(ctx context.Context) ([]domain.MenuNode, error)
}
