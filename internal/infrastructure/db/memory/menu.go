package memory

import (
	"context"
	"sync"

	"github.com/campusgate/access-core/internal/core/domain"
)

// MenuSource serves a fixed set of menu rows. Implements ports.MenuSource.
type MenuSource struct {
	mu   sync.RWMutex
	rows []domain.MenuNode
}

func NewMenuSource(rows []domain.MenuNode) *MenuSource {
	m := &MenuSource{}
	m.Replace(rows)
	return m
}

func (m *MenuSource) LoadMenu(ctx context.Context) ([]domain.MenuNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.MenuNode, len(m.rows))
	copy(out, m.rows)
	return out, nil
}

// Replace swaps the configured rows.
func (m *MenuSource) Replace(rows []domain.MenuNode) {
	cp := make([]domain.MenuNode, len(rows))
	copy(cp, rows)
	m.mu.Lock()
	m.rows = cp
	m.mu.Unlock()
}
