// Package cache holds in-process caches of configuration data. Authorization
// decisions are never cached here.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/campusgate/access-core/internal/core/domain"
	"github.com/campusgate/access-core/internal/core/ports"
	"github.com/campusgate/access-core/pkg/metrics"
)

const menuKey = "menu"

// MenuSource caches the rows of an underlying ports.MenuSource for ttl.
type MenuSource struct {
	inner ports.MenuSource
	lru   *expirable.LRU[string, []domain.MenuNode]
	group singleflight.Group
}

var _ ports.MenuSource = (*MenuSource)(nil)

func NewMenuSource(inner ports.MenuSource, ttl time.Duration) *MenuSource {
	return &MenuSource{
		inner: inner,
		lru:   expirable.NewLRU[string, []domain.MenuNode](1, nil, ttl),
	}
}

func (m *MenuSource) LoadMenu(ctx context.Context) ([]domain.MenuNode, error) {
	if rows, ok := m.lru.Get(menuKey); ok {
		metrics.CacheLookupsTotal.WithLabelValues("menu", "hit").Inc()
		return cloneRows(rows), nil
	}
	metrics.CacheLookupsTotal.WithLabelValues("menu", "miss").Inc()

	v, err, _ := m.group.Do(menuKey, func() (any, error) {
		rows, err := m.inner.LoadMenu(ctx)
		if err != nil {
			return nil, err
		}
		m.lru.Add(menuKey, rows)
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneRows(v.([]domain.MenuNode)), nil
}

// Invalidate drops the cached rows.
func (m *MenuSource) Invalidate() {
	m.lru.Remove(menuKey)
}

func cloneRows(rows []domain.MenuNode) []domain.MenuNode {
	out := make([]domain.MenuNode, len(rows))
	copy(out, rows)
	return out
}
