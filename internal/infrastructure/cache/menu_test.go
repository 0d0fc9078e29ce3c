package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusgate/access-core/internal/core/domain"
)

type countingSource struct {
	loads atomic.Int32
	rows  []domain.MenuNode
	err   error
}

func (s *countingSource) LoadMenu(context.Context) ([]domain.MenuNode, error) {
	s.loads.Add(1)
	return s.rows, s.err
}

func TestMenuSource_CachesRows(t *testing.T) {
	inner := &countingSource{rows: []domain.MenuNode{{ID: "home", Route: "/"}}}
	src := NewMenuSource(inner, time.Minute)

	for i := 0; i < 3; i++ {
		rows, err := src.LoadMenu(context.Background())
		require.NoError(t, err)
		require.Len(t, rows, 1)
	}
	assert.EqualValues(t, 1, inner.loads.Load())

	src.Invalidate()
	_, err := src.LoadMenu(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, inner.loads.Load())
}

func TestMenuSource_ExpiresAfterTTL(t *testing.T) {
	inner := &countingSource{rows: []domain.MenuNode{{ID: "home"}}}
	src := NewMenuSource(inner, 20*time.Millisecond)

	_, _ = src.LoadMenu(context.Background())
	time.Sleep(60 * time.Millisecond)
	_, _ = src.LoadMenu(context.Background())
	assert.EqualValues(t, 2, inner.loads.Load())
}

func TestMenuSource_ErrorsAreNotCached(t *testing.T) {
	inner := &countingSource{err: errors.New("db down")}
	src := NewMenuSource(inner, time.Minute)

	_, err := src.LoadMenu(context.Background())
	require.Error(t, err)
	_, err = src.LoadMenu(context.Background())
	require.Error(t, err)
	assert.EqualValues(t, 2, inner.loads.Load())
}

func TestMenuSource_CallerCannotMutateCache(t *testing.T) {
	inner := &countingSource{rows: []domain.MenuNode{{ID: "home", Title: "Home"}}}
	src := NewMenuSource(inner, time.Minute)

	rows, _ := src.LoadMenu(context.Background())
	rows[0].Title = "changed"

	again, _ := src.LoadMenu(context.Background())
	assert.Equal(t, "Home", again[0].Title)
}
