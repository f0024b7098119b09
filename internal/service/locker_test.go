package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/giovanna-britto/Snake-Battle/internal/domain"
)

func TestLocalLocker(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLocalLocker()
	l.clock = func() time.Time { return now }

	unlock, err := l.Acquire(ctx, "match:1", time.Second)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "match:1", time.Second)
	require.ErrorIs(t, err, domain.ErrConflict)

	other, err := l.Acquire(ctx, "match:2", time.Second)
	require.NoError(t, err)
	other()

	unlock()
	unlock()
	again, err := l.Acquire(ctx, "match:1", time.Second)
	require.NoError(t, err)

	// An expired lease is taken over and the stale unlock is a no-op.
	now = now.Add(2 * time.Second)
	taken, err := l.Acquire(ctx, "match:1", time.Second)
	require.NoError(t, err)
	again()
	_, err = l.Acquire(ctx, "match:1", time.Second)
	require.ErrorIs(t, err, domain.ErrConflict)
	taken()
}
