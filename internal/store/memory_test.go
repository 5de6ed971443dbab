package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Store = (*Memory)(nil)
var _ Store = (*Gorm)(nil)

func TestMemoryBans(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	banned, err := m.IsBanned(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.False(t, banned)

	require.NoError(t, m.AddBan(ctx, Ban{Host: "10.0.0.2", Name: "Mallory"}))
	require.NoError(t, m.AddBan(ctx, Ban{Host: "10.0.0.2", Name: "Mallory again"}))
	assert.ErrorIs(t, m.AddBan(ctx, Ban{}), ErrInvalidBan)

	banned, err = m.IsBanned(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, banned)

	banned, _ = m.IsBanned(ctx, "10.0.0.3")
	assert.False(t, banned)
}

func TestMemoryResultsNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, m.RecordResult(ctx, MatchResult{WinnerName: "old", EndedAt: base}))
	require.NoError(t, m.RecordResult(ctx, MatchResult{WinnerName: "new", EndedAt: base.Add(time.Hour)}))
	require.NoError(t, m.RecordResult(ctx, MatchResult{WinnerName: "stamped"}))

	all, err := m.Results(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "stamped", all[0].WinnerName)
	assert.Equal(t, "new", all[1].WinnerName)
	for _, r := range all {
		assert.NotEqual(t, uuid.Nil, r.ID)
	}

	two, err := m.Results(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
	require.NoError(t, m.Close())
}
