package warning

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomi-labs/guardian/moderation"
)

func TestLevelForSeverity(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(LevelInfo, LevelForSeverity(1))
	assert.Equal(LevelWarning, LevelForSeverity(3))
	assert.Equal(LevelSevere, LevelForSeverity(6))
	assert.Equal(LevelCritical, LevelForSeverity(10))
}

func TestMemStoreIssueAndPoints(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := NewMemStore()
	key := moderation.UserKey{UserID: 3, GroupID: 4}
	now := time.Now()

	w, err := s.Issue(ctx, key, LevelWarning, 0, "spam", time.Hour, now)
	require.NoError(t, err)
	assert.Equal(5, w.Points, "level default applies when points is zero")

	_, err = s.Issue(ctx, key, LevelSevere, 12, "badword", time.Hour, now)
	require.NoError(t, err)

	total, err := s.ActivePoints(ctx, key, now)
	assert.NoError(err)
	assert.Equal(17, total)

	active, err := s.Active(ctx, key, now)
	assert.NoError(err)
	assert.Len(active, 2)
}

func TestMemStoreExpiryAndSweep(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := NewMemStore()
	key := moderation.UserKey{UserID: 3, GroupID: 4}
	now := time.Now()

	_, _ = s.Issue(ctx, key, LevelWarning, 0, "spam", time.Minute, now)
	_, _ = s.Issue(ctx, key, LevelCritical, 0, "harassment", 0, now)

	// expired warnings stop counting even before any sweep
	total, _ := s.ActivePoints(ctx, key, now.Add(2*time.Minute))
	assert.Equal(20, total)

	assert.NoError(s.Sweep(ctx, now.Add(2*time.Minute)))
	active, _ := s.Active(ctx, key, now.Add(2*time.Minute))
	assert.Len(active, 1)
	assert.Equal(LevelCritical, active[0].Level)

	// warning IDs are unique
	w1, _ := s.Issue(ctx, key, LevelInfo, 0, "a", 0, now)
	w2, _ := s.Issue(ctx, key, LevelInfo, 0, "b", 0, now)
	assert.NotEqual(w1.ID, w2.ID)
}
