package jobs

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advisorjournal/internal/models"
	"advisorjournal/internal/repository"
)

// Monday 2026-10-19, 08:00 UTC
var monday = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

func seedGoal(t *testing.T, store *repository.MemoryStore, goalType models.GoalType) *models.Goal {
	t.Helper()
	goal := &models.Goal{
		UserID: "user-1",
		Title:  "Gym",
		Type:   goalType,
		Status: models.GoalStatusInProgress,
		Target: 3,
		CompletionStatus: map[string]models.CompletionStatus{
			"2026-10-16": models.CompletionComplete,
		},
	}
	require.NoError(t, store.CreateGoal(context.Background(), goal))
	return goal
}

func newTestResetJob(store *repository.MemoryStore, locker Locker, now time.Time) *WeeklyGoalResetJob {
	job := NewWeeklyGoalResetJob(store, store, locker, time.UTC)
	job.now = func() time.Time { return now }
	return job
}

func completionOf(t *testing.T, store *repository.MemoryStore) map[models.GoalType]int {
	t.Helper()
	goals, err := store.ListGoals(context.Background(), "user-1")
	require.NoError(t, err)
	out := make(map[models.GoalType]int)
	for _, g := range goals {
		out[g.Type] += len(g.CompletionStatus)
	}
	return out
}

func TestResetIfDue(t *testing.T) {
	lastSunday := monday.Add(-9 * time.Hour)
	thisMorning := monday.Add(-7 * time.Hour)

	tests := []struct {
		name      string
		lastReset *time.Time
		wantReset bool
	}{
		{name: "never reset", lastReset: nil, wantReset: true},
		{name: "reset last week", lastReset: &lastSunday, wantReset: true},
		{name: "already reset this week", lastReset: &thisMorning, wantReset: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := repository.NewMemoryStore()
			seedGoal(t, store, models.GoalTypeWeekly)
			seedGoal(t, store, models.GoalTypeMonthly)
			if tt.lastReset != nil {
				require.NoError(t, store.MarkWeeklyReset(ctx, "user-1", *tt.lastReset))
			}

			job := newTestResetJob(store, nil, monday)
			reset, err := job.ResetIfDue(ctx, "user-1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantReset, reset)

			counts := completionOf(t, store)
			assert.Equal(t, 1, counts[models.GoalTypeMonthly])
			if tt.wantReset {
				assert.Zero(t, counts[models.GoalTypeWeekly])
				settings, err := store.GetSettings(ctx, "user-1")
				require.NoError(t, err)
				assert.Equal(t, monday, *settings.LastWeeklyReset)
			} else {
				assert.Equal(t, 1, counts[models.GoalTypeWeekly])
			}
		})
	}
}

func TestResetIfDueUsesConfiguredTimezone(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	seedGoal(t, store, models.GoalTypeWeekly)

	// Sunday 22:00 in New York is already Monday in UTC
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	require.NoError(t, store.MarkWeeklyReset(ctx, "user-1", time.Date(2026, 10, 13, 12, 0, 0, 0, ny)))

	job := NewWeeklyGoalResetJob(store, store, nil, ny)
	job.now = func() time.Time { return time.Date(2026, 10, 19, 2, 0, 0, 0, time.UTC) }

	reset, err := job.ResetIfDue(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, reset)
}

func TestResetIfDueSkipsWhenLockHeld(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	seedGoal(t, store, models.GoalTypeWeekly)

	locker := NewLocalLocker()
	acquired, err := locker.AcquireLock(ctx, "journal:weekly-reset:user-1:2026-10-19", "other-instance", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	job := newTestResetJob(store, locker, monday)
	reset, err := job.ResetIfDue(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, reset)
	assert.Equal(t, 1, completionOf(t, store)[models.GoalTypeWeekly])
}

func TestConcurrentSessionsResetOnce(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	seedGoal(t, store, models.GoalTypeWeekly)
	locker := NewLocalLocker()

	var resets int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job := newTestResetJob(store, locker, monday)
			reset, err := job.ResetIfDue(ctx, "user-1")
			assert.NoError(t, err)
			if reset {
				atomic.AddInt32(&resets, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), resets)
}

func TestWeeklyResetRunCoversKnownUsers(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	seedGoal(t, store, models.GoalTypeWeekly)
	require.NoError(t, store.SaveSettings(ctx, &models.UserSettings{UserID: "user-1"}))

	job := newTestResetJob(store, nil, monday)
	require.NoError(t, job.Run(ctx))
	assert.Zero(t, completionOf(t, store)[models.GoalTypeWeekly])
}

func TestLocalLocker(t *testing.T) {
	ctx := context.Background()
	now := monday
	locker := NewLocalLocker()
	locker.now = func() time.Time { return now }

	ok, _ := locker.AcquireLock(ctx, "k", "a", time.Minute)
	assert.True(t, ok)
	ok, _ = locker.AcquireLock(ctx, "k", "b", time.Minute)
	assert.False(t, ok)

	released, _ := locker.ReleaseLock(ctx, "k", "b")
	assert.False(t, released)

	now = now.Add(2 * time.Minute)
	ok, _ = locker.AcquireLock(ctx, "k", "b", time.Minute)
	assert.True(t, ok, "expired lock can be taken over")

	released, _ = locker.ReleaseLock(ctx, "k", "b")
	assert.True(t, released)
}
