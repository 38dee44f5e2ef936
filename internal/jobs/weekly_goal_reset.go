package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"advisorjournal/internal/repository"
	"advisorjournal/internal/services"
)

// WeeklyGoalResetJobName is the scheduler name of the weekly reset
const WeeklyGoalResetJobName = "weekly-goal-reset"

const resetLockTTL = 5 * time.Minute

// Locker guards one reset per user-week across instances.
// *services.RedisService satisfies it.
type Locker interface {
	AcquireLock(ctx context.Context, key, value string, expiration time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, value string) (bool, error)
}

// WeeklyGoalResetJob clears the completion map of every weekly goal once per week.
// It runs on a schedule for all users and on demand when a session starts.
type WeeklyGoalResetJob struct {
	goals      services.GoalRepository
	settings   services.SettingsRepository
	locker     Locker
	location   *time.Location
	instanceID string
	now        func() time.Time
}

// NewWeeklyGoalResetJob creates the reset job. A nil locker falls back to an in-process lock.
func NewWeeklyGoalResetJob(goals services.GoalRepository, settings services.SettingsRepository, locker Locker, location *time.Location) *WeeklyGoalResetJob {
	if locker == nil {
		locker = NewLocalLocker()
	}
	if location == nil {
		location = time.UTC
	}
	return &WeeklyGoalResetJob{
		goals:      goals,
		settings:   settings,
		locker:     locker,
		location:   location,
		instanceID: uuid.New().String(),
		now:        time.Now,
	}
}

// Run resets every known user whose marker predates this week
func (j *WeeklyGoalResetJob) Run(ctx context.Context) error {
	userIDs, err := j.settings.ListUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	reset := 0
	for _, userID := range userIDs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		done, err := j.ResetIfDue(ctx, userID)
		if err != nil {
			log.Printf("⚠️ [WEEKLY-RESET] Failed to reset goals for user %s: %v", userID, err)
			continue
		}
		if done {
			reset++
		}
	}

	log.Printf("✅ [WEEKLY-RESET] Reset weekly goals for %d of %d users", reset, len(userIDs))
	return nil
}

// ResetIfDue clears the user's weekly completion maps when the last reset happened before
// this week's Monday 00:00. It reports whether this call performed the reset.
func (j *WeeklyGoalResetJob) ResetIfDue(ctx context.Context, userID string) (bool, error) {
	weekStart := services.StartOfWeek(j.now().In(j.location))

	due, err := j.isDue(ctx, userID, weekStart)
	if err != nil || !due {
		return false, err
	}

	lockKey := fmt.Sprintf("journal:weekly-reset:%s:%s", userID, weekStart.Format("2006-01-02"))
	acquired, err := j.locker.AcquireLock(ctx, lockKey, j.instanceID, resetLockTTL)
	if err != nil {
		return false, fmt.Errorf("failed to acquire reset lock: %w", err)
	}
	if !acquired {
		return false, nil
	}
	defer func() {
		if _, err := j.locker.ReleaseLock(context.WithoutCancel(ctx), lockKey, j.instanceID); err != nil {
			log.Printf("⚠️ [WEEKLY-RESET] Failed to release lock %s: %v", lockKey, err)
		}
	}()

	// Another device may have finished the reset between the first check and the lock
	if due, err = j.isDue(ctx, userID, weekStart); err != nil || !due {
		return false, err
	}

	cleared, err := j.goals.ResetWeeklyCompletion(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to clear weekly goals: %w", err)
	}
	if err := j.settings.MarkWeeklyReset(ctx, userID, j.now()); err != nil {
		return false, fmt.Errorf("failed to record weekly reset: %w", err)
	}

	log.Printf("🔄 [WEEKLY-RESET] Cleared %d weekly goals for user %s", cleared, userID)
	return true, nil
}

func (j *WeeklyGoalResetJob) isDue(ctx context.Context, userID string, weekStart time.Time) (bool, error) {
	settings, err := j.settings.GetSettings(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load reset marker: %w", err)
	}
	return settings.LastWeeklyReset == nil || settings.LastWeeklyReset.Before(weekStart), nil
}

// LocalLocker is an in-process Locker for single-instance deployments
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]localLock
	now   func() time.Time
}

type localLock struct {
	value     string
	expiresAt time.Time
}

// NewLocalLocker creates an in-process locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]localLock), now: time.Now}
}

// AcquireLock takes the lock unless an unexpired holder exists
func (l *LocalLocker) AcquireLock(_ context.Context, key, value string, expiration time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if held, ok := l.locks[key]; ok && now.Before(held.expiresAt) {
		return false, nil
	}
	l.locks[key] = localLock{value: value, expiresAt: now.Add(expiration)}
	return true, nil
}

// ReleaseLock drops the lock if value still holds it
func (l *LocalLocker) ReleaseLock(_ context.Context, key, value string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	held, ok := l.locks[key]
	if !ok || held.value != value {
		return false, nil
	}
	delete(l.locks, key)
	return true, nil
}
