package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advisorjournal/internal/models"
	"advisorjournal/internal/repository"
)

func TestCreateGoal(t *testing.T) {
	tests := []struct {
		name       string
		req        CreateGoalRequest
		wantTarget int
		wantErr    bool
	}{
		{name: "target from planned days", req: CreateGoalRequest{Title: "Gym", PlannedDays: []int{1, 3, 5}}, wantTarget: 3},
		{name: "explicit target", req: CreateGoalRequest{Title: "Read", Target: 4}, wantTarget: 4},
		{name: "blank title", req: CreateGoalRequest{Title: "  ", Target: 2}, wantErr: true},
		{name: "day out of range", req: CreateGoalRequest{Title: "Gym", PlannedDays: []int{7}}, wantErr: true},
		{name: "duplicate day", req: CreateGoalRequest{Title: "Gym", PlannedDays: []int{1, 1}}, wantErr: true},
		{name: "target disagrees with days", req: CreateGoalRequest{Title: "Gym", Target: 5, PlannedDays: []int{1, 2}}, wantErr: true},
		{name: "no target", req: CreateGoalRequest{Title: "Gym"}, wantErr: true},
		{name: "unknown type", req: CreateGoalRequest{Title: "Gym", Target: 1, Type: "daily"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := repository.NewMemoryStore()
			planner := NewPlannerService(store, store)

			goal, err := planner.CreateGoal(context.Background(), "user-1", &tt.req)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTarget, goal.Target)
			assert.Equal(t, models.GoalTypeWeekly, goal.Type)
			assert.Equal(t, models.GoalStatusInProgress, goal.Status)

			active, err := store.ActiveWeeklyGoals(context.Background(), "user-1")
			require.NoError(t, err)
			assert.Len(t, active, 1)
		})
	}
}

func TestSetCompletion(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	planner := NewPlannerService(store, store)

	goal, err := planner.CreateGoal(ctx, "user-1", &CreateGoalRequest{Title: "Gym", Target: 3})
	require.NoError(t, err)

	require.NoError(t, planner.SetCompletion(ctx, "user-1", goal.ID, &SetCompletionRequest{Date: "2026-10-19", Status: models.CompletionComplete}))

	goals, err := planner.ListGoals(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, goals, 1)
	assert.Equal(t, models.CompletionComplete, goals[0].CompletionStatus["2026-10-19"])

	err = planner.SetCompletion(ctx, "user-1", goal.ID, &SetCompletionRequest{Date: "19/10/2026", Status: models.CompletionComplete})
	assert.ErrorIs(t, err, ErrValidation)

	err = planner.SetCompletion(ctx, "user-1", goal.ID, &SetCompletionRequest{Date: "2026-10-19", Status: "done"})
	assert.ErrorIs(t, err, ErrValidation)

	err = planner.SetCompletion(ctx, "user-2", goal.ID, &SetCompletionRequest{Date: "2026-10-19", Status: models.CompletionMissed})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDeadlines(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	planner := NewPlannerService(store, store)
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	_, err := planner.CreateDeadline(ctx, "user-1", &CreateDeadlineRequest{Title: "", DueDate: now})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = planner.CreateDeadline(ctx, "user-1", &CreateDeadlineRequest{Title: "Taxes"})
	assert.ErrorIs(t, err, ErrValidation)

	late, err := planner.CreateDeadline(ctx, "user-1", &CreateDeadlineRequest{Title: "Thesis", DueDate: now.Add(72 * time.Hour)})
	require.NoError(t, err)
	soon, err := planner.CreateDeadline(ctx, "user-1", &CreateDeadlineRequest{Title: "Rent", DueDate: now.Add(2 * time.Hour)})
	require.NoError(t, err)
	done, err := planner.CreateDeadline(ctx, "user-1", &CreateDeadlineRequest{Title: "Visa", DueDate: now.Add(-24 * time.Hour)})
	require.NoError(t, err)

	require.NoError(t, planner.SetDeadlineStatus(ctx, "user-1", done.ID, models.DeadlineStatusCompleted))
	assert.ErrorIs(t, planner.SetDeadlineStatus(ctx, "user-1", done.ID, "cancelled"), ErrValidation)

	listed, err := planner.ListDeadlines(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, listed, 3)
	assert.Equal(t, []string{soon.ID, late.ID, done.ID}, []string{listed[0].ID, listed[1].ID, listed[2].ID})
}

func intPtr(n int) *int { return &n }

func goalStatusPtr(s models.GoalStatus) *models.GoalStatus { return &s }

func TestUpdateGoal(t *testing.T) {
	days := func(d ...int) *[]int { return &d }

	tests := []struct {
		name       string
		req        UpdateGoalRequest
		wantTarget int
		wantDays   []int
		wantStatus models.GoalStatus
		wantErr    error
	}{
		{name: "rename", req: UpdateGoalRequest{Title: strPtr(" Lift ")}, wantTarget: 3, wantDays: []int{1, 3, 5}, wantStatus: models.GoalStatusInProgress},
		{name: "new days move the target", req: UpdateGoalRequest{PlannedDays: days(2, 4)}, wantTarget: 2, wantDays: []int{2, 4}, wantStatus: models.GoalStatusInProgress},
		{name: "clearing days keeps the target", req: UpdateGoalRequest{PlannedDays: days()}, wantTarget: 3, wantDays: []int{}, wantStatus: models.GoalStatusInProgress},
		{name: "pause", req: UpdateGoalRequest{Status: goalStatusPtr(models.GoalStatusPaused)}, wantTarget: 3, wantDays: []int{1, 3, 5}, wantStatus: models.GoalStatusPaused},
		{name: "complete", req: UpdateGoalRequest{Status: goalStatusPtr(models.GoalStatusCompleted)}, wantTarget: 3, wantDays: []int{1, 3, 5}, wantStatus: models.GoalStatusCompleted},
		{name: "unknown status", req: UpdateGoalRequest{Status: goalStatusPtr("archived")}, wantErr: ErrValidation},
		{name: "blank title", req: UpdateGoalRequest{Title: strPtr(" ")}, wantErr: ErrValidation},
		{name: "target disagrees with days", req: UpdateGoalRequest{Target: intPtr(5)}, wantErr: ErrValidation},
		{name: "duplicate day", req: UpdateGoalRequest{PlannedDays: days(1, 1)}, wantErr: ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := repository.NewMemoryStore()
			planner := NewPlannerService(store, store)

			goal, err := planner.CreateGoal(ctx, "user-1", &CreateGoalRequest{Title: "Gym", PlannedDays: []int{1, 3, 5}})
			require.NoError(t, err)
			require.NoError(t, planner.SetCompletion(ctx, "user-1", goal.ID, &SetCompletionRequest{Date: "2026-10-19", Status: models.CompletionComplete}))

			updated, err := planner.UpdateGoal(ctx, "user-1", goal.ID, &tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTarget, updated.Target)
			assert.Equal(t, tt.wantStatus, updated.Status)

			stored, err := store.GetGoal(ctx, "user-1", goal.ID)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.wantDays, stored.PlannedDays)
			assert.Equal(t, tt.wantTarget, stored.Target)
			assert.Equal(t, models.CompletionComplete, stored.CompletionStatus["2026-10-19"], "completion history survives an edit")
		})
	}
}

func TestUpdateGoalOwnership(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	planner := NewPlannerService(store, store)

	goal, err := planner.CreateGoal(ctx, "user-1", &CreateGoalRequest{Title: "Gym", Target: 2})
	require.NoError(t, err)

	_, err = planner.UpdateGoal(ctx, "user-2", goal.ID, &UpdateGoalRequest{Title: strPtr("Mine now")})
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, planner.DeleteGoal(ctx, "user-2", goal.ID), repository.ErrNotFound)
}

func TestGoalLifecycleControlsContext(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	planner := NewPlannerService(store, store)
	aggregator := NewContextAggregator(store, store, &staticRetriever{}, 3, time.UTC)
	aggregator.now = func() time.Time { return saturday }

	goal, err := planner.CreateGoal(ctx, "user-1", &CreateGoalRequest{Title: "Gym", Target: 3})
	require.NoError(t, err)
	assert.Contains(t, aggregator.BuildContext(ctx, testSession(), "entry"), `Goal: "Gym"`)

	_, err = planner.UpdateGoal(ctx, "user-1", goal.ID, &UpdateGoalRequest{Status: goalStatusPtr(models.GoalStatusPaused)})
	require.NoError(t, err)
	assert.NotContains(t, aggregator.BuildContext(ctx, testSession(), "entry"), `Goal: "Gym"`)

	_, err = planner.UpdateGoal(ctx, "user-1", goal.ID, &UpdateGoalRequest{Status: goalStatusPtr(models.GoalStatusInProgress)})
	require.NoError(t, err)
	assert.Contains(t, aggregator.BuildContext(ctx, testSession(), "entry"), `Goal: "Gym"`)

	require.NoError(t, planner.DeleteGoal(ctx, "user-1", goal.ID))
	assert.NotContains(t, aggregator.BuildContext(ctx, testSession(), "entry"), `Goal: "Gym"`)
	goals, err := planner.ListGoals(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, goals)
}

func TestDeleteDeadline(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	planner := NewPlannerService(store, store)

	deadline, err := planner.CreateDeadline(ctx, "user-1", &CreateDeadlineRequest{Title: "Rent", DueDate: saturday})
	require.NoError(t, err)

	assert.ErrorIs(t, planner.DeleteDeadline(ctx, "user-2", deadline.ID), repository.ErrNotFound)
	require.NoError(t, planner.DeleteDeadline(ctx, "user-1", deadline.ID))

	listed, err := planner.ListDeadlines(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, listed)
	assert.ErrorIs(t, planner.DeleteDeadline(ctx, "user-1", deadline.ID), repository.ErrNotFound)
}
