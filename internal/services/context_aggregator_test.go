package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advisorjournal/internal/models"
	"advisorjournal/internal/repository"
)

// Saturday, October 17 2026
var saturday = time.Date(2026, 10, 17, 15, 4, 0, 0, time.UTC)

func monWedFriGoal(status map[string]models.CompletionStatus) *models.Goal {
	return &models.Goal{
		Title:            "Gym",
		Type:             models.GoalTypeWeekly,
		Status:           models.GoalStatusInProgress,
		Target:           3,
		PlannedDays:      []int{1, 3, 5},
		CompletionStatus: status,
	}
}

func TestGoalStreak(t *testing.T) {
	tests := []struct {
		name string
		goal *models.Goal
		want int
	}{
		{
			name: "last three planned days complete",
			goal: monWedFriGoal(map[string]models.CompletionStatus{
				"2026-10-12": models.CompletionComplete,
				"2026-10-14": models.CompletionComplete,
				"2026-10-16": models.CompletionComplete,
			}),
			want: 3,
		},
		{
			name: "most recent planned day missed",
			goal: monWedFriGoal(map[string]models.CompletionStatus{
				"2026-10-12": models.CompletionComplete,
				"2026-10-14": models.CompletionComplete,
				"2026-10-16": models.CompletionMissed,
			}),
			want: 0,
		},
		{
			name: "unrecorded planned day in the past breaks",
			goal: monWedFriGoal(map[string]models.CompletionStatus{
				"2026-10-12": models.CompletionComplete,
				"2026-10-16": models.CompletionComplete,
			}),
			want: 1,
		},
		{
			name: "missed day outside the plan is ignored",
			goal: monWedFriGoal(map[string]models.CompletionStatus{
				"2026-10-15": models.CompletionMissed,
				"2026-10-16": models.CompletionComplete,
				"2026-10-14": models.CompletionComplete,
			}),
			want: 2,
		},
		{
			name: "no planned days means every past day counts",
			goal: &models.Goal{Title: "Read", Target: 7, CompletionStatus: map[string]models.CompletionStatus{
				"2026-10-17": models.CompletionComplete,
				"2026-10-16": models.CompletionComplete,
				"2026-10-14": models.CompletionComplete,
			}},
			want: 2,
		},
		{
			name: "today without status does not break",
			goal: &models.Goal{Title: "Read", Target: 7, CompletionStatus: map[string]models.CompletionStatus{
				"2026-10-16": models.CompletionComplete,
				"2026-10-15": models.CompletionComplete,
			}},
			want: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GoalStreak(tt.goal, saturday))
		})
	}
}

func TestGoalStreakIsBoundedToThirtyDays(t *testing.T) {
	status := make(map[string]models.CompletionStatus)
	for i := 0; i < 45; i++ {
		status[saturday.AddDate(0, 0, -i).Format(models.DateKeyLayout)] = models.CompletionComplete
	}
	goal := &models.Goal{Title: "Walk", Target: 7, CompletionStatus: status}

	assert.Equal(t, 30, GoalStreak(goal, saturday))
}

func TestWeekCompletions(t *testing.T) {
	goal := monWedFriGoal(map[string]models.CompletionStatus{
		"2026-10-11": models.CompletionComplete, // previous Sunday
		"2026-10-12": models.CompletionComplete,
		"2026-10-14": models.CompletionMissed,
		"2026-10-16": models.CompletionComplete,
		"2026-10-18": models.CompletionComplete, // this Sunday
		"2026-10-19": models.CompletionComplete, // next Monday
		"garbage":    models.CompletionComplete,
	})

	assert.Equal(t, 3, WeekCompletions(goal, saturday))
}

func TestGoalContextLine(t *testing.T) {
	goal := monWedFriGoal(map[string]models.CompletionStatus{
		"2026-10-12": models.CompletionComplete,
		"2026-10-14": models.CompletionComplete,
		"2026-10-16": models.CompletionComplete,
	})
	assert.Equal(t,
		`Goal: "Gym" (Target: 3x/week). Progress this week: 3/3. Current streak: 3 days.`,
		GoalContextLine(goal, saturday))

	single := monWedFriGoal(map[string]models.CompletionStatus{"2026-10-16": models.CompletionComplete})
	assert.Equal(t,
		`Goal: "Gym" (Target: 3x/week). Progress this week: 1/3.`,
		GoalContextLine(single, saturday))
}

func TestMostUrgentDeadlines(t *testing.T) {
	base := saturday
	var all []models.Deadline
	for _, d := range []struct {
		title  string
		offset int
		status models.DeadlineStatus
	}{
		{"g", 7, models.DeadlineStatusPending},
		{"a", 1, models.DeadlineStatusPending},
		{"done", -1, models.DeadlineStatusCompleted},
		{"e", 5, models.DeadlineStatusPending},
		{"b", 2, models.DeadlineStatusPending},
		{"late", -2, models.DeadlineStatusPending},
		{"c", 3, models.DeadlineStatusPending},
		{"d", 4, models.DeadlineStatusPending},
	} {
		all = append(all, models.Deadline{Title: d.title, DueDate: base.AddDate(0, 0, d.offset), Status: d.status})
	}

	got := MostUrgentDeadlines(all, 5)
	var titles []string
	for _, d := range got {
		titles = append(titles, d.Title)
	}
	assert.Equal(t, []string{"late", "a", "b", "c", "d"}, titles)
	assert.Empty(t, MostUrgentDeadlines(nil, 5))
}

func TestMostUrgentDeadlinesIsStable(t *testing.T) {
	due := saturday.Add(time.Hour)
	all := []models.Deadline{
		{Title: "first", DueDate: due, Status: models.DeadlineStatusPending},
		{Title: "second", DueDate: due, Status: models.DeadlineStatusPending},
	}
	got := MostUrgentDeadlines(all, 5)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Title)
	assert.Equal(t, "second", got[1].Title)
}

func TestDuePhrase(t *testing.T) {
	tests := []struct {
		name string
		due  time.Time
		want string
	}{
		{"three days out", saturday.Add(72 * time.Hour), "is due in 3 days"},
		{"just under three days rounds up", saturday.Add(71 * time.Hour), "is due in 3 days"},
		{"just under two days rounds up", saturday.Add(47*time.Hour + 59*time.Minute), "is due in 2 days"},
		{"a day and a half rounds up", saturday.Add(36 * time.Hour), "is due in 2 days"},
		{"a day and a few hours rounds down", saturday.Add(28 * time.Hour), "is due in 1 day"},
		{"ten days out stays in days", saturday.Add(10 * 24 * time.Hour), "is due in 10 days"},
		{"ninety minutes out", saturday.Add(90 * time.Minute), "is due in 2 hours"},
		{"five hours out", saturday.Add(5 * time.Hour), "is due in 5 hours"},
		{"within the minute", saturday.Add(20 * time.Second), "is due now"},
		{"earlier today", saturday.Add(-2 * time.Hour), "was due 2 hours ago"},
		{"yesterday", saturday.Add(-20 * time.Hour), "is Past Due"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DuePhrase(tt.due, saturday))
		})
	}
}

type staticRetriever struct {
	traits []string
	calls  int
	peeks  int
}

func (r *staticRetriever) RetrieveRelevant(context.Context, *models.Session, string, int) []string {
	r.calls++
	return r.traits
}

func (r *staticRetriever) PeekRelevant(context.Context, *models.Session, string, int) []string {
	r.peeks++
	return r.traits
}

type failingDeadlines struct{}

func (failingDeadlines) CreateDeadline(context.Context, *models.Deadline) error { return nil }

func (failingDeadlines) ListDeadlines(context.Context, string) ([]models.Deadline, error) {
	return nil, errors.New("store offline")
}

func (failingDeadlines) SetDeadlineStatus(context.Context, string, string, models.DeadlineStatus) error {
	return nil
}

func (failingDeadlines) DeleteDeadline(context.Context, string, string) error { return nil }

func TestBuildContext(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	sess := testSession()

	require.NoError(t, store.CreateDeadline(ctx, &models.Deadline{
		UserID: sess.UserID, Title: "Tax return", DueDate: saturday.Add(72 * time.Hour), Status: models.DeadlineStatusPending,
	}))
	goal := monWedFriGoal(map[string]models.CompletionStatus{"2026-10-16": models.CompletionComplete})
	goal.UserID = sess.UserID
	require.NoError(t, store.CreateGoal(ctx, goal))

	retriever := &staticRetriever{traits: []string{"User avoids conflict.", "User loves running."}}
	agg := NewContextAggregator(store, store, retriever, 3, time.UTC)
	agg.now = func() time.Time { return saturday }

	got := agg.BuildContext(ctx, sess, "entry")

	want := "The user is writing this journal entry right now.\n" +
		"CURRENT DATE AND TIME: Saturday, October 17, 2026 at 3:04 PM UTC\n\n" +
		"For additional context, here is what we know about the user. Use this to inform your responses:" +
		"\n\nUPCOMING DEADLINES (most urgent first):\n- \"Tax return\" is due in 3 days." +
		"\n\nTHEIR ACTIVE GOALS AND RECENT PERFORMANCE:\n- Goal: \"Gym\" (Target: 3x/week). Progress this week: 1/3." +
		"\n\nKEY PERSONALITY TRAITS:\n- User avoids conflict.\n- User loves running."
	assert.Equal(t, want, got)
	assert.Equal(t, 1, retriever.calls)

	assert.Equal(t, want, agg.BuildPreview(ctx, sess, "entry"))
	assert.Equal(t, 1, retriever.calls, "a preview does not record access")
	assert.Equal(t, 1, retriever.peeks)
}

func TestBuildContextOmitsEmptySections(t *testing.T) {
	store := repository.NewMemoryStore()
	agg := NewContextAggregator(failingDeadlines{}, store, &staticRetriever{}, 3, time.UTC)
	agg.now = func() time.Time { return saturday }

	got := agg.BuildContext(context.Background(), testSession(), "entry")

	assert.True(t, strings.HasPrefix(got, "The user is writing this journal entry right now."))
	assert.NotContains(t, got, "UPCOMING DEADLINES")
	assert.NotContains(t, got, "THEIR ACTIVE GOALS")
	assert.NotContains(t, got, "KEY PERSONALITY TRAITS")
}
