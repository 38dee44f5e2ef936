package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"advisorjournal/internal/models"
)

const (
	// MaxContextDeadlines bounds the deadlines section of a context block
	MaxContextDeadlines = 5
	streakLookbackDays  = 30
	contextTimeLayout   = "Monday, January 2, 2006 at 3:04 PM MST"
)

// AttributeRetriever selects the stored traits relevant to an entry.
// PeekRelevant must not record the access.
type AttributeRetriever interface {
	RetrieveRelevant(ctx context.Context, sess *models.Session, entryText string, k int) []string
	PeekRelevant(ctx context.Context, sess *models.Session, entryText string, k int) []string
}

// ContextAggregator renders what is known about the user into one text block for advisor prompts
type ContextAggregator struct {
	deadlines  DeadlineRepository
	goals      GoalRepository
	attributes AttributeRetriever
	relevantK  int
	location   *time.Location
	now        func() time.Time
}

// NewContextAggregator creates a context aggregator. Dates are computed in loc (UTC when nil).
func NewContextAggregator(deadlines DeadlineRepository, goals GoalRepository, attributes AttributeRetriever, relevantK int, loc *time.Location) *ContextAggregator {
	if relevantK <= 0 {
		relevantK = models.DefaultRelevantAttributes
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ContextAggregator{
		deadlines:  deadlines,
		goals:      goals,
		attributes: attributes,
		relevantK:  relevantK,
		location:   loc,
		now:        time.Now,
	}
}

// BuildContext fetches deadlines, goals and relevant traits concurrently and renders the context block.
// A failing feed is logged and rendered as empty.
func (a *ContextAggregator) BuildContext(ctx context.Context, sess *models.Session, entryText string) string {
	return a.build(ctx, sess, entryText, a.attributes.RetrieveRelevant)
}

// BuildPreview renders the same block as BuildContext without marking any trait as accessed
func (a *ContextAggregator) BuildPreview(ctx context.Context, sess *models.Session, entryText string) string {
	return a.build(ctx, sess, entryText, a.attributes.PeekRelevant)
}

type relevanceFunc func(ctx context.Context, sess *models.Session, entryText string, k int) []string

func (a *ContextAggregator) build(ctx context.Context, sess *models.Session, entryText string, relevant relevanceFunc) string {
	now := a.now().In(a.location)

	var (
		deadlines []models.Deadline
		goals     []models.Goal
		traits    []string
	)

	var g errgroup.Group
	g.Go(func() error {
		all, err := a.deadlines.ListDeadlines(ctx, sess.UserID)
		if err != nil {
			log.Printf("⚠️ [CONTEXT] Failed to load deadlines for user %s: %v", sess.UserID, err)
			return nil
		}
		deadlines = MostUrgentDeadlines(all, MaxContextDeadlines)
		return nil
	})
	g.Go(func() error {
		active, err := a.goals.ActiveWeeklyGoals(ctx, sess.UserID)
		if err != nil {
			log.Printf("⚠️ [CONTEXT] Failed to load goals for user %s: %v", sess.UserID, err)
			return nil
		}
		goals = active
		return nil
	})
	g.Go(func() error {
		traits = relevant(ctx, sess, entryText, a.relevantK)
		return nil
	})
	_ = g.Wait()

	return renderContext(now, deadlines, goals, traits)
}

func renderContext(now time.Time, deadlines []models.Deadline, goals []models.Goal, traits []string) string {
	var b strings.Builder

	b.WriteString("The user is writing this journal entry right now.\n")
	b.WriteString("CURRENT DATE AND TIME: " + now.Format(contextTimeLayout) + "\n\n")
	b.WriteString("For additional context, here is what we know about the user. Use this to inform your responses:")

	if len(deadlines) > 0 {
		b.WriteString("\n\nUPCOMING DEADLINES (most urgent first):")
		for _, d := range deadlines {
			fmt.Fprintf(&b, "\n- \"%s\" %s.", d.Title, DuePhrase(d.DueDate, now))
		}
	}

	if len(goals) > 0 {
		b.WriteString("\n\nTHEIR ACTIVE GOALS AND RECENT PERFORMANCE:")
		for i := range goals {
			b.WriteString("\n- " + GoalContextLine(&goals[i], now))
		}
	}

	if len(traits) > 0 {
		b.WriteString("\n\nKEY PERSONALITY TRAITS:\n- ")
		b.WriteString(strings.Join(traits, "\n- "))
	}

	return b.String()
}

// MostUrgentDeadlines keeps pending deadlines, sorts them by due date (stable) and returns at most limit
func MostUrgentDeadlines(all []models.Deadline, limit int) []models.Deadline {
	pending := make([]models.Deadline, 0, len(all))
	for _, d := range all {
		if d.Status == models.DeadlineStatusPending {
			pending = append(pending, d)
		}
	}

	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].DueDate.Before(pending[j].DueDate)
	})

	if limit >= 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending
}

// DuePhrase renders how far away a due date is, e.g. "is due in 3 days" or "is Past Due"
func DuePhrase(due, now time.Time) string {
	due = due.In(now.Location())
	diff := due.Sub(now)

	switch {
	case diff > -time.Minute && diff < time.Minute:
		return "is due now"
	case diff > 0:
		return "is due in " + strings.TrimSpace(roundedRelTime(now, due, ""))
	case sameDay(due, now):
		return "was due " + roundedRelTime(due, now, "ago")
	default:
		return "is Past Due"
	}
}

// dueMagnitudes counts in seconds, minutes, hours, days, months and years. Weeks are not used.
var dueMagnitudes = []humanize.RelTimeMagnitude{
	{D: 2 * time.Second, Format: "1 second %s", DivBy: 1},
	{D: time.Minute, Format: "%d seconds %s", DivBy: time.Second},
	{D: 2 * time.Minute, Format: "1 minute %s", DivBy: 1},
	{D: time.Hour, Format: "%d minutes %s", DivBy: time.Minute},
	{D: 2 * time.Hour, Format: "1 hour %s", DivBy: 1},
	{D: humanize.Day, Format: "%d hours %s", DivBy: time.Hour},
	{D: 2 * humanize.Day, Format: "1 day %s", DivBy: 1},
	{D: humanize.Month, Format: "%d days %s", DivBy: humanize.Day},
	{D: 2 * humanize.Month, Format: "1 month %s", DivBy: 1},
	{D: humanize.Year, Format: "%d months %s", DivBy: humanize.Month},
	{D: 2 * humanize.Year, Format: "1 year %s", DivBy: 1},
	{D: math.MaxInt64, Format: "%d years %s", DivBy: humanize.Year},
}

// roundedRelTime formats the span from earlier to later rounded to the nearest whole unit,
// so 71 hours reads "3 days" rather than "2 days".
func roundedRelTime(earlier, later time.Time, label string) string {
	span := later.Sub(earlier)

	unit := time.Second
	switch {
	case span >= humanize.Year:
		unit = humanize.Year
	case span >= humanize.Month:
		unit = humanize.Month
	case span >= humanize.Day:
		unit = humanize.Day
	case span >= time.Hour:
		unit = time.Hour
	case span >= time.Minute:
		unit = time.Minute
	}

	return humanize.CustomRelTime(earlier, earlier.Add(span.Round(unit)), label, "", dueMagnitudes)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// StartOfWeek returns Monday 00:00 of the week containing t, in t's location
func StartOfWeek(t time.Time) time.Time {
	day := startOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7 // Monday=0 .. Sunday=6
	return day.AddDate(0, 0, -offset)
}

// GoalStreak counts consecutive completed days walking back from today, up to 30 days.
// A planned day that was missed, or lies in the past with no status, ends the walk.
func GoalStreak(goal *models.Goal, now time.Time) int {
	today := startOfDay(now)
	streak := 0

	for i := 0; i < streakLookbackDays; i++ {
		day := today.AddDate(0, 0, -i)
		status, recorded := goal.StatusOn(day)

		if status == models.CompletionComplete {
			streak++
			continue
		}
		if !goal.IsPlannedOn(day.Weekday()) {
			continue
		}
		if status == models.CompletionMissed || (!recorded && day.Before(today)) {
			break
		}
	}
	return streak
}

// WeekCompletions counts days of the current Monday-based week marked complete
func WeekCompletions(goal *models.Goal, now time.Time) int {
	start := StartOfWeek(now)
	end := start.AddDate(0, 0, 7)

	count := 0
	for key, status := range goal.CompletionStatus {
		if status != models.CompletionComplete {
			continue
		}
		day, err := time.ParseInLocation(models.DateKeyLayout, key, now.Location())
		if err != nil {
			continue
		}
		if !day.Before(start) && day.Before(end) {
			count++
		}
	}
	return count
}

// GoalContextLine renders one goal with its weekly progress and, when longer than a day, its streak
func GoalContextLine(goal *models.Goal, now time.Time) string {
	target := goal.EffectiveTarget()
	line := fmt.Sprintf("Goal: \"%s\" (Target: %dx/week). Progress this week: %d/%d.",
		goal.Title, target, WeekCompletions(goal, now), target)

	if streak := GoalStreak(goal, now); streak > 1 {
		line += fmt.Sprintf(" Current streak: %d days.", streak)
	}
	return line
}
