package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"advisorjournal/internal/models"
)

// MemoryStore is an in-process implementation of every repository, used in tests
// and when the server runs without MONGODB_URI.
type MemoryStore struct {
	mu sync.Mutex

	seq        int64
	entries    map[string]*storedEntry
	goals      map[string]*models.Goal
	goalOrder  map[string]int64
	deadlines  map[string]*models.Deadline
	attributes map[string]*storedAttribute
	turns      []models.SummitTurn
	settings   map[string]*models.UserSettings
}

type storedEntry struct {
	entry models.Entry
	seq   int64
}

type storedAttribute struct {
	attr models.UserAttribute
	seq  int64
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:    make(map[string]*storedEntry),
		goals:      make(map[string]*models.Goal),
		goalOrder:  make(map[string]int64),
		deadlines:  make(map[string]*models.Deadline),
		attributes: make(map[string]*storedAttribute),
		settings:   make(map[string]*models.UserSettings),
	}
}

func (s *MemoryStore) next() int64 {
	s.seq++
	return s.seq
}

// --- entries ---

func (s *MemoryStore) CreateEntry(_ context.Context, entry *models.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	stored := *entry
	stored.Feedback = copyFeedback(entry.Feedback)
	s.entries[entry.ID] = &storedEntry{entry: stored, seq: s.next()}
	return nil
}

func (s *MemoryStore) GetEntry(_ context.Context, userID, entryID string) (*models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.entries[entryID]
	if !ok || stored.entry.UserID != userID {
		return nil, ErrNotFound
	}
	entry := stored.entry
	entry.Feedback = copyFeedback(stored.entry.Feedback)
	return &entry, nil
}

func (s *MemoryStore) ListEntries(_ context.Context, userID string, limit int) ([]models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*storedEntry
	for _, stored := range s.entries {
		if stored.entry.UserID == userID {
			matched = append(matched, stored)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq > matched[j].seq })

	entries := make([]models.Entry, 0, len(matched))
	for _, stored := range matched {
		if limit > 0 && len(entries) == limit {
			break
		}
		entry := stored.entry
		entry.Feedback = copyFeedback(stored.entry.Feedback)
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *MemoryStore) AttachFeedback(_ context.Context, userID, entryID string, feedback models.FeedbackSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.entries[entryID]
	if !ok || stored.entry.UserID != userID || stored.entry.Feedback != nil {
		return ErrNotFound
	}
	stored.entry.Feedback = copyFeedback(feedback)
	if stored.entry.Feedback == nil {
		stored.entry.Feedback = models.FeedbackSet{}
	}
	return nil
}

func (s *MemoryStore) DeleteEntry(_ context.Context, userID, entryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.entries[entryID]
	if !ok || stored.entry.UserID != userID {
		return ErrNotFound
	}
	delete(s.entries, entryID)
	return nil
}

func copyFeedback(in models.FeedbackSet) models.FeedbackSet {
	if in == nil {
		return nil
	}
	out := make(models.FeedbackSet, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// --- goals ---

func (s *MemoryStore) CreateGoal(_ context.Context, goal *models.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if goal.ID == "" {
		goal.ID = uuid.NewString()
	}
	if goal.CreatedAt.IsZero() {
		goal.CreatedAt = time.Now()
	}
	s.goals[goal.ID] = copyGoal(goal)
	s.goalOrder[goal.ID] = s.next()
	return nil
}

func (s *MemoryStore) GetGoal(_ context.Context, userID, goalID string) (*models.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.goals[goalID]
	if !ok || g.UserID != userID {
		return nil, ErrNotFound
	}
	return copyGoal(g), nil
}

func (s *MemoryStore) ListGoals(_ context.Context, userID string) ([]models.Goal, error) {
	return s.filterGoals(func(g *models.Goal) bool { return g.UserID == userID }), nil
}

func (s *MemoryStore) ActiveWeeklyGoals(_ context.Context, userID string) ([]models.Goal, error) {
	return s.filterGoals(func(g *models.Goal) bool {
		return g.UserID == userID && g.Type == models.GoalTypeWeekly && g.Status == models.GoalStatusInProgress
	}), nil
}

func (s *MemoryStore) filterGoals(keep func(*models.Goal) bool) []models.Goal {
	s.mu.Lock()
	defer s.mu.Unlock()

	var goals []models.Goal
	for _, g := range s.goals {
		if keep(g) {
			goals = append(goals, *copyGoal(g))
		}
	}
	sort.Slice(goals, func(i, j int) bool { return s.goalOrder[goals[i].ID] < s.goalOrder[goals[j].ID] })
	return goals
}

func (s *MemoryStore) SetCompletion(_ context.Context, userID, goalID, dateKey string, status models.CompletionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.goals[goalID]
	if !ok || g.UserID != userID {
		return ErrNotFound
	}
	if g.CompletionStatus == nil {
		g.CompletionStatus = make(map[string]models.CompletionStatus)
	}
	g.CompletionStatus[dateKey] = status
	return nil
}

func (s *MemoryStore) ResetWeeklyCompletion(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed int64
	for _, g := range s.goals {
		if g.UserID == userID && g.Type == models.GoalTypeWeekly && g.CompletionStatus != nil {
			g.CompletionStatus = nil
			changed++
		}
	}
	return changed, nil
}

func (s *MemoryStore) UpdateGoal(_ context.Context, goal *models.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.goals[goal.ID]
	if !ok || g.UserID != goal.UserID {
		return ErrNotFound
	}
	g.Title = goal.Title
	g.Description = goal.Description
	g.Status = goal.Status
	g.Target = goal.Target
	g.PlannedDays = append([]int(nil), goal.PlannedDays...)
	return nil
}

func (s *MemoryStore) DeleteGoal(_ context.Context, userID, goalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.goals[goalID]
	if !ok || g.UserID != userID {
		return ErrNotFound
	}
	delete(s.goals, goalID)
	delete(s.goalOrder, goalID)
	return nil
}

func copyGoal(g *models.Goal) *models.Goal {
	out := *g
	out.PlannedDays = append([]int(nil), g.PlannedDays...)
	if g.CompletionStatus != nil {
		out.CompletionStatus = make(map[string]models.CompletionStatus, len(g.CompletionStatus))
		for k, v := range g.CompletionStatus {
			out.CompletionStatus[k] = v
		}
	}
	return &out
}

// --- deadlines ---

func (s *MemoryStore) CreateDeadline(_ context.Context, deadline *models.Deadline) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if deadline.ID == "" {
		deadline.ID = uuid.NewString()
	}
	if deadline.CreatedAt.IsZero() {
		deadline.CreatedAt = time.Now()
	}
	stored := *deadline
	s.deadlines[deadline.ID] = &stored
	return nil
}

func (s *MemoryStore) ListDeadlines(_ context.Context, userID string) ([]models.Deadline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deadlines []models.Deadline
	for _, d := range s.deadlines {
		if d.UserID == userID {
			deadlines = append(deadlines, *d)
		}
	}
	return deadlines, nil
}

func (s *MemoryStore) SetDeadlineStatus(_ context.Context, userID, deadlineID string, status models.DeadlineStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.deadlines[deadlineID]
	if !ok || d.UserID != userID {
		return ErrNotFound
	}
	d.Status = status
	return nil
}

func (s *MemoryStore) DeleteDeadline(_ context.Context, userID, deadlineID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.deadlines[deadlineID]
	if !ok || d.UserID != userID {
		return ErrNotFound
	}
	delete(s.deadlines, deadlineID)
	return nil
}

// --- attributes ---

func (s *MemoryStore) List(_ context.Context, userID string) ([]models.UserAttribute, error) {
	return s.userAttributes(userID), nil
}

// userAttributes returns copies in insertion order
func (s *MemoryStore) userAttributes(userID string) []models.UserAttribute {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*storedAttribute
	for _, stored := range s.attributes {
		if stored.attr.UserID == userID {
			matched = append(matched, stored)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })

	attrs := make([]models.UserAttribute, len(matched))
	for i, stored := range matched {
		attrs[i] = stored.attr
		attrs[i].SourceEntryIDs = append([]string(nil), stored.attr.SourceEntryIDs...)
	}
	return attrs
}

func (s *MemoryStore) Count(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, stored := range s.attributes {
		if stored.attr.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) OldestAccessed(_ context.Context, userID string) (*models.UserAttribute, error) {
	attrs := s.userAttributes(userID)
	if len(attrs) == 0 {
		return nil, ErrNotFound
	}

	oldest := attrs[0]
	for _, a := range attrs[1:] {
		// Strictly older only, so insertion order wins ties
		if a.LastAccessed.Before(oldest.LastAccessed) {
			oldest = a
		}
	}
	return &oldest, nil
}

func (s *MemoryStore) Insert(_ context.Context, attr *models.UserAttribute) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if attr.ID == "" {
		attr.ID = uuid.NewString()
	}
	stored := *attr
	stored.SourceEntryIDs = append([]string(nil), attr.SourceEntryIDs...)
	s.attributes[attr.ID] = &storedAttribute{attr: stored, seq: s.next()}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, userID, attributeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stored, ok := s.attributes[attributeID]; ok && stored.attr.UserID == userID {
		delete(s.attributes, attributeID)
	}
	return nil
}

func (s *MemoryStore) Touch(_ context.Context, userID string, attributeIDs []string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range attributeIDs {
		if stored, ok := s.attributes[id]; ok && stored.attr.UserID == userID {
			stored.attr.LastAccessed = at
		}
	}
	return nil
}

// --- summit ---

func (s *MemoryStore) AppendTurn(_ context.Context, turn *models.SummitTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	stored := *turn
	stored.Lines = append([]models.AdvisorLine(nil), turn.Lines...)
	s.turns = append(s.turns, stored)
	return nil
}

func (s *MemoryStore) ListTurns(_ context.Context, userID, entryID string) ([]models.SummitTurn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var turns []models.SummitTurn
	for _, t := range s.turns {
		if t.UserID == userID && t.EntryID == entryID {
			t.Lines = append([]models.AdvisorLine(nil), t.Lines...)
			turns = append(turns, t)
		}
	}
	return turns, nil
}

func (s *MemoryStore) DeleteTurns(_ context.Context, userID, entryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.turns[:0]
	for _, t := range s.turns {
		if t.UserID != userID || t.EntryID != entryID {
			kept = append(kept, t)
		}
	}
	s.turns = kept
	return nil
}

// --- settings ---

func (s *MemoryStore) GetSettings(_ context.Context, userID string) (*models.UserSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.settings[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return copySettings(stored), nil
}

func (s *MemoryStore) SaveSettings(_ context.Context, settings *models.UserSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings.UpdatedAt = time.Now()
	saved := copySettings(settings)
	saved.LastWeeklyReset = nil
	if stored, ok := s.settings[settings.UserID]; ok {
		saved.LastWeeklyReset = stored.LastWeeklyReset
	}
	s.settings[settings.UserID] = saved
	return nil
}

func (s *MemoryStore) MarkWeeklyReset(_ context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.settings[userID]
	if !ok {
		stored = &models.UserSettings{UserID: userID}
		s.settings[userID] = stored
	}
	stored.LastWeeklyReset = &at
	return nil
}

func (s *MemoryStore) ListUserIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.settings))
	for id := range s.settings {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func copySettings(in *models.UserSettings) *models.UserSettings {
	out := *in
	if in.EnabledAdvisors != nil {
		out.EnabledAdvisors = make(map[string]bool, len(in.EnabledAdvisors))
		for k, v := range in.EnabledAdvisors {
			out.EnabledAdvisors[k] = v
		}
	}
	if in.LastWeeklyReset != nil {
		t := *in.LastWeeklyReset
		out.LastWeeklyReset = &t
	}
	return &out
}
