package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"advisorjournal/internal/logging"
	"advisorjournal/internal/models"
)

const (
	defaultEntryListLimit = 20
	maxEntryListLimit     = 100
)

// JournalDependencies wires the orchestrator to the engine components
type JournalDependencies struct {
	Entries         EntryRepository
	Turns           SummitRepository
	Goals           GoalRepository
	Feedback        *AdvisorFeedbackService
	Progress        *GoalProgressService
	Extractor       *AttributeExtractionService
	Memory          *AttributeMemoryService
	Notifier        ProgressNotifier
	GoalConcurrency int
	Metrics         *Metrics
}

// JournalService creates entries and runs the three background groups each entry triggers:
// advisor feedback, goal progress and attribute extraction
type JournalService struct {
	deps     JournalDependencies
	inFlight sync.WaitGroup
	now      func() time.Time
}

// NewJournalService creates the entry orchestrator
func NewJournalService(deps JournalDependencies) *JournalService {
	if deps.GoalConcurrency <= 0 {
		deps.GoalConcurrency = 4
	}
	return &JournalService{deps: deps, now: time.Now}
}

// Submission tracks the background work started for one entry
type Submission struct {
	EntryID string

	done      chan struct{}
	mu        sync.Mutex
	feedback  models.FeedbackSet
	progress  []models.GoalProgressEvent
	attribute *models.UserAttribute
}

func newSubmission(entryID string) *Submission {
	return &Submission{EntryID: entryID, done: make(chan struct{})}
}

// Done is closed once feedback, goal evaluation and extraction have all finished
func (s *Submission) Done() <-chan struct{} {
	return s.done
}

// Feedback returns the attached feedback set, or nil while it is still being generated
func (s *Submission) Feedback() models.FeedbackSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feedback
}

// Progress returns the positive goal verdicts delivered so far
func (s *Submission) Progress() []models.GoalProgressEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.GoalProgressEvent(nil), s.progress...)
}

// Attribute returns the trait stored from this entry, if any
func (s *Submission) Attribute() *models.UserAttribute {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attribute
}

// SubmitEntry stores the entry and returns immediately. Only the write itself can fail;
// everything downstream runs detached from ctx and degrades on its own.
func (j *JournalService) SubmitEntry(ctx context.Context, sess *models.Session, text string) (*models.Entry, *Submission, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil, fmt.Errorf("%w: entry text is required", ErrValidation)
	}
	if sess.APIKey == "" {
		return nil, nil, ErrNoAPIKey
	}

	entry := &models.Entry{UserID: sess.UserID, Text: text}
	if err := j.deps.Entries.CreateEntry(ctx, entry); err != nil {
		return nil, nil, fmt.Errorf("failed to save entry: %w", err)
	}

	logger := logging.WithEntry(logging.WithUser(sess.UserID), entry.ID, len(text))
	logger.Info("journal entry created")

	sub := newSubmission(entry.ID)
	bg := context.WithoutCancel(ctx)

	j.inFlight.Add(1)
	j.deps.Metrics.trackBackground(1)

	var groups sync.WaitGroup
	groups.Add(3)
	go func() {
		defer groups.Done()
		j.generateFeedback(bg, sess, entry, sub, logger)
	}()
	go func() {
		defer groups.Done()
		j.evaluateGoals(bg, sess, entry, sub, logger)
	}()
	go func() {
		defer groups.Done()
		j.extractAttribute(bg, sess, entry, sub, logger)
	}()

	go func() {
		groups.Wait()
		logger.Debug("background groups finished")
		close(sub.done)
		j.deps.Metrics.trackBackground(-1)
		j.inFlight.Done()
	}()

	return entry, sub, nil
}

// Wait blocks until every in-flight submission has finished its background groups
func (j *JournalService) Wait() {
	j.inFlight.Wait()
}

func (j *JournalService) generateFeedback(ctx context.Context, sess *models.Session, entry *models.Entry, sub *Submission, logger *slog.Logger) {
	feedback := j.deps.Feedback.Generate(ctx, sess, entry.Text)

	if err := j.deps.Entries.AttachFeedback(ctx, sess.UserID, entry.ID, feedback); err != nil {
		logger.Error("failed to attach advisor feedback", "error", err)
		return
	}

	sub.mu.Lock()
	sub.feedback = feedback
	sub.mu.Unlock()
	logger.Info("advisor feedback attached", "advisors", len(feedback))
}

func (j *JournalService) evaluateGoals(ctx context.Context, sess *models.Session, entry *models.Entry, sub *Submission, logger *slog.Logger) {
	goals, err := j.deps.Goals.ActiveWeeklyGoals(ctx, sess.UserID)
	if err != nil {
		logger.Warn("failed to load goals for progress check", "error", err)
		return
	}
	if len(goals) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(j.deps.GoalConcurrency)

	for i := range goals {
		goal := &goals[i]
		g.Go(func() error {
			verdict, err := j.deps.Progress.Evaluate(ctx, sess, entry.Text, goal)
			if err != nil {
				logger.Warn("goal progress check failed", "goal_id", goal.ID, "error", err)
				return nil
			}
			if !verdict.ProgressMade {
				return nil
			}

			event := models.GoalProgressEvent{
				UserID:     sess.UserID,
				EntryID:    entry.ID,
				GoalID:     goal.ID,
				GoalTitle:  goal.Title,
				Reasoning:  verdict.Reasoning,
				DetectedAt: j.now(),
			}
			j.deps.Metrics.incGoalProgress()

			sub.mu.Lock()
			sub.progress = append(sub.progress, event)
			sub.mu.Unlock()

			if j.deps.Notifier != nil {
				if err := j.deps.Notifier.NotifyGoalProgress(ctx, event); err != nil {
					logger.Warn("failed to deliver goal progress", "goal_id", goal.ID, "error", err)
					return nil
				}
			}
			logger.Info("goal progress detected", "goal_id", goal.ID)
			return nil
		})
	}
	_ = g.Wait()
}

func (j *JournalService) extractAttribute(ctx context.Context, sess *models.Session, entry *models.Entry, sub *Submission, logger *slog.Logger) {
	trait, found := j.deps.Extractor.Extract(ctx, sess, entry.Text)
	if !found {
		return
	}

	attr, err := j.deps.Memory.Add(ctx, sess.UserID, trait, entry.ID)
	if err != nil {
		logger.Warn("failed to store extracted attribute", "error", err)
		return
	}
	j.deps.Metrics.incAttributeExtracted()

	sub.mu.Lock()
	sub.attribute = attr
	sub.mu.Unlock()
	logger.Info("attribute extracted", "attribute_id", attr.ID)
}

// GetEntry returns one of the user's entries
func (j *JournalService) GetEntry(ctx context.Context, userID, entryID string) (*models.Entry, error) {
	return j.deps.Entries.GetEntry(ctx, userID, entryID)
}

// DeleteEntry removes an entry and its summit transcript. Traits extracted from the entry are kept.
func (j *JournalService) DeleteEntry(ctx context.Context, userID, entryID string) error {
	if err := j.deps.Entries.DeleteEntry(ctx, userID, entryID); err != nil {
		return err
	}
	if j.deps.Turns != nil {
		if err := j.deps.Turns.DeleteTurns(ctx, userID, entryID); err != nil {
			return fmt.Errorf("failed to delete summit transcript: %w", err)
		}
	}
	logging.WithUser(userID).Info("entry deleted", "entry_id", entryID)
	return nil
}

// ListEntries returns the newest entries first; limit defaults to 20 and is capped at 100
func (j *JournalService) ListEntries(ctx context.Context, userID string, limit int) ([]models.Entry, error) {
	if limit <= 0 {
		limit = defaultEntryListLimit
	}
	if limit > maxEntryListLimit {
		limit = maxEntryListLimit
	}
	entries, err := j.deps.Entries.ListEntries(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	return entries, nil
}
