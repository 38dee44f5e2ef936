package models

import "time"

// FeedbackStatus is the outcome of one advisor's reaction to an entry
type FeedbackStatus string

const (
	FeedbackStatusCompleted FeedbackStatus = "completed"
	FeedbackStatusError     FeedbackStatus = "error"
)

// AdvisorFeedback is a single persona's reaction to an entry
type AdvisorFeedback struct {
	Status   FeedbackStatus `bson:"status" json:"status"`
	Response string         `bson:"response" json:"response"`
}

// FeedbackSet maps an advisor ID to that advisor's feedback
type FeedbackSet map[string]AdvisorFeedback

// Entry is an immutable journal entry written by the user
type Entry struct {
	ID        string      `bson:"_id" json:"id"`
	UserID    string      `bson:"userId" json:"user_id"`
	Text      string      `bson:"entryText" json:"entry_text"`
	CreatedAt time.Time   `bson:"createdAt" json:"created_at"`
	Feedback  FeedbackSet `bson:"feedback,omitempty" json:"feedback,omitempty"` // Attached once, after generation
}

// HasFeedback reports whether the feedback set has been attached
func (e *Entry) HasFeedback() bool {
	return e.Feedback != nil
}

// CreateEntryRequest is the body of POST /api/v1/entries
type CreateEntryRequest struct {
	Text string `json:"text"`
}

// GoalProgressEvent is emitted when an entry appears to advance a goal
type GoalProgressEvent struct {
	UserID     string    `json:"user_id"`
	EntryID    string    `json:"entry_id"`
	GoalID     string    `json:"goal_id"`
	GoalTitle  string    `json:"goal_title"`
	Reasoning  string    `json:"reasoning"`
	DetectedAt time.Time `json:"detected_at"`
}
