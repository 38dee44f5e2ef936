package models

import "time"

// SummitTurnKind discriminates single-author turns from batched advisor turns
type SummitTurnKind string

const (
	SummitTurnSingle  SummitTurnKind = "single"
	SummitTurnBatched SummitTurnKind = "batched"
)

// Summit authors besides the persona IDs themselves
const (
	SummitAuthorUser     = "user"
	SummitAuthorAdvisors = "advisors"
)

// AdvisorLine is one persona's paragraph inside a batched turn
type AdvisorLine struct {
	Advisor string `bson:"advisor" json:"advisor"`
	Text    string `bson:"text" json:"text"`
}

// SummitTurn is one turn of the follow-up conversation about an entry.
// Single turns carry Text; batched turns carry Lines and are authored by "advisors".
type SummitTurn struct {
	ID        string         `bson:"_id" json:"id"`
	UserID    string         `bson:"userId" json:"user_id"`
	EntryID   string         `bson:"entryId" json:"entry_id"`
	Kind      SummitTurnKind `bson:"kind" json:"kind"`
	Author    string         `bson:"author" json:"author"`
	Text      string         `bson:"text,omitempty" json:"text,omitempty"`
	Lines     []AdvisorLine  `bson:"lines,omitempty" json:"lines,omitempty"`
	CreatedAt time.Time      `bson:"createdAt" json:"created_at"`
}

// NewUserTurn builds a single turn written by the user
func NewUserTurn(userID, entryID, text string) *SummitTurn {
	return &SummitTurn{
		UserID:  userID,
		EntryID: entryID,
		Kind:    SummitTurnSingle,
		Author:  SummitAuthorUser,
		Text:    text,
	}
}

// NewAdvisorsTurn builds one simultaneous turn from every persona
func NewAdvisorsTurn(userID, entryID string, lines []AdvisorLine) *SummitTurn {
	return &SummitTurn{
		UserID:  userID,
		EntryID: entryID,
		Kind:    SummitTurnBatched,
		Author:  SummitAuthorAdvisors,
		Lines:   lines,
	}
}

// SummitMessageRequest is the body of POST /api/v1/entries/:id/summit
type SummitMessageRequest struct {
	Message string `json:"message"`
}
