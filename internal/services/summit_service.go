package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"advisorjournal/internal/models"
)

// ErrInvalidModelResponse is the user-facing failure of a summit turn
var ErrInvalidModelResponse = errors.New("the model failed to produce a valid response, please try again")

// SummitService runs the follow-up conversation between the user and all advisors about one entry
type SummitService struct {
	gateway LLMGateway
	roster  *AdvisorRoster
	entries EntryRepository
	turns   SummitRepository
	metrics *Metrics
}

// NewSummitService creates a new summit service
func NewSummitService(gateway LLMGateway, roster *AdvisorRoster, entries EntryRepository, turns SummitRepository, metrics *Metrics) *SummitService {
	return &SummitService{
		gateway: gateway,
		roster:  roster,
		entries: entries,
		turns:   turns,
		metrics: metrics,
	}
}

// Transcript returns the entry and its summit turns, oldest first
func (s *SummitService) Transcript(ctx context.Context, userID, entryID string) (*models.Entry, []models.SummitTurn, error) {
	entry, err := s.entries.GetEntry(ctx, userID, entryID)
	if err != nil {
		return nil, nil, err
	}
	turns, err := s.turns.ListTurns(ctx, userID, entryID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load summit transcript: %w", err)
	}
	return entry, turns, nil
}

// Reply stores the user's message, generates the advisors' next turn and stores it as one batched turn.
// A message identical to an unanswered last user turn is a retry and is not stored again.
func (s *SummitService) Reply(ctx context.Context, sess *models.Session, entryID, message string) (*models.SummitTurn, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, fmt.Errorf("%w: message is required", ErrValidation)
	}

	entry, transcript, err := s.Transcript(ctx, sess.UserID, entryID)
	if err != nil {
		return nil, err
	}

	if !pendingUserTurn(transcript, message) {
		userTurn := models.NewUserTurn(sess.UserID, entryID, message)
		if err := s.turns.AppendTurn(ctx, userTurn); err != nil {
			return nil, fmt.Errorf("failed to save message: %w", err)
		}
		transcript = append(transcript, *userTurn)
	}

	lines, err := s.NextTurn(ctx, sess, entry, transcript)
	if err != nil {
		return nil, err
	}

	advisorsTurn := models.NewAdvisorsTurn(sess.UserID, entryID, lines)
	if err := s.turns.AppendTurn(ctx, advisorsTurn); err != nil {
		return nil, fmt.Errorf("failed to save advisor turn: %w", err)
	}

	log.Printf("🏔️ [SUMMIT] Turn generated for entry %s (%d advisor lines)", entryID, len(lines))
	return advisorsTurn, nil
}

// pendingUserTurn reports whether the transcript ends with this exact user message,
// left unanswered by a failed generation
func pendingUserTurn(transcript []models.SummitTurn, message string) bool {
	if len(transcript) == 0 {
		return false
	}
	last := transcript[len(transcript)-1]
	return last.Kind == models.SummitTurnSingle && last.Author == models.SummitAuthorUser && last.Text == message
}

// NextTurn asks the primary model for the advisors' next simultaneous turn.
// Any failure, transport or malformed output, wraps ErrInvalidModelResponse.
func (s *SummitService) NextTurn(ctx context.Context, sess *models.Session, entry *models.Entry, transcript []models.SummitTurn) ([]models.AdvisorLine, error) {
	prompt := buildSummitPrompt(s.roster.Profiles(), entry, transcript)

	response, err := s.gateway.Complete(ctx, prompt, sess.APIKey, sess.PrimaryModel)
	if err != nil {
		s.metrics.incSummit("error")
		log.Printf("❌ [SUMMIT] Model call failed for entry %s: %v", entry.ID, err)
		return nil, fmt.Errorf("%w: %w", ErrInvalidModelResponse, err)
	}

	lines, err := ParseSummitTurn(response)
	if err != nil {
		s.metrics.incSummit("invalid")
		log.Printf("❌ [SUMMIT] Unusable response for entry %s: %v", entry.ID, err)
		return nil, err
	}

	s.metrics.incSummit("ok")
	return lines, nil
}

// ParseSummitTurn decodes the JSON array between the first '[' and the last ']'.
// Every element needs a non-empty advisor and text, and the array must not be empty.
func ParseSummitTurn(response string) ([]models.AdvisorLine, error) {
	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	if start == -1 || end < start {
		return nil, fmt.Errorf("%w: response did not contain a JSON array", ErrInvalidModelResponse)
	}

	var lines []models.AdvisorLine
	if err := json.Unmarshal([]byte(response[start:end+1]), &lines); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidModelResponse, err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: empty turn", ErrInvalidModelResponse)
	}

	for i := range lines {
		lines[i].Advisor = strings.ToLower(strings.TrimSpace(lines[i].Advisor))
		lines[i].Text = strings.TrimSpace(lines[i].Text)
		if lines[i].Advisor == "" || lines[i].Text == "" {
			return nil, fmt.Errorf("%w: element %d is missing advisor or text", ErrInvalidModelResponse, i)
		}
	}
	return lines, nil
}

func buildSummitPrompt(advisors []models.AdvisorProfile, entry *models.Entry, transcript []models.SummitTurn) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are a master AI that will simulate a conversation between %d distinct advisors defined as follows:\n", len(advisors))
	for _, a := range advisors {
		fmt.Fprintf(&b, "- %s: \"%s\"\n", a.Label(), a.Persona)
	}

	b.WriteString("\n--- ORIGINAL JOURNAL ENTRY ---\n")
	fmt.Fprintf(&b, "\"%s\"\n", entry.Text)

	b.WriteString("\n--- INITIAL ADVISOR FEEDBACK ---\n")
	for _, a := range advisors {
		initial := "No initial feedback."
		if f, ok := entry.Feedback[a.ID]; ok && f.Status == models.FeedbackStatusCompleted {
			initial = f.Response
		}
		fmt.Fprintf(&b, "%s: \"%s\"\n", a.Label(), initial)
	}

	b.WriteString("\n--- FOLLOW-UP CONVERSATION HISTORY ---\n")
	b.WriteString(renderTranscript(transcript))

	b.WriteString("\n\n--- TASK ---\n")
	b.WriteString("Generate the *next turn* in the conversation. Advisors should respond to the user and each other, ")
	b.WriteString("referencing the original entry and their initial feedback when relevant. ")
	b.WriteString("Your response MUST be a valid JSON array of objects, with detailed, paragraph-length text for each advisor.\n")
	b.WriteString("Example Format:\n[\n")
	for i, a := range advisors {
		sep := ","
		if i == len(advisors)-1 {
			sep = ""
		}
		name := a.DisplayName
		if name == "" {
			name = a.ID
		}
		fmt.Fprintf(&b, "  { \"advisor\": \"%s\", \"text\": \"A full paragraph from %s...\" }%s\n", a.ID, name, sep)
	}
	b.WriteString("]")

	return b.String()
}

// renderTranscript writes one "AUTHOR: text" line per message; batched turns expand to one line per advisor
func renderTranscript(transcript []models.SummitTurn) string {
	var lines []string
	for _, turn := range transcript {
		switch turn.Kind {
		case models.SummitTurnBatched:
			for _, l := range turn.Lines {
				lines = append(lines, strings.ToUpper(l.Advisor)+": "+l.Text)
			}
		default:
			lines = append(lines, strings.ToUpper(turn.Author)+": "+turn.Text)
		}
	}
	return strings.Join(lines, "\n")
}
