package services

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"advisorjournal/internal/models"
)

// Any bracketed uppercase tag starts the next advisor's section
var advisorTagPattern = regexp.MustCompile(`\[[A-Z_]+\]`)

// ContextBuilder renders the user context block injected into advisor prompts
type ContextBuilder interface {
	BuildContext(ctx context.Context, sess *models.Session, entryText string) string
}

// AdvisorFeedbackService asks every enabled advisor to react to an entry in one combined model call
type AdvisorFeedbackService struct {
	gateway  LLMGateway
	roster   *AdvisorRoster
	contexts ContextBuilder
	metrics  *Metrics
}

// NewAdvisorFeedbackService creates a new advisor feedback service
func NewAdvisorFeedbackService(gateway LLMGateway, roster *AdvisorRoster, contexts ContextBuilder, metrics *Metrics) *AdvisorFeedbackService {
	return &AdvisorFeedbackService{
		gateway:  gateway,
		roster:   roster,
		contexts: contexts,
		metrics:  metrics,
	}
}

// Generate returns one feedback record per enabled advisor. It never fails: a failed model call
// marks every advisor as errored, and an advisor missing from the output is errored on its own.
func (s *AdvisorFeedbackService) Generate(ctx context.Context, sess *models.Session, entryText string) models.FeedbackSet {
	advisors := s.roster.Enabled(sess)
	if len(advisors) == 0 {
		return models.FeedbackSet{}
	}

	contextBlock := s.contexts.BuildContext(ctx, sess, entryText)
	prompt := ComposeAdvisorPrompt(advisors, contextBlock, entryText)

	ids := make([]string, len(advisors))
	for i, a := range advisors {
		ids[i] = a.ID
	}

	var feedback models.FeedbackSet
	response, err := s.gateway.Complete(ctx, prompt, sess.APIKey, sess.PrimaryModel)
	if err != nil {
		log.Printf("❌ [ADVISORS] Combined feedback call failed for user %s: %v", sess.UserID, err)
		feedback = failedFeedback(ids, err)
	} else {
		feedback = ParseCombinedFeedback(response, ids)
	}

	statuses := make(map[string]string, len(feedback))
	completed := 0
	for id, f := range feedback {
		statuses[id] = string(f.Status)
		if f.Status == models.FeedbackStatusCompleted {
			completed++
		}
	}
	s.metrics.recordFeedback(statuses)
	log.Printf("🧭 [ADVISORS] Feedback ready for user %s (%d/%d advisors completed)", sess.UserID, completed, len(ids))

	return feedback
}

func failedFeedback(ids []string, err error) models.FeedbackSet {
	feedback := make(models.FeedbackSet, len(ids))
	for _, id := range ids {
		feedback[id] = models.AdvisorFeedback{
			Status:   models.FeedbackStatusError,
			Response: "API call failed: " + err.Error(),
		}
	}
	return feedback
}

// ComposeAdvisorPrompt builds the combined multi-persona prompt. Each advisor is told to open
// its section with its uppercase tag, e.g. [PLITT].
func ComposeAdvisorPrompt(advisors []models.AdvisorProfile, contextBlock, entryText string) string {
	var b strings.Builder

	b.WriteString("You are several distinct AI advisors responding to a user's journal entry. ")
	b.WriteString("Provide a response for each advisor persona described below. ")
	b.WriteString("YOU MUST format your entire response by starting each advisor's feedback with their unique tag in all caps, e.g., `[PLITT]`.\n\n")

	for _, a := range advisors {
		fmt.Fprintf(&b, "---\nADVISOR: %s\nPERSONA: %s\nTASK: %s\n---\n", a.Tag(), a.Persona, a.Task)
	}

	b.WriteString("\n\n--- USER DATA ---\n")
	b.WriteString(contextBlock)
	b.WriteString("\n\n--- USER'S JOURNAL ENTRY ---\n\"")
	b.WriteString(entryText)
	b.WriteString("\"\n\n")
	b.WriteString("Now, generate the response for each advisor, ensuring each starts with its tag.")

	return b.String()
}

// ParseCombinedFeedback extracts each advisor's section from a combined response.
// A section runs from the advisor's first [TAG] to the next bracketed tag or the end of the text.
// The result has exactly one record per id, whatever order the model wrote them in.
func ParseCombinedFeedback(response string, advisorIDs []string) models.FeedbackSet {
	feedback := make(models.FeedbackSet, len(advisorIDs))

	for _, id := range advisorIDs {
		tag := "[" + strings.ToUpper(id) + "]"
		section := ""

		if start := strings.Index(response, tag); start != -1 {
			rest := response[start+len(tag):]
			if loc := advisorTagPattern.FindStringIndex(rest); loc != nil {
				rest = rest[:loc[0]]
			}
			section = strings.TrimSpace(rest)
		}

		if section == "" {
			feedback[id] = models.AdvisorFeedback{
				Status:   models.FeedbackStatusError,
				Response: fmt.Sprintf("Advisor %q response not found in combined output", id),
			}
			continue
		}

		feedback[id] = models.AdvisorFeedback{Status: models.FeedbackStatusCompleted, Response: section}
	}

	return feedback
}
