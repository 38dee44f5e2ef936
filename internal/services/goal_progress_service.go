package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"advisorjournal/internal/models"
)

// ErrMalformedOutput means the model answered but not in the shape that was asked for
var ErrMalformedOutput = errors.New("model output is malformed")

// GoalProgressService asks the utility model whether an entry advanced a goal
type GoalProgressService struct {
	gateway LLMGateway
}

// NewGoalProgressService creates a new goal progress evaluator
func NewGoalProgressService(gateway LLMGateway) *GoalProgressService {
	return &GoalProgressService{gateway: gateway}
}

// Evaluate makes one utility-model call for one goal. Gateway errors are returned as-is;
// a response without a well-typed {progressMade, reasoning} object yields ErrMalformedOutput.
func (s *GoalProgressService) Evaluate(ctx context.Context, sess *models.Session, entryText string, goal *models.Goal) (*models.GoalProgress, error) {
	response, err := s.gateway.Complete(ctx, buildGoalProgressPrompt(entryText, goal), sess.APIKey, sess.UtilityModel)
	if err != nil {
		return nil, err
	}
	return ParseGoalProgress(response)
}

func buildGoalProgressPrompt(entryText string, goal *models.Goal) string {
	description := goal.Description
	if description == "" {
		description = "N/A"
	}

	return fmt.Sprintf(`Analyze the following journal entry to determine if the user made progress on a specific goal.
Goal: "%s"
Description: "%s"
Journal Entry: "%s"
Respond ONLY with a JSON object: { "progressMade": boolean, "reasoning": "A brief explanation." }`,
		goal.Title, description, entryText)
}

type goalProgressPayload struct {
	ProgressMade *bool   `json:"progressMade"`
	Reasoning    *string `json:"reasoning"`
}

// ParseGoalProgress reads the first balanced JSON object out of a possibly prose-wrapped response
func ParseGoalProgress(response string) (*models.GoalProgress, error) {
	object, ok := firstJSONObject(response)
	if !ok {
		return nil, fmt.Errorf("%w: no JSON object found", ErrMalformedOutput)
	}

	var payload goalProgressPayload
	if err := json.Unmarshal([]byte(object), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if payload.ProgressMade == nil || payload.Reasoning == nil {
		return nil, fmt.Errorf("%w: progressMade and reasoning are required", ErrMalformedOutput)
	}

	return &models.GoalProgress{
		ProgressMade: *payload.ProgressMade,
		Reasoning:    *payload.Reasoning,
	}, nil
}

// firstJSONObject returns the first balanced {...} span, ignoring braces inside JSON strings
func firstJSONObject(s string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if start == -1 {
			if c == '{' {
				start = i
				depth = 1
			}
			continue
		}

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
