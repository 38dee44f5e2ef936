package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advisorjournal/internal/models"
)

func TestParseGoalProgress(t *testing.T) {
	tests := []struct {
		name      string
		response  string
		want      *models.GoalProgress
		malformed bool
	}{
		{
			name:     "prose wrapped",
			response: `Sure! {"progressMade": true, "reasoning": "ran 5k"} Hope this helps.`,
			want:     &models.GoalProgress{ProgressMade: true, Reasoning: "ran 5k"},
		},
		{
			name:     "fenced json",
			response: "```json\n{\n  \"progressMade\": false,\n  \"reasoning\": \"No mention of reading.\"\n}\n```",
			want:     &models.GoalProgress{ProgressMade: false, Reasoning: "No mention of reading."},
		},
		{
			name:     "braces inside reasoning",
			response: `{"progressMade": true, "reasoning": "wrote {chapter} \"two\""} trailing {junk}`,
			want:     &models.GoalProgress{ProgressMade: true, Reasoning: `wrote {chapter} "two"`},
		},
		{
			name:     "first object wins",
			response: `{"progressMade": true, "reasoning": "a"} {"progressMade": false, "reasoning": "b"}`,
			want:     &models.GoalProgress{ProgressMade: true, Reasoning: "a"},
		},
		{name: "no object", response: "The user ran today.", malformed: true},
		{name: "string bool", response: `{"progressMade": "yes", "reasoning": "ran"}`, malformed: true},
		{name: "missing reasoning", response: `{"progressMade": true}`, malformed: true},
		{name: "numeric reasoning", response: `{"progressMade": true, "reasoning": 5}`, malformed: true},
		{name: "unbalanced", response: `{"progressMade": true, "reasoning": "x"`, malformed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseGoalProgress(tt.response)
			if tt.malformed {
				assert.ErrorIs(t, err, ErrMalformedOutput)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateGoalProgress(t *testing.T) {
	gw := replyWith(`{"progressMade": true, "reasoning": "ran 5k"}`)
	svc := NewGoalProgressService(gw)

	goal := &models.Goal{Title: "Run 3x", Description: ""}
	got, err := svc.Evaluate(context.Background(), testSession(), "Ran 5k this morning", goal)
	require.NoError(t, err)
	assert.True(t, got.ProgressMade)

	assert.Equal(t, []string{"utility-model"}, gw.models)
	assert.Contains(t, gw.lastPrompt(), `Goal: "Run 3x"`)
	assert.Contains(t, gw.lastPrompt(), `Description: "N/A"`)
}

func TestEvaluateGoalProgressGatewayError(t *testing.T) {
	boom := errors.New("boom")
	svc := NewGoalProgressService(failWith(boom))

	_, err := svc.Evaluate(context.Background(), testSession(), "entry", &models.Goal{Title: "x"})
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrMalformedOutput)
}
