package services

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advisorjournal/internal/models"
)

type fixedContext string

func (c fixedContext) BuildContext(context.Context, *models.Session, string) string {
	return string(c)
}

func TestParseCombinedFeedback(t *testing.T) {
	ids := []string{"plitt", "hudson", "self"}

	tests := []struct {
		name     string
		response string
		want     map[string]string // id -> completed text, "" means error
	}{
		{
			name:     "all present",
			response: "[PLITT]\nGet moving.\n\n[HUDSON]\nWhat are you feeling?\n\n[SELF]\nZoom out.",
			want:     map[string]string{"plitt": "Get moving.", "hudson": "What are you feeling?", "self": "Zoom out."},
		},
		{
			name:     "reordered",
			response: "[SELF] Zoom out. [PLITT] Get moving. [HUDSON] What are you feeling?",
			want:     map[string]string{"plitt": "Get moving.", "hudson": "What are you feeling?", "self": "Zoom out."},
		},
		{
			name:     "one missing",
			response: "[PLITT] Get moving.\n[SELF] Zoom out.",
			want:     map[string]string{"plitt": "Get moving.", "hudson": "", "self": "Zoom out."},
		},
		{
			name:     "empty section",
			response: "[PLITT]   \n[HUDSON] Breathe.\n[SELF] Zoom out.",
			want:     map[string]string{"plitt": "", "hudson": "Breathe.", "self": "Zoom out."},
		},
		{
			name:     "unknown tag ends a section",
			response: "[PLITT] Get moving. [NOTE] ignore me [HUDSON] Breathe. [SELF] Zoom out.",
			want:     map[string]string{"plitt": "Get moving.", "hudson": "Breathe.", "self": "Zoom out."},
		},
		{
			name:     "lowercase brackets stay in the text",
			response: "[PLITT] Do [this] now. [HUDSON] Breathe. [SELF] Zoom out.",
			want:     map[string]string{"plitt": "Do [this] now.", "hudson": "Breathe.", "self": "Zoom out."},
		},
		{
			name:     "no tags at all",
			response: "I refuse to answer in sections.",
			want:     map[string]string{"plitt": "", "hudson": "", "self": ""},
		},
		{
			name:     "empty response",
			response: "",
			want:     map[string]string{"plitt": "", "hudson": "", "self": ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseCombinedFeedback(tt.response, ids)
			require.Len(t, got, len(ids))

			for id, text := range tt.want {
				f, ok := got[id]
				require.True(t, ok, id)
				if text == "" {
					assert.Equal(t, models.FeedbackStatusError, f.Status, id)
					assert.Contains(t, f.Response, "response not found in combined output")
				} else {
					assert.Equal(t, models.FeedbackStatusCompleted, f.Status, id)
					assert.Equal(t, text, f.Response, id)
				}
			}
		})
	}
}

func TestComposeAdvisorPrompt(t *testing.T) {
	roster := DefaultAdvisorRoster()
	prompt := ComposeAdvisorPrompt(roster.Profiles()[:2], "CONTEXT BLOCK", "I skipped the gym.")

	assert.Contains(t, prompt, "ADVISOR: [PLITT]\nPERSONA: You are Plitt")
	assert.Contains(t, prompt, "ADVISOR: [HUDSON]")
	assert.NotContains(t, prompt, "ADVISOR: [SELF]")
	assert.Contains(t, prompt, "--- USER DATA ---\nCONTEXT BLOCK")
	assert.Contains(t, prompt, "--- USER'S JOURNAL ENTRY ---\n\"I skipped the gym.\"")
}

func TestGenerateFeedback(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	gw := replyWith("[HUDSON] Breathe. [PLITT] Move.")
	svc := NewAdvisorFeedbackService(gw, DefaultAdvisorRoster(), fixedContext("ctx"), metrics)

	sess := testSession()
	sess.EnabledAdvisors = map[string]bool{"plitt": true, "hudson": true}

	got := svc.Generate(context.Background(), sess, "entry")
	assert.Equal(t, models.FeedbackSet{
		"plitt":  {Status: models.FeedbackStatusCompleted, Response: "Move."},
		"hudson": {Status: models.FeedbackStatusCompleted, Response: "Breathe."},
	}, got)
	assert.Equal(t, 1, gw.calls())
	assert.Equal(t, []string{"primary-model"}, gw.models)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AdvisorFeedback.WithLabelValues("plitt", "completed")))
}

func TestGenerateFeedbackGatewayFailure(t *testing.T) {
	gwErr := &GatewayError{Kind: GatewayErrorStatus, StatusCode: 402, Message: "Insufficient credits"}
	svc := NewAdvisorFeedbackService(failWith(gwErr), DefaultAdvisorRoster(), fixedContext("ctx"), nil)

	got := svc.Generate(context.Background(), testSession(), "entry")
	require.Len(t, got, 3)
	for id, f := range got {
		assert.Equal(t, models.FeedbackStatusError, f.Status, id)
		assert.Equal(t, "API call failed: API Error (402): Insufficient credits", f.Response, id)
	}
}

func TestGenerateFeedbackNoAdvisorsEnabled(t *testing.T) {
	gw := failWith(errors.New("must not be called"))
	svc := NewAdvisorFeedbackService(gw, DefaultAdvisorRoster(), fixedContext("ctx"), nil)

	sess := testSession()
	sess.EnabledAdvisors = map[string]bool{}

	got := svc.Generate(context.Background(), sess, "entry")
	assert.Empty(t, got)
	assert.NotNil(t, got)
	assert.Zero(t, gw.calls())
}
