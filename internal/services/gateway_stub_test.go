package services

import (
	"context"
	"strings"
	"sync"

	"advisorjournal/internal/models"
)

// stubGateway answers model calls from a function and records every prompt
type stubGateway struct {
	mu      sync.Mutex
	prompts []string
	models  []string
	respond func(prompt string) (string, error)
}

func newStubGateway(respond func(prompt string) (string, error)) *stubGateway {
	return &stubGateway{respond: respond}
}

// replyWith returns a stub that always answers with text
func replyWith(text string) *stubGateway {
	return newStubGateway(func(string) (string, error) { return text, nil })
}

// failWith returns a stub whose calls all fail with err
func failWith(err error) *stubGateway {
	return newStubGateway(func(string) (string, error) { return "", err })
}

func (g *stubGateway) Complete(_ context.Context, prompt, _, model string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.models = append(g.models, model)
	g.mu.Unlock()
	return g.respond(prompt)
}

func (g *stubGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

func (g *stubGateway) lastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}

// promptContaining reports whether any recorded prompt contains substr
func (g *stubGateway) promptContaining(substr string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, p := range g.prompts {
		if strings.Contains(p, substr) {
			return true
		}
	}
	return false
}

func testSession() *models.Session {
	return &models.Session{
		UserID:          "user-1",
		APIKey:          "sk-test",
		PrimaryModel:    "primary-model",
		UtilityModel:    "utility-model",
		EnabledAdvisors: map[string]bool{"plitt": true, "hudson": true, "self": true},
	}
}
