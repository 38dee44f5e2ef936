package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseExtractedAttribute(t *testing.T) {
	tests := []struct {
		response  string
		wantTrait string
		wantFound bool
	}{
		{"NULL", "", false},
		{"  null\n", "", false},
		{"Null", "", false},
		{"", "", false},
		{"   ", "", false},
		{"  User avoids conflict.  ", "User avoids conflict.", true},
		{"NULL. Nothing durable here.", "NULL. Nothing durable here.", true},
	}

	for _, tt := range tests {
		t.Run(tt.response, func(t *testing.T) {
			trait, found := ParseExtractedAttribute(tt.response)
			assert.Equal(t, tt.wantFound, found)
			assert.Equal(t, tt.wantTrait, trait)
		})
	}
}

func TestExtractAttribute(t *testing.T) {
	gw := replyWith("User finds fulfillment in helping others.\n")
	svc := NewAttributeExtractionService(gw)

	trait, found := svc.Extract(context.Background(), testSession(), "Volunteered at the shelter again.")
	assert.True(t, found)
	assert.Equal(t, "User finds fulfillment in helping others.", trait)
	assert.Equal(t, []string{"utility-model"}, gw.models)
	assert.Contains(t, gw.lastPrompt(), `Journal Entry: "Volunteered at the shelter again."`)
}

func TestExtractAttributeGatewayFailure(t *testing.T) {
	svc := NewAttributeExtractionService(failWith(errors.New("timeout")))

	trait, found := svc.Extract(context.Background(), testSession(), "entry")
	assert.False(t, found)
	assert.Empty(t, trait)
}
