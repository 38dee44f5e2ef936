package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"advisorjournal/internal/models"
)

// AttributeExtractionService asks the utility model for one durable trait revealed by an entry
type AttributeExtractionService struct {
	gateway LLMGateway
}

// NewAttributeExtractionService creates a new attribute extractor
func NewAttributeExtractionService(gateway LLMGateway) *AttributeExtractionService {
	return &AttributeExtractionService{gateway: gateway}
}

// Extract returns the trait and true, or false when the entry reveals nothing durable.
// Gateway failures are logged and reported as nothing found.
func (s *AttributeExtractionService) Extract(ctx context.Context, sess *models.Session, entryText string) (string, bool) {
	response, err := s.gateway.Complete(ctx, buildExtractionPrompt(entryText), sess.APIKey, sess.UtilityModel)
	if err != nil {
		log.Printf("⚠️ [ATTRIBUTES] Extraction call failed for user %s: %v", sess.UserID, err)
		return "", false
	}
	return ParseExtractedAttribute(response)
}

// ParseExtractedAttribute trims the response and treats empty text or the NULL sentinel as no trait
func ParseExtractedAttribute(response string) (string, bool) {
	trait := strings.TrimSpace(response)
	if trait == "" || strings.EqualFold(trait, models.AttributeExtractionSentinel) {
		return "", false
	}
	return trait, true
}

func buildExtractionPrompt(entryText string) string {
	return fmt.Sprintf(`You are a psychological analyst. Your task is to analyze the following journal entry and determine if it reveals a durable, high-level personality trait, recurring belief, or core struggle.
- If it does, state this trait as a single, concise sentence.
- Examples: "User struggles with impostor syndrome." or "User finds fulfillment in helping others." or "User is motivated by external validation."
- If the entry is just a simple report of the day's events with no deeper insight, respond with ONLY the word "%s".

Journal Entry: "%s"`, models.AttributeExtractionSentinel, entryText)
}
