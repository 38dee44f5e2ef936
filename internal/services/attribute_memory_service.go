package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"advisorjournal/internal/models"
)

// AttributeMemoryService maintains the bounded, LRU-evicted set of durable user traits
type AttributeMemoryService struct {
	repo     AttributeRepository
	gateway  LLMGateway
	capacity int
	metrics  *Metrics
	now      func() time.Time
}

// NewAttributeMemoryService creates a new attribute memory service.
// capacity <= 0 falls back to models.AttributeCapacity.
func NewAttributeMemoryService(repo AttributeRepository, gateway LLMGateway, capacity int, metrics *Metrics) *AttributeMemoryService {
	if capacity <= 0 {
		capacity = models.AttributeCapacity
	}
	return &AttributeMemoryService{
		repo:     repo,
		gateway:  gateway,
		capacity: capacity,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Add stores a new trait, evicting the least recently accessed one first when the user is at capacity.
// Count and insert are not atomic; concurrent adds may briefly overshoot the capacity.
func (s *AttributeMemoryService) Add(ctx context.Context, userID, text, sourceEntryID string) (*models.UserAttribute, error) {
	text = strings.TrimSpace(text)
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}
	if text == "" {
		return nil, fmt.Errorf("attribute text is required")
	}

	count, err := s.repo.Count(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count attributes: %w", err)
	}

	if count >= s.capacity {
		oldest, err := s.repo.OldestAccessed(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to find attribute to evict: %w", err)
		}
		if err := s.repo.Delete(ctx, userID, oldest.ID); err != nil {
			return nil, fmt.Errorf("failed to evict attribute: %w", err)
		}
		s.metrics.incEviction()
		log.Printf("🗑️ [ATTRIBUTES] Evicted attribute %s for user %s (capacity %d reached)", oldest.ID, userID, s.capacity)
	}

	now := s.now()
	attr := &models.UserAttribute{
		UserID:       userID,
		Text:         text,
		CreatedAt:    now,
		LastAccessed: now,
	}
	if sourceEntryID != "" {
		attr.SourceEntryIDs = []string{sourceEntryID}
	}

	if err := s.repo.Insert(ctx, attr); err != nil {
		return nil, fmt.Errorf("failed to insert attribute: %w", err)
	}

	log.Printf("✅ [ATTRIBUTES] Stored attribute %s for user %s", attr.ID, userID)
	return attr, nil
}

// List returns the user's attributes, newest first
func (s *AttributeMemoryService) List(ctx context.Context, userID string) ([]models.UserAttribute, error) {
	attrs, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attributes: %w", err)
	}
	for i, j := 0, len(attrs)-1; i < j; i, j = i+1, j-1 {
		attrs[i], attrs[j] = attrs[j], attrs[i]
	}
	return attrs, nil
}

// Delete removes an attribute unconditionally
func (s *AttributeMemoryService) Delete(ctx context.Context, userID, attributeID string) error {
	if err := s.repo.Delete(ctx, userID, attributeID); err != nil {
		return err
	}
	log.Printf("🗑️ [ATTRIBUTES] Deleted attribute %s for user %s", attributeID, userID)
	return nil
}

// RetrieveRelevant returns at most k stored trait texts the utility model judges relevant to entryText,
// and marks them accessed. It never fails: any error is logged and yields an empty result.
// Without an API key no model call is made and nothing is returned.
func (s *AttributeMemoryService) RetrieveRelevant(ctx context.Context, sess *models.Session, entryText string, k int) []string {
	texts, ids := s.selectRelevant(ctx, sess, entryText, k)
	if len(ids) > 0 {
		if err := s.repo.Touch(ctx, sess.UserID, ids, s.now()); err != nil {
			log.Printf("⚠️ [ATTRIBUTES] Failed to update last access: %v", err)
		}
	}
	return texts
}

// PeekRelevant selects like RetrieveRelevant but leaves lastAccessed alone, so looking at a
// preview does not change which trait is evicted next.
func (s *AttributeMemoryService) PeekRelevant(ctx context.Context, sess *models.Session, entryText string, k int) []string {
	texts, _ := s.selectRelevant(ctx, sess, entryText, k)
	return texts
}

func (s *AttributeMemoryService) selectRelevant(ctx context.Context, sess *models.Session, entryText string, k int) ([]string, []string) {
	if k <= 0 {
		k = models.DefaultRelevantAttributes
	}
	if sess.APIKey == "" {
		return []string{}, nil
	}

	attrs, err := s.repo.List(ctx, sess.UserID)
	if err != nil {
		log.Printf("⚠️ [ATTRIBUTES] Failed to load attributes for user %s: %v", sess.UserID, err)
		return []string{}, nil
	}
	if len(attrs) == 0 {
		return []string{}, nil
	}

	response, err := s.gateway.Complete(ctx, buildRelevancePrompt(attrs, entryText, k), sess.APIKey, sess.UtilityModel)
	if err != nil {
		log.Printf("⚠️ [ATTRIBUTES] Relevance call failed for user %s: %v", sess.UserID, err)
		return []string{}, nil
	}

	selected, err := parseRelevantFacts(response)
	if err != nil {
		log.Printf("⚠️ [ATTRIBUTES] Could not parse relevance response for user %s: %v", sess.UserID, err)
		return []string{}, nil
	}

	// Only stored texts are trusted; the model may paraphrase or invent facts
	byKey := make(map[string]models.UserAttribute, len(attrs))
	for _, a := range attrs {
		byKey[normalizeFact(a.Text)] = a
	}

	result := make([]string, 0, k)
	ids := make([]string, 0, k)
	seen := make(map[string]bool)
	for _, fact := range selected {
		key := normalizeFact(fact)
		attr, ok := byKey[key]
		if !ok || seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, attr.Text)
		ids = append(ids, attr.ID)
		if len(result) == k {
			break
		}
	}
	return result, ids
}

func buildRelevancePrompt(attrs []models.UserAttribute, entryText string, k int) string {
	facts := make([]string, len(attrs))
	for i, a := range attrs {
		facts[i] = a.Text
	}

	return fmt.Sprintf(`You are a fast AI filtering assistant. From the following list of facts about a user, select the top %d MOST RELEVANT facts to their latest journal entry.
Respond ONLY with a JSON array of the chosen facts, copied exactly. Example: ["Fact 1", "Fact 2"]

USER FACTS:
- %s

LATEST JOURNAL ENTRY:
"%s"`, k, strings.Join(facts, "\n- "), entryText)
}

// parseRelevantFacts decodes the JSON string array between the first '[' and the last ']'
func parseRelevantFacts(response string) ([]string, error) {
	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	if start == -1 || end < start {
		return nil, errors.New("no JSON array in response")
	}

	var facts []string
	if err := json.Unmarshal([]byte(response[start:end+1]), &facts); err != nil {
		return nil, fmt.Errorf("invalid JSON array: %w", err)
	}
	return facts, nil
}

func normalizeFact(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
