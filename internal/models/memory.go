package models

import (
	"time"
)

// UserAttribute is a durable trait statement inferred from the user's writing
type UserAttribute struct {
	ID     string `bson:"_id" json:"id"`
	UserID string `bson:"userId" json:"user_id"`
	Text   string `bson:"text" json:"text"` // One concise sentence, e.g. "User avoids conflict."

	// LRU bookkeeping: the attribute with the oldest LastAccessed is evicted first
	CreatedAt    time.Time `bson:"createdAt" json:"created_at"`
	LastAccessed time.Time `bson:"lastAccessed" json:"last_accessed"`

	SourceEntryIDs []string `bson:"sourceEntryIds" json:"source_entry_ids"`
}

// AttributeCapacity is the maximum number of attributes kept per user
const AttributeCapacity = 50

// DefaultRelevantAttributes is how many attributes are injected into a context block
const DefaultRelevantAttributes = 3

// AttributeExtractionSentinel is the model's answer when an entry reveals nothing durable
const AttributeExtractionSentinel = "NULL"
