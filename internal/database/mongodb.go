package database

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoDB wraps the MongoDB client and database
type MongoDB struct {
	client   *mongo.Client
	database *mongo.Database
	dbName   string
}

// Collection names
const (
	CollectionEntries     = "entries"
	CollectionGoals       = "goals"
	CollectionDeadlines   = "deadlines"
	CollectionAttributes  = "user_attributes"
	CollectionSummitTurns = "summit_turns"
	CollectionSettings    = "user_settings"
)

const defaultDBName = "advisorjournal"

// NewMongoDB creates a new MongoDB connection with connection pooling
func NewMongoDB(uri string) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(50).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(30 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	dbName := extractDBName(uri)

	db := &MongoDB{
		client:   client,
		database: client.Database(dbName),
		dbName:   dbName,
	}

	log.Printf("✅ Connected to MongoDB database: %s", dbName)

	return db, nil
}

// extractDBName extracts the database name from a MongoDB URI.
// mongodb://localhost:27017/journal?authSource=admin -> journal
func extractDBName(uri string) string {
	rest := uri
	if i := strings.Index(rest, "://"); i != -1 {
		rest = rest[i+3:]
	}
	if i := strings.Index(rest, "?"); i != -1 {
		rest = rest[:i]
	}
	slash := strings.Index(rest, "/")
	if slash == -1 || slash == len(rest)-1 {
		return defaultDBName
	}
	return rest[slash+1:]
}

// Initialize creates indexes for all collections
func (m *MongoDB) Initialize(ctx context.Context) error {
	log.Println("📦 Initializing MongoDB indexes...")

	// Entries: per-user history, newest first
	if err := m.createIndexes(ctx, CollectionEntries, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
	}); err != nil {
		return fmt.Errorf("failed to create entries indexes: %w", err)
	}

	// Goals: the aggregator and weekly reset both select by type and status
	if err := m.createIndexes(ctx, CollectionGoals, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "type", Value: 1}, {Key: "status", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("failed to create goals indexes: %w", err)
	}

	if err := m.createIndexes(ctx, CollectionDeadlines, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "status", Value: 1}, {Key: "dueDate", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("failed to create deadlines indexes: %w", err)
	}

	// Attributes: eviction scans for the oldest lastAccessed
	if err := m.createIndexes(ctx, CollectionAttributes, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "lastAccessed", Value: 1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
	}); err != nil {
		return fmt.Errorf("failed to create user_attributes indexes: %w", err)
	}

	if err := m.createIndexes(ctx, CollectionSummitTurns, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "entryId", Value: 1}, {Key: "createdAt", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("failed to create summit_turns indexes: %w", err)
	}

	log.Println("✅ MongoDB indexes initialized")
	return nil
}

func (m *MongoDB) createIndexes(ctx context.Context, collectionName string, indexes []mongo.IndexModel) error {
	collection := m.database.Collection(collectionName)
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// Collection returns a collection handle
func (m *MongoDB) Collection(name string) *mongo.Collection {
	return m.database.Collection(name)
}

// Database returns the underlying MongoDB database
func (m *MongoDB) Database() *mongo.Database {
	return m.database
}

// Close closes the MongoDB connection
func (m *MongoDB) Close(ctx context.Context) error {
	log.Println("🔌 Closing MongoDB connection...")
	return m.client.Disconnect(ctx)
}

// Ping checks if the database connection is alive
func (m *MongoDB) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}
