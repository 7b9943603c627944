package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"frequency/logger"
)

const (
	colUsers         = "users"
	colCharacters    = "characters"
	colSignals       = "signals"
	colFrequencies   = "frequencies"
	colConversations = "conversations"
	colMessages      = "messages"
	colTrust         = "character_trust"
	colNarrative     = "narrative_state"
	colNotebook      = "notebook_entries"
)

// MongoStore implements Store on MongoDB.
type MongoStore struct {
	client   *mongo.Client
	database *mongo.Database
	log      *logger.Logger
}

// InitMongoDB connects, pings and ensures indexes.
func InitMongoDB(ctx context.Context, uri, dbName string, log *logger.Logger) (*MongoStore, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongodb uri required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	s := &MongoStore{
		client:   client,
		database: client.Database(dbName),
		log:      log.With("service", "MongoStore"),
	}
	if err := s.CreateIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	s.log.Info("Connected to MongoDB", "database", dbName)
	return s, nil
}

// Collection returns a MongoDB collection
func (s *MongoStore) Collection(name string) *mongo.Collection {
	return s.database.Collection(name)
}

// Close closes the MongoDB connection
func (s *MongoStore) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func newID() string {
	return primitive.NewObjectID().Hex()
}

// findOne decodes a single document, mapping a miss to ErrNotFound.
func findOne[T any](ctx context.Context, col *mongo.Collection, filter any, opts ...*options.FindOneOptions) (*T, error) {
	var out T
	if err := col.FindOne(ctx, filter, opts...).Decode(&out); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func findAll[T any](ctx context.Context, col *mongo.Collection, filter any, opts ...*options.FindOptions) ([]T, error) {
	cursor, err := col.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []T{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

var _ Store = (*MongoStore)(nil)
