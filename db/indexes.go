package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CreateIndexes creates the unique keys the upserts rely on plus the lookup indexes.
func (s *MongoStore) CreateIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		colCharacters: {
			{Keys: bson.D{{Key: "callsign", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		colSignals: {
			{Keys: bson.D{{Key: "frequency", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		colFrequencies: {
			// at most one slot per exact dial value
			{Keys: bson.D{{Key: "frequency", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		colConversations: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "character_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		colMessages: {
			{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "index", Value: 1}}},
			{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		colTrust: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "character_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		colNarrative: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "flag_key", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		colNotebook: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "is_pinned", Value: -1}, {Key: "updated_at", Value: -1}}},
		},
	}

	for name, models := range indexes {
		if _, err := s.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	return nil
}
