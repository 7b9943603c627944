package db

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"frequency/models"
)

func (s *MongoStore) EnsureTrust(ctx context.Context, userID, characterID string) (*models.CharacterTrust, error) {
	filter := bson.M{"user_id": userID, "character_id": characterID}
	update := bson.M{"$setOnInsert": bson.M{
		"_id":                newID(),
		"trust_level":        0,
		"interactions_count": 0,
		"revealed_secrets":   []int{},
		"updated_at":         time.Now(),
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var trust models.CharacterTrust
	err := s.Collection(colTrust).FindOneAndUpdate(ctx, filter, update, opts).Decode(&trust)
	if mongo.IsDuplicateKeyError(err) {
		return findOne[models.CharacterTrust](ctx, s.Collection(colTrust), filter)
	}
	if err != nil {
		return nil, err
	}
	return &trust, nil
}

// AdjustTrust clamps server-side in a single pipeline update so concurrent
// adjustments never observe an out-of-range value.
func (s *MongoStore) AdjustTrust(ctx context.Context, userID, characterID string, delta, min, max int) (*models.CharacterTrust, error) {
	filter := bson.M{"user_id": userID, "character_id": characterID}
	pipeline := adjustTrustPipeline(delta, min, max)
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var trust models.CharacterTrust
	err := s.Collection(colTrust).FindOneAndUpdate(ctx, filter, pipeline, opts).Decode(&trust)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &trust, nil
}

func (s *MongoStore) AddRevealedSecret(ctx context.Context, userID, characterID string, index int) error {
	res, err := s.Collection(colTrust).UpdateOne(ctx,
		bson.M{"user_id": userID, "character_id": characterID},
		bson.M{"$addToSet": bson.M{"revealed_secrets": index}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) DeleteUserTrust(ctx context.Context, userID string) (int64, error) {
	res, err := s.Collection(colTrust).DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// adjustTrustPipeline adds delta to trust_level clamped to [min, max] and
// counts the interaction.
func adjustTrustPipeline(delta, min, max int) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"trust_level": bson.M{"$max": bson.A{min, bson.M{"$min": bson.A{max,
				bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$trust_level", 0}}, delta}}}}}},
			"interactions_count": bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$interactions_count", 0}}, 1}},
			"updated_at":         "$$NOW",
		}}},
	}
}
