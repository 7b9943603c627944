package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"frequency/models"
)

func (s *MongoStore) ListFlags(ctx context.Context, userID string) ([]models.NarrativeFlag, error) {
	return findAll[models.NarrativeFlag](ctx, s.Collection(colNarrative), bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "unlocked_at", Value: 1}, {Key: "flag_key", Value: 1}}))
}

// InsertFlag is insert-if-absent on (user_id, flag_key).
func (s *MongoStore) InsertFlag(ctx context.Context, flag *models.NarrativeFlag) (bool, error) {
	if flag.UnlockedAt.IsZero() {
		flag.UnlockedAt = time.Now()
	}
	if flag.ID == "" {
		flag.ID = newID()
	}
	res, err := s.Collection(colNarrative).UpdateOne(ctx,
		bson.M{"user_id": flag.UserID, "flag_key": flag.FlagKey},
		bson.M{"$setOnInsert": bson.M{
			"_id":         flag.ID,
			"source_type": flag.SourceType,
			"source_id":   flag.SourceID,
			"unlocked_at": flag.UnlockedAt,
		}},
		options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return res.UpsertedCount == 1, nil
}
