package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"frequency/models"
)

func (s *MongoStore) TouchUser(ctx context.Context, id string) (*models.User, bool, error) {
	now := time.Now()
	update := bson.M{
		"$setOnInsert": bson.M{"created_at": now},
		"$set":         bson.M{"last_session": now},
		"$inc":         bson.M{"session_count": 1},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var user models.User
	if err := s.Collection(colUsers).FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&user); err != nil {
		return nil, false, err
	}
	return &user, user.SessionCount == 1, nil
}
