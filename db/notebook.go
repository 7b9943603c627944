package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"frequency/models"
)

func (s *MongoStore) ListNotebook(ctx context.Context, userID string) ([]models.NotebookEntry, error) {
	return findAll[models.NotebookEntry](ctx, s.Collection(colNotebook), bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "is_pinned", Value: -1}, {Key: "updated_at", Value: -1}}))
}

func (s *MongoStore) InsertNotebookEntry(ctx context.Context, entry *models.NotebookEntry) error {
	now := time.Now()
	if entry.ID == "" {
		entry.ID = newID()
	}
	if entry.Tags == nil {
		entry.Tags = []string{}
	}
	entry.CreatedAt, entry.UpdatedAt = now, now
	_, err := s.Collection(colNotebook).InsertOne(ctx, entry)
	return err
}

func (s *MongoStore) UpdateNotebookEntry(ctx context.Context, userID, entryID string, patch models.NotebookPatch) (bool, error) {
	set := bson.M{"updated_at": time.Now()}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Content != nil {
		set["content"] = *patch.Content
	}
	if patch.IsPinned != nil {
		set["is_pinned"] = *patch.IsPinned
	}
	if patch.Tags != nil {
		set["tags"] = *patch.Tags
	}

	res, err := s.Collection(colNotebook).UpdateOne(ctx,
		bson.M{"_id": entryID, "user_id": userID}, bson.M{"$set": set})
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func (s *MongoStore) DeleteNotebookEntry(ctx context.Context, userID, entryID string) (bool, error) {
	res, err := s.Collection(colNotebook).DeleteOne(ctx, bson.M{"_id": entryID, "user_id": userID})
	if err != nil {
		return false, err
	}
	return res.DeletedCount == 1, nil
}
