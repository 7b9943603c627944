package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"frequency/models"
)

// EnsureConversation creates the (user, character) conversation on first contact.
// The unique index makes concurrent first contacts converge on one row.
func (s *MongoStore) EnsureConversation(ctx context.Context, userID, characterID string) (*models.Conversation, error) {
	filter := bson.M{"user_id": userID, "character_id": characterID}
	update := bson.M{"$setOnInsert": bson.M{
		"_id":           newID(),
		"started_at":    time.Now(),
		"message_count": 0,
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var conv models.Conversation
	err := s.Collection(colConversations).FindOneAndUpdate(ctx, filter, update, opts).Decode(&conv)
	if mongo.IsDuplicateKeyError(err) {
		// lost the insert race, the winner's row is there now
		return s.FindConversation(ctx, userID, characterID)
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s *MongoStore) FindConversation(ctx context.Context, userID, characterID string) (*models.Conversation, error) {
	return findOne[models.Conversation](ctx, s.Collection(colConversations),
		bson.M{"user_id": userID, "character_id": characterID})
}

func (s *MongoStore) RecentMessages(ctx context.Context, conversationID string, limit int) ([]models.Message, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "index", Value: -1}, {Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	msgs, err := findAll[models.Message](ctx, s.Collection(colMessages), bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// MessageHistory retrieves paginated conversation history
func (s *MongoStore) MessageHistory(ctx context.Context, conversationID string, limit, offset int) ([]models.Message, int64, error) {
	collection := s.Collection(colMessages)
	filter := bson.M{"conversation_id": conversationID}

	// Count total messages
	total, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	// Fetch paginated messages
	opts := options.Find().
		SetSort(bson.D{{Key: "index", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	messages, err := findAll[models.Message](ctx, collection, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}

// AppendMessage inserts one message. Empty content is stored as is so the
// conversation's message count matches the rows written.
func (s *MongoStore) AppendMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = newID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	_, err := s.Collection(colMessages).InsertOne(ctx, msg)
	return err
}

func (s *MongoStore) RecordExchange(ctx context.Context, conversationID string, at time.Time, added int) error {
	res, err := s.Collection(colConversations).UpdateOne(ctx,
		bson.M{"_id": conversationID},
		bson.M{
			"$set": bson.M{"last_message_at": at},
			"$inc": bson.M{"message_count": added},
		})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) DeleteUserConversations(ctx context.Context, userID string) (int64, int64, error) {
	convs, err := findAll[models.Conversation](ctx, s.Collection(colConversations), bson.M{"user_id": userID},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return 0, 0, err
	}
	if len(convs) == 0 {
		return 0, 0, nil
	}

	ids := make([]string, 0, len(convs))
	for _, c := range convs {
		ids = append(ids, c.ID)
	}

	msgRes, err := s.Collection(colMessages).DeleteMany(ctx, bson.M{"conversation_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, 0, err
	}
	convRes, err := s.Collection(colConversations).DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, msgRes.DeletedCount, err
	}
	return convRes.DeletedCount, msgRes.DeletedCount, nil
}
