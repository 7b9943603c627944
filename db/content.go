package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"frequency/models"
)

func (s *MongoStore) GetCharacter(ctx context.Context, id string) (*models.Character, error) {
	return findOne[models.Character](ctx, s.Collection(colCharacters), bson.M{"_id": id})
}

func (s *MongoStore) GetSignal(ctx context.Context, id string) (*models.Signal, error) {
	return findOne[models.Signal](ctx, s.Collection(colSignals), bson.M{"_id": id})
}

func (s *MongoStore) ListCharacters(ctx context.Context, activeOnly bool) ([]models.Character, error) {
	filter := bson.M{}
	if activeOnly {
		filter["is_active"] = true
	}
	return findAll[models.Character](ctx, s.Collection(colCharacters), filter,
		options.Find().SetSort(bson.D{{Key: "frequency", Value: 1}}))
}

func (s *MongoStore) ListSignals(ctx context.Context, activeOnly bool) ([]models.Signal, error) {
	filter := bson.M{}
	if activeOnly {
		filter["is_active"] = true
	}
	return findAll[models.Signal](ctx, s.Collection(colSignals), filter,
		options.Find().SetSort(bson.D{{Key: "frequency", Value: 1}}))
}

func (s *MongoStore) FindFrequency(ctx context.Context, value float64) (*models.Frequency, error) {
	return findOne[models.Frequency](ctx, s.Collection(colFrequencies), bson.M{"frequency": value})
}

func (s *MongoStore) ListFrequencies(ctx context.Context, discoverableOnly bool) ([]models.Frequency, error) {
	filter := bson.M{}
	if discoverableOnly {
		filter["is_discoverable"] = true
	}
	return findAll[models.Frequency](ctx, s.Collection(colFrequencies), filter,
		options.Find().SetSort(bson.D{{Key: "frequency", Value: 1}}))
}

func (s *MongoStore) NearestFrequency(ctx context.Context, value float64, dir Direction) (*models.Frequency, error) {
	op, order := "$gt", 1
	if dir == Down {
		op, order = "$lt", -1
	}
	filter := bson.M{
		"frequency":       bson.M{op: value},
		"broadcast_type":  bson.M{"$ne": models.BroadcastStatic},
		"is_discoverable": true,
	}
	return findOne[models.Frequency](ctx, s.Collection(colFrequencies), filter,
		options.FindOne().SetSort(bson.D{{Key: "frequency", Value: order}}))
}

func (s *MongoStore) UpsertCharacter(ctx context.Context, c *models.Character) (string, error) {
	now := time.Now()
	update := bson.M{
		"$setOnInsert": bson.M{"_id": newID(), "created_at": now},
		"$set": bson.M{
			"display_name":        c.DisplayName,
			"frequency":           c.Frequency,
			"voice_id":            c.VoiceID,
			"voice_description":   c.VoiceDescription,
			"personality_prompt":  c.PersonalityPrompt,
			"speaking_style":      c.SpeakingStyle,
			"background":          c.Background,
			"knowledge":           c.Knowledge,
			"secrets":             c.Secrets,
			"relationships":       c.Relationships,
			"initial_disposition": c.InitialDisposition,
			"is_active":           c.IsActive,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var stored models.Character
	err := s.Collection(colCharacters).
		FindOneAndUpdate(ctx, bson.M{"callsign": c.Callsign}, update, opts).
		Decode(&stored)
	if err != nil {
		return "", err
	}
	return stored.ID, nil
}

func (s *MongoStore) UpsertSignal(ctx context.Context, sig *models.Signal) (string, error) {
	now := time.Now()
	update := bson.M{
		"$setOnInsert": bson.M{"_id": newID(), "created_at": now},
		"$set": bson.M{
			"signal_type":       sig.SignalType,
			"content_text":      sig.ContentText,
			"content_encoded":   sig.ContentEncoded,
			"cipher_type":       sig.CipherType,
			"cipher_key":        sig.CipherKey,
			"narrative_trigger": sig.NarrativeTrigger,
			"reward":            sig.Reward,
			"is_looping":        sig.IsLooping,
			"is_active":         sig.IsActive,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var stored models.Signal
	err := s.Collection(colSignals).
		FindOneAndUpdate(ctx, bson.M{"frequency": sig.Frequency}, update, opts).
		Decode(&stored)
	if err != nil {
		return "", err
	}
	return stored.ID, nil
}

func (s *MongoStore) UpsertFrequency(ctx context.Context, f *models.Frequency) error {
	update := bson.M{
		"$setOnInsert": bson.M{"_id": newID()},
		"$set": bson.M{
			"broadcast_type":  f.BroadcastType,
			"source_type":     f.SourceType,
			"source_id":       f.SourceID,
			"is_discoverable": f.IsDiscoverable,
			"requires_flag":   f.RequiresFlag,
			"label":           f.Label,
			"static_level":    f.StaticLevel,
			"updated_at":      time.Now(),
		},
	}
	_, err := s.Collection(colFrequencies).UpdateOne(ctx,
		bson.M{"frequency": f.Frequency}, update, options.Update().SetUpsert(true))
	return err
}
