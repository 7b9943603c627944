package content

import (
	"context"
	"fmt"

	"frequency/db"
	"frequency/frequency"
	"frequency/logger"
	"frequency/models"
	"frequency/morse"
)

// Result counts what a seed run wrote.
type Result struct {
	Characters  int
	Signals     int
	Frequencies int
}

// Seed upserts the catalog. Characters match on callsign, signals and
// slots on frequency, so running it again updates in place.
func Seed(ctx context.Context, w db.ContentWriter, c *Catalog, log *logger.Logger) (*Result, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	log = log.With("service", "Seeder")
	res := &Result{}

	for _, ch := range c.Characters {
		f := frequency.Round(ch.Frequency)
		id, err := w.UpsertCharacter(ctx, &models.Character{
			Callsign:           ch.Callsign,
			DisplayName:        ch.DisplayName,
			Frequency:          f,
			VoiceID:            ch.VoiceID,
			VoiceDescription:   ch.VoiceDescription,
			PersonalityPrompt:  ch.PersonalityPrompt,
			SpeakingStyle:      ch.SpeakingStyle,
			Background:         ch.Background,
			Knowledge:          nonNil(ch.Knowledge),
			Secrets:            nonNil(ch.Secrets),
			Relationships:      nonNil(ch.Relationships),
			InitialDisposition: ch.InitialDisposition,
			IsActive:           !ch.Inactive,
		})
		if err != nil {
			return nil, fmt.Errorf("upsert character %s: %w", ch.Callsign, err)
		}
		label := ch.Label
		if label == "" {
			label = ch.Callsign
		}
		if err := w.UpsertFrequency(ctx, slot(f, models.BroadcastVoice, models.SourceCharacter, id, label, ch.Slot)); err != nil {
			return nil, fmt.Errorf("upsert frequency %.3f: %w", f, err)
		}
		res.Characters++
		res.Frequencies++
		log.Debug("seeded character", "callsign", ch.Callsign, "frequency", f)
	}

	for _, s := range c.Signals {
		f := frequency.Round(s.Frequency)
		encoded := s.ContentText
		if s.SignalType == models.SignalMorse {
			encoded = morse.Encode(s.ContentText)
		}
		id, err := w.UpsertSignal(ctx, &models.Signal{
			SignalType:       s.SignalType,
			Frequency:        f,
			ContentText:      s.ContentText,
			ContentEncoded:   encoded,
			CipherType:       s.CipherType,
			CipherKey:        s.CipherKey,
			NarrativeTrigger: s.NarrativeTrigger,
			Reward:           s.Reward,
			IsLooping:        s.Looping,
			IsActive:         !s.Inactive,
		})
		if err != nil {
			return nil, fmt.Errorf("upsert signal %.3f: %w", f, err)
		}
		if err := w.UpsertFrequency(ctx, slot(f, broadcastFor(s.SignalType), models.SourceSignal, id, s.Label, s.Slot)); err != nil {
			return nil, fmt.Errorf("upsert frequency %.3f: %w", f, err)
		}
		res.Signals++
		res.Frequencies++
		log.Debug("seeded signal", "type", s.SignalType, "frequency", f)
	}

	for _, st := range c.Static {
		f := frequency.Round(st.Frequency)
		if err := w.UpsertFrequency(ctx, &models.Frequency{
			Frequency:      f,
			BroadcastType:  models.BroadcastStatic,
			IsDiscoverable: true,
			StaticLevel:    st.StaticLevel,
		}); err != nil {
			return nil, fmt.Errorf("upsert frequency %.3f: %w", f, err)
		}
		res.Frequencies++
	}

	log.Info("catalog seeded",
		"characters", res.Characters,
		"signals", res.Signals,
		"frequencies", res.Frequencies,
	)
	return res, nil
}

func slot(f float64, bt models.BroadcastType, st models.SourceType, id, label string, s Slot) *models.Frequency {
	return &models.Frequency{
		Frequency:      f,
		BroadcastType:  bt,
		SourceType:     st,
		SourceID:       id,
		IsDiscoverable: !s.Hidden,
		RequiresFlag:   s.RequiresFlag,
		Label:          label,
		StaticLevel:    s.StaticLevel,
	}
}

func broadcastFor(t models.SignalType) models.BroadcastType {
	switch t {
	case models.SignalMorse:
		return models.BroadcastMorse
	case models.SignalNumbers:
		return models.BroadcastNumbers
	default:
		return models.BroadcastAmbient
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
