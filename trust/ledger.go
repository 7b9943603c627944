package trust

import (
	"context"
	"fmt"

	"frequency/db"
	"frequency/logger"
	"frequency/models"
)

const (
	MinTrust = -100
	MaxTrust = 100
)

// Scorer turns one exchange into a trust delta.
type Scorer interface {
	Score(userMessage, response string) int
}

// ScorerFunc adapts a plain function to Scorer.
type ScorerFunc func(userMessage, response string) int

func (f ScorerFunc) Score(userMessage, response string) int { return f(userMessage, response) }

// ConstantScorer awards the same delta for every exchange.
type ConstantScorer int

func (c ConstantScorer) Score(string, string) int { return int(c) }

// DefaultScorer is the per-turn delta the game ships with.
const DefaultScorer = ConstantScorer(2)

// Ledger tracks bounded trust per (user, character).
type Ledger struct {
	store db.TrustStore
	log   *logger.Logger
}

func NewLedger(store db.TrustStore, log *logger.Logger) *Ledger {
	return &Ledger{store: store, log: log.With("service", "TrustLedger")}
}

// GetTrust never returns a missing record; the first call creates it zeroed.
func (l *Ledger) GetTrust(ctx context.Context, userID, characterID string) (*models.CharacterTrust, error) {
	t, err := l.store.EnsureTrust(ctx, userID, characterID)
	if err != nil {
		return nil, fmt.Errorf("ensure trust: %w", err)
	}
	return t, nil
}

// UpdateTrust applies delta clamped to [MinTrust, MaxTrust] and counts one
// interaction whatever the delta.
func (l *Ledger) UpdateTrust(ctx context.Context, userID, characterID string, delta int) (*models.CharacterTrust, error) {
	if _, err := l.GetTrust(ctx, userID, characterID); err != nil {
		return nil, err
	}
	t, err := l.store.AdjustTrust(ctx, userID, characterID, delta, MinTrust, MaxTrust)
	if err != nil {
		return nil, fmt.Errorf("adjust trust: %w", err)
	}
	l.log.Debug("trust updated",
		"user_id", userID,
		"character_id", characterID,
		"delta", delta,
		"trust_level", t.TrustLevel,
		"interactions", t.InteractionsCount,
	)
	return t, nil
}

// RevealSecret adds index to the revealed set. Repeats are no-ops.
func (l *Ledger) RevealSecret(ctx context.Context, userID, characterID string, index int) error {
	if _, err := l.GetTrust(ctx, userID, characterID); err != nil {
		return err
	}
	if err := l.store.AddRevealedSecret(ctx, userID, characterID, index); err != nil {
		return fmt.Errorf("reveal secret: %w", err)
	}
	return nil
}

func (l *Ledger) GetRevealedSecrets(ctx context.Context, userID, characterID string) ([]int, error) {
	t, err := l.GetTrust(ctx, userID, characterID)
	if err != nil {
		return nil, err
	}
	return t.RevealedSecrets, nil
}
