package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"frequency/db"
	"frequency/logger"
	"frequency/models"
	"frequency/narrative"
	"frequency/prompts"
	"frequency/trust"
)

// ErrCharacterNotFound means the turn named a character id that does not exist.
var ErrCharacterNotFound = errors.New("character not found")

// HistoryLimit is the memory horizon: older messages never reach the model.
const HistoryLimit = 20

// Generator produces the character's reply. Implementations return fallback
// text instead of failing.
type Generator interface {
	Generate(ctx context.Context, systemPrompt string, history []models.Message) string
}

// Synthesizer voices a reply. nil audio is a valid outcome.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) []byte
}

// FlagReader is the narrative state a prompt is built from.
type FlagReader interface {
	UserFlags(ctx context.Context, userID string) ([]string, error)
}

// Store is the persistence a turn touches.
type Store interface {
	db.ConversationStore
	GetCharacter(ctx context.Context, id string) (*models.Character, error)
}

// Response is the outcome of one turn.
type Response struct {
	Character      *models.Character
	Text           string
	Audio          []byte
	TrustDelta     int
	TrustLevel     int
	NarrativeFlags []string
}

type Engine struct {
	store  Store
	ledger *trust.Ledger
	flags  FlagReader
	gen    Generator
	tts    Synthesizer
	scorer trust.Scorer
	log    *logger.Logger
}

type Option func(*Engine)

// WithScorer replaces the default constant trust scorer.
func WithScorer(s trust.Scorer) Option {
	return func(e *Engine) { e.scorer = s }
}

func NewEngine(store Store, ledger *trust.Ledger, flags FlagReader, gen Generator, tts Synthesizer, log *logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		ledger: ledger,
		flags:  flags,
		gen:    gen,
		tts:    tts,
		scorer: trust.DefaultScorer,
		log:    log.With("service", "DialogueEngine"),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// ProcessUserMessage runs one push-to-talk turn against a character. The
// character is resolved before anything is written, so an unknown id
// leaves no trace.
func (e *Engine) ProcessUserMessage(ctx context.Context, userID, characterID, userMessage string) (*Response, error) {
	character, err := e.store.GetCharacter(ctx, characterID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrCharacterNotFound, characterID)
	}
	if err != nil {
		return nil, fmt.Errorf("load character: %w", err)
	}

	conv, err := e.store.EnsureConversation(ctx, userID, characterID)
	if err != nil {
		return nil, fmt.Errorf("ensure conversation: %w", err)
	}

	history, err := e.store.RecentMessages(ctx, conv.ID, HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	standing, err := e.ledger.GetTrust(ctx, userID, characterID)
	if err != nil {
		return nil, err
	}

	flags, err := e.flags.UserFlags(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load flags: %w", err)
	}

	prompt := prompts.ConstructCharacterPrompt(character, history, standing.TrustLevel, flags, userMessage)
	text := e.gen.Generate(ctx, prompt.String(), history)

	next := conv.MessageCount
	if err := e.store.AppendMessage(ctx, &models.Message{
		ConversationID: conv.ID,
		Role:           models.RoleUser,
		Content:        userMessage,
		Index:          next,
	}); err != nil {
		return nil, fmt.Errorf("save user message: %w", err)
	}

	audio := e.tts.Synthesize(ctx, text, character.VoiceID)

	if err := e.store.AppendMessage(ctx, &models.Message{
		ConversationID: conv.ID,
		Role:           models.RoleCharacter,
		Content:        text,
		Index:          next + 1,
	}); err != nil {
		return nil, fmt.Errorf("save character message: %w", err)
	}

	if err := e.store.RecordExchange(ctx, conv.ID, time.Now(), 2); err != nil {
		return nil, fmt.Errorf("record exchange: %w", err)
	}

	delta := e.scorer.Score(userMessage, text)
	updated, err := e.ledger.UpdateTrust(ctx, userID, characterID, delta)
	if err != nil {
		return nil, err
	}

	triggered := triggeredFlags(character, flags)
	if flag, ok, err := e.revealNextSecret(ctx, userID, character, updated); err != nil {
		return nil, err
	} else if ok {
		triggered = append(triggered, flag)
	}

	e.log.Info("dialogue turn",
		"user_id", userID,
		"callsign", character.Callsign,
		"trust_level", updated.TrustLevel,
		"delta", delta,
		"has_audio", audio != nil,
	)

	return &Response{
		Character:      character,
		Text:           text,
		Audio:          audio,
		TrustDelta:     delta,
		TrustLevel:     updated.TrustLevel,
		NarrativeFlags: triggered,
	}, nil
}

// triggeredFlags are the flags this turn earns on its own.
func triggeredFlags(character *models.Character, existing []string) []string {
	met := narrative.MetFlag(character.Callsign)
	for _, f := range existing {
		if f == met {
			return nil
		}
	}
	return []string{met}
}

// SecretFlag names the flag recorded when a secret is revealed.
func SecretFlag(callsign string, index int) string {
	return fmt.Sprintf("secret_%s_%d", strings.ToLower(callsign), index)
}

// revealNextSecret reveals one more secret per turn once trust is past the
// secret threshold.
func (e *Engine) revealNextSecret(ctx context.Context, userID string, character *models.Character, standing *models.CharacterTrust) (string, bool, error) {
	if standing.TrustLevel <= prompts.SecretTrustThreshold {
		return "", false, nil
	}
	for i := range character.Secrets {
		if standing.HasRevealed(i) {
			continue
		}
		if err := e.ledger.RevealSecret(ctx, userID, character.ID, i); err != nil {
			return "", false, err
		}
		return SecretFlag(character.Callsign, i), true, nil
	}
	return "", false, nil
}
