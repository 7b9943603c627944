package narrative

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"frequency/db"
	"frequency/logger"
	"frequency/models"
)

// Update describes a flag that was just set, for the client.
type Update struct {
	Flag         string   `json:"flag"`
	Source       string   `json:"source"`
	Message      string   `json:"message,omitempty"`
	NewFrequency *float64 `json:"newFrequency,omitempty"`
}

// Context is the interaction that may satisfy triggers.
type Context struct {
	CharacterID string
	SignalID    string
}

// Available is everything a user can currently reach.
type Available struct {
	Characters  []string  `json:"characters"`
	Signals     []string  `json:"signals"`
	Frequencies []float64 `json:"frequencies"`
}

// Store is the persistence the engine needs.
type Store interface {
	db.FlagStore
	GetCharacter(ctx context.Context, id string) (*models.Character, error)
	GetSignal(ctx context.Context, id string) (*models.Signal, error)
	ListCharacters(ctx context.Context, activeOnly bool) ([]models.Character, error)
	ListSignals(ctx context.Context, activeOnly bool) ([]models.Signal, error)
	ListFrequencies(ctx context.Context, discoverableOnly bool) ([]models.Frequency, error)
}

// Unlocker opens a gated frequency for a user by setting its flag.
type Unlocker interface {
	UnlockFrequency(ctx context.Context, f float64, userID, flagKey string) (bool, error)
}

// Engine records write-once story flags and evaluates triggers.
type Engine struct {
	store    Store
	unlocker Unlocker
	log      *logger.Logger
}

func NewEngine(store Store, log *logger.Logger) *Engine {
	return &Engine{store: store, log: log.With("service", "NarrativeEngine")}
}

// UseUnlocker routes frequency rewards through u. Without one they are set
// as plain signal flags.
func (e *Engine) UseUnlocker(u Unlocker) {
	e.unlocker = u
}

// MetFlag is the first-contact flag for a callsign.
func MetFlag(callsign string) string {
	return "met_" + strings.ToLower(callsign)
}

// UnlockedFrequencyFlag is the flag a frequency reward sets.
func UnlockedFrequencyFlag(f float64) string {
	return fmt.Sprintf("unlocked_freq_%.3f", f)
}

func (e *Engine) UserFlags(ctx context.Context, userID string) ([]string, error) {
	rows, err := e.store.ListFlags(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list flags: %w", err)
	}
	keys := make([]string, 0, len(rows))
	for _, r := range rows {
		keys = append(keys, r.FlagKey)
	}
	return keys, nil
}

// SetFlag reports true only when the flag did not exist yet.
func (e *Engine) SetFlag(ctx context.Context, userID, flagKey string, source models.FlagSource, sourceID string) (bool, error) {
	created, err := e.store.InsertFlag(ctx, &models.NarrativeFlag{
		UserID:     userID,
		FlagKey:    flagKey,
		SourceType: source,
		SourceID:   sourceID,
	})
	if err != nil {
		return false, fmt.Errorf("insert flag %s: %w", flagKey, err)
	}
	if created {
		e.log.Info("flag set", "user_id", userID, "flag", flagKey, "source", source)
	}
	return created, nil
}

// CheckTriggers sets whatever flags the interaction earns and describes the
// ones that were new.
func (e *Engine) CheckTriggers(ctx context.Context, userID string, c Context) ([]Update, error) {
	var updates []Update

	if c.CharacterID != "" {
		character, err := e.store.GetCharacter(ctx, c.CharacterID)
		switch {
		case errors.Is(err, db.ErrNotFound):
		case err != nil:
			return nil, fmt.Errorf("get character: %w", err)
		default:
			flag := MetFlag(character.Callsign)
			created, err := e.SetFlag(ctx, userID, flag, models.FlagSourceCharacter, character.ID)
			if err != nil {
				return nil, err
			}
			if created {
				updates = append(updates, Update{
					Flag:    flag,
					Source:  character.Callsign,
					Message: "Contact established with " + character.Callsign,
				})
			}
		}
	}

	if c.SignalID != "" {
		signal, err := e.store.GetSignal(ctx, c.SignalID)
		switch {
		case errors.Is(err, db.ErrNotFound):
		case err != nil:
			return nil, fmt.Errorf("get signal: %w", err)
		default:
			u, err := e.rewardUpdate(ctx, userID, signal)
			if err != nil {
				return nil, err
			}
			if u != nil {
				updates = append(updates, *u)
			}
		}
	}

	return updates, nil
}

func (e *Engine) rewardUpdate(ctx context.Context, userID string, signal *models.Signal) (*Update, error) {
	r := signal.Reward
	if r == nil || r.Value == "" {
		return nil, nil
	}

	u := &Update{Source: "signal"}
	switch r.Type {
	case models.RewardFrequency:
		f, err := strconv.ParseFloat(strings.TrimSpace(r.Value), 64)
		if err != nil {
			e.log.Debug("skipping unparseable frequency reward", "signal_id", signal.ID, "value", r.Value)
			return nil, nil
		}
		u.Flag = UnlockedFrequencyFlag(f)
		u.Message = fmt.Sprintf("New frequency discovered: %.3f", f)
		u.NewFrequency = &f
	case models.RewardPassword:
		u.Flag = "password_" + r.Value
		u.Message = "Password recorded: " + r.Value
	case models.RewardInfo, models.RewardStoryBeat:
		u.Flag = r.Value
	default:
		return nil, nil
	}

	var created bool
	var err error
	if u.NewFrequency != nil && e.unlocker != nil {
		created, err = e.unlocker.UnlockFrequency(ctx, *u.NewFrequency, userID, u.Flag)
	} else {
		created, err = e.SetFlag(ctx, userID, u.Flag, models.FlagSourceSignal, signal.ID)
	}
	if err != nil || !created {
		return nil, err
	}
	return u, nil
}

// AvailableContent lists what the user can reach. Characters are never
// flag-gated; signals and frequencies are.
func (e *Engine) AvailableContent(ctx context.Context, userID string) (*Available, error) {
	keys, err := e.UserFlags(ctx, userID)
	if err != nil {
		return nil, err
	}
	flags := make(map[string]bool, len(keys))
	for _, k := range keys {
		flags[k] = true
	}

	out := &Available{Characters: []string{}, Signals: []string{}, Frequencies: []float64{}}

	characters, err := e.store.ListCharacters(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}
	for _, c := range characters {
		out.Characters = append(out.Characters, c.ID)
	}

	signals, err := e.store.ListSignals(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}
	for _, s := range signals {
		if s.NarrativeTrigger == "" || flags[s.NarrativeTrigger] {
			out.Signals = append(out.Signals, s.ID)
		}
	}

	slots, err := e.store.ListFrequencies(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list frequencies: %w", err)
	}
	for _, f := range slots {
		if f.RequiresFlag == "" || flags[f.RequiresFlag] {
			out.Frequencies = append(out.Frequencies, f.Frequency)
		}
	}
	return out, nil
}
