package frequency

import (
	"context"
	"errors"
	"fmt"
	"math"

	"frequency/db"
	"frequency/logger"
	"frequency/models"
)

// Band edges and dial behaviour shared by tune, scan and seek.
const (
	MinFrequency     = 26.000
	MaxFrequency     = 32.000
	Step             = 0.050
	DefaultFrequency = 27.000
)

// Static levels reported to the client.
const (
	ClearStatic    = 0.1
	NoSignalStatic = 0.9
	onFrequency    = 0.01
	staticPerMHz   = 0.3
)

// Round snaps a dial value to the three decimal places every lookup uses.
func Round(f float64) float64 {
	return math.Round(f*1000) / 1000
}

// Advance moves one step in dir, wrapping at the band edges.
func Advance(f float64, dir db.Direction) float64 {
	if dir == db.Down {
		if f = Round(f - Step); f < MinFrequency {
			f = MaxFrequency
		}
		return f
	}
	if f = Round(f + Step); f > MaxFrequency {
		f = MinFrequency
	}
	return f
}

// CalculateStaticLevel ramps noise with distance from the nearest signal.
// nearest is nil when there is no signal in that direction.
func CalculateStaticLevel(target float64, nearest *float64) float64 {
	if nearest == nil {
		return NoSignalStatic
	}
	distance := math.Abs(target - *nearest)
	if distance < onFrequency {
		return ClearStatic
	}
	return math.Min(NoSignalStatic, ClearStatic+distance*staticPerMHz)
}

// Flags is the narrative state the directory gates on.
type Flags interface {
	UserFlags(ctx context.Context, userID string) ([]string, error)
	SetFlag(ctx context.Context, userID, flagKey string, source models.FlagSource, sourceID string) (bool, error)
}

// Info is an occupied slot with its resolved owner, if any.
type Info struct {
	Frequency models.Frequency
	Character *models.Character
	Signal    *models.Signal
}

// StaticLevel is the settled-tune noise for a listener at target.
func (i *Info) StaticLevel(target float64) float64 {
	if i == nil {
		return NoSignalStatic
	}
	if i.Frequency.BroadcastType == models.BroadcastStatic {
		return i.Frequency.StaticLevel
	}
	slot := i.Frequency.Frequency
	return CalculateStaticLevel(target, &slot)
}

type Directory struct {
	store db.ContentStore
	flags Flags
	log   *logger.Logger
}

func NewDirectory(store db.ContentStore, flags Flags, log *logger.Logger) *Directory {
	return &Directory{store: store, flags: flags, log: log.With("service", "FrequencyDirectory")}
}

// FrequencyInfo is the raw exact-match lookup. A nil Info with a nil error
// means nothing is authored there.
func (d *Directory) FrequencyInfo(ctx context.Context, f float64) (*Info, error) {
	slot, err := d.store.FindFrequency(ctx, Round(f))
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find frequency: %w", err)
	}
	return d.resolve(ctx, slot)
}

func (d *Directory) resolve(ctx context.Context, slot *models.Frequency) (*Info, error) {
	info := &Info{Frequency: *slot}
	if slot.SourceID == "" {
		return info, nil
	}

	switch slot.SourceType {
	case models.SourceCharacter:
		c, err := d.store.GetCharacter(ctx, slot.SourceID)
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("get character: %w", err)
		}
		info.Character = c
	case models.SourceSignal:
		s, err := d.store.GetSignal(ctx, slot.SourceID)
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("get signal: %w", err)
		}
		info.Signal = s
	}
	return info, nil
}

// InfoForUser is FrequencyInfo as seen by one player: slots behind an unmet
// flag, inactive owners and signals whose trigger has not fired all read as
// unoccupied.
func (d *Directory) InfoForUser(ctx context.Context, userID string, f float64) (*Info, error) {
	info, err := d.FrequencyInfo(ctx, f)
	if err != nil || info == nil {
		return info, err
	}
	flags, err := d.userFlagSet(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !visible(info, flags) {
		return nil, nil
	}
	return info, nil
}

func visible(info *Info, flags map[string]bool) bool {
	if info.Frequency.RequiresFlag != "" && !flags[info.Frequency.RequiresFlag] {
		return false
	}
	if c := info.Character; c != nil && !c.IsActive {
		return false
	}
	if s := info.Signal; s != nil {
		if !s.IsActive {
			return false
		}
		if s.NarrativeTrigger != "" && !flags[s.NarrativeTrigger] {
			return false
		}
	}
	return true
}

// FrequencyMap lists discoverable slots. With a userID, slots whose
// required flag the user lacks are left out.
func (d *Directory) FrequencyMap(ctx context.Context, userID string) ([]models.FrequencyInfo, error) {
	slots, err := d.store.ListFrequencies(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list frequencies: %w", err)
	}

	var flags map[string]bool
	if userID != "" {
		if flags, err = d.userFlagSet(ctx, userID); err != nil {
			return nil, err
		}
	}

	out := make([]models.FrequencyInfo, 0, len(slots))
	for _, s := range slots {
		if s.RequiresFlag != "" && !flags[s.RequiresFlag] {
			continue
		}
		out = append(out, models.FrequencyInfo{
			Frequency:      s.Frequency,
			BroadcastType:  s.BroadcastType,
			Label:          s.Label,
			IsDiscoverable: s.IsDiscoverable,
		})
	}
	return out, nil
}

// FindNearestSignal returns the first discoverable non-static slot strictly
// past f in dir, or nil.
func (d *Directory) FindNearestSignal(ctx context.Context, f float64, dir db.Direction) (*models.Frequency, error) {
	slot, err := d.store.NearestFrequency(ctx, Round(f), dir)
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("nearest frequency: %w", err)
	}
	return slot, nil
}

// SeekSignal walks FindNearestSignal until it reaches a slot the user can
// actually hear. It does not wrap around the band.
func (d *Directory) SeekSignal(ctx context.Context, userID string, f float64, dir db.Direction) (*Info, error) {
	flags, err := d.userFlagSet(ctx, userID)
	if err != nil {
		return nil, err
	}
	for cur := f; ; {
		slot, err := d.FindNearestSignal(ctx, cur, dir)
		if err != nil || slot == nil {
			return nil, err
		}
		info, err := d.resolve(ctx, slot)
		if err != nil {
			return nil, err
		}
		if visible(info, flags) {
			return info, nil
		}
		cur = slot.Frequency
	}
}

// UnlockFrequency records flagKey for the user when a signal's reward is a
// frequency. It reports whether the flag was new.
func (d *Directory) UnlockFrequency(ctx context.Context, f float64, userID, flagKey string) (bool, error) {
	created, err := d.flags.SetFlag(ctx, userID, flagKey, models.FlagSourceSignal, "")
	if err != nil {
		return false, fmt.Errorf("unlock %.3f: %w", f, err)
	}
	if created {
		d.log.Info("frequency unlocked", "user_id", userID, "frequency", Round(f), "flag", flagKey)
	}
	return created, nil
}

func (d *Directory) userFlagSet(ctx context.Context, userID string) (map[string]bool, error) {
	keys, err := d.flags.UserFlags(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user flags: %w", err)
	}
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set, nil
}
