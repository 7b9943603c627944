package narrative

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frequency/db/memory"
	"frequency/logger"
	"frequency/models"
)

func TestSetFlagTrueThenFalse(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(memory.New(), logger.Nop())

	created, err := e.SetFlag(ctx, "u1", "met_nightbird", models.FlagSourceCharacter, "c1")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = e.SetFlag(ctx, "u1", "met_nightbird", models.FlagSourceCharacter, "c1")
	require.NoError(t, err)
	assert.False(t, created)

	flags, err := e.UserFlags(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"met_nightbird"}, flags)
}

func TestCheckTriggers(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	e := NewEngine(store, logger.Nop())

	charID, err := store.UpsertCharacter(ctx, &models.Character{Callsign: "NightBird", IsActive: true})
	require.NoError(t, err)
	freqSig, err := store.UpsertSignal(ctx, &models.Signal{
		SignalType: models.SignalNumbers, Frequency: 30.5, IsActive: true,
		Reward: &models.Reward{Type: models.RewardFrequency, Value: "31.777"},
	})
	require.NoError(t, err)
	infoSig, err := store.UpsertSignal(ctx, &models.Signal{
		SignalType: models.SignalMorse, Frequency: 29.1, IsActive: true,
		Reward: &models.Reward{Type: models.RewardInfo, Value: "tower_hint_1"},
	})
	require.NoError(t, err)
	badSig, err := store.UpsertSignal(ctx, &models.Signal{
		SignalType: models.SignalNumbers, Frequency: 30.9, IsActive: true,
		Reward: &models.Reward{Type: models.RewardFrequency, Value: "not-a-number"},
	})
	require.NoError(t, err)

	freq := 31.777
	tests := []struct {
		name string
		c    Context
		want []Update
	}{
		{
			name: "first contact",
			c:    Context{CharacterID: charID},
			want: []Update{{Flag: "met_nightbird", Source: "NightBird", Message: "Contact established with NightBird"}},
		},
		{
			name: "second contact is silent",
			c:    Context{CharacterID: charID},
		},
		{
			name: "frequency reward",
			c:    Context{SignalID: freqSig},
			want: []Update{{Flag: "unlocked_freq_31.777", Source: "signal", Message: "New frequency discovered: 31.777", NewFrequency: &freq}},
		},
		{
			name: "frequency reward only once",
			c:    Context{SignalID: freqSig},
		},
		{
			name: "info reward sets its value",
			c:    Context{SignalID: infoSig},
			want: []Update{{Flag: "tower_hint_1", Source: "signal"}},
		},
		{
			name: "unparseable reward skipped",
			c:    Context{SignalID: badSig},
		},
		{
			name: "unknown ids ignored",
			c:    Context{CharacterID: "nope", SignalID: "nope"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.CheckTriggers(ctx, "u1", tt.c)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("CheckTriggers mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

type recordingUnlocker struct {
	engine *Engine
	calls  []float64
}

func (u *recordingUnlocker) UnlockFrequency(ctx context.Context, f float64, userID, flagKey string) (bool, error) {
	u.calls = append(u.calls, f)
	return u.engine.SetFlag(ctx, userID, flagKey, models.FlagSourceSignal, "")
}

func TestFrequencyRewardUsesUnlocker(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	e := NewEngine(store, logger.Nop())
	u := &recordingUnlocker{engine: e}
	e.UseUnlocker(u)

	freqSig, err := store.UpsertSignal(ctx, &models.Signal{
		SignalType: models.SignalNumbers, Frequency: 30.5, IsActive: true,
		Reward: &models.Reward{Type: models.RewardFrequency, Value: "31.777"},
	})
	require.NoError(t, err)
	infoSig, err := store.UpsertSignal(ctx, &models.Signal{
		SignalType: models.SignalMorse, Frequency: 29.1, IsActive: true,
		Reward: &models.Reward{Type: models.RewardInfo, Value: "tower_hint_1"},
	})
	require.NoError(t, err)

	got, err := e.CheckTriggers(ctx, "u1", Context{SignalID: freqSig})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "unlocked_freq_31.777", got[0].Flag)
	assert.Equal(t, []float64{31.777}, u.calls)

	got, err = e.CheckTriggers(ctx, "u1", Context{SignalID: freqSig})
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = e.CheckTriggers(ctx, "u1", Context{SignalID: infoSig})
	require.NoError(t, err)
	assert.Len(t, u.calls, 2, "only frequency rewards are unlocked")
}

func TestAvailableContent(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	e := NewEngine(store, logger.Nop())

	charID, err := store.UpsertCharacter(ctx, &models.Character{Callsign: "ROADRUNNER", IsActive: true})
	require.NoError(t, err)
	_, err = store.UpsertCharacter(ctx, &models.Character{Callsign: "GHOST", IsActive: false})
	require.NoError(t, err)
	openSig, err := store.UpsertSignal(ctx, &models.Signal{Frequency: 29.1, IsActive: true})
	require.NoError(t, err)
	gatedSig, err := store.UpsertSignal(ctx, &models.Signal{Frequency: 30.5, IsActive: true, NarrativeTrigger: "met_nightbird"})
	require.NoError(t, err)
	require.NoError(t, store.UpsertFrequency(ctx, &models.Frequency{Frequency: 27.45, BroadcastType: models.BroadcastVoice, IsDiscoverable: true}))
	require.NoError(t, store.UpsertFrequency(ctx, &models.Frequency{Frequency: 31.777, BroadcastType: models.BroadcastVoice, IsDiscoverable: true, RequiresFlag: "unlocked_freq_31.777"}))

	got, err := e.AvailableContent(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{charID}, got.Characters)
	assert.Equal(t, []string{openSig}, got.Signals)
	assert.Equal(t, []float64{27.45}, got.Frequencies)

	_, err = e.SetFlag(ctx, "u1", "met_nightbird", models.FlagSourceCharacter, "")
	require.NoError(t, err)
	_, err = e.SetFlag(ctx, "u1", "unlocked_freq_31.777", models.FlagSourceSignal, "")
	require.NoError(t, err)

	got, err = e.AvailableContent(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{openSig, gatedSig}, got.Signals)
	assert.Equal(t, []float64{27.45, 31.777}, got.Frequencies)
}
