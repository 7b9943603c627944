package content

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frequency/db/memory"
	"frequency/logger"
	"frequency/models"
	"frequency/morse"
)

func TestDefaultCatalogIsValid(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	assert.Len(t, c.Characters, 3)
	assert.Len(t, c.Signals, 2)
	assert.Len(t, c.Static, 5)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "outside band",
			yaml: `
characters:
  - callsign: X
    personality_prompt: p
    frequency: 33.0
`,
		},
		{
			name: "two broadcasts on one value",
			yaml: `
characters:
  - callsign: X
    personality_prompt: p
    frequency: 27.45
signals:
  - signal_type: morse
    frequency: 27.4500
`,
		},
		{
			name: "static over a broadcast",
			yaml: `
signals:
  - signal_type: numbers
    frequency: 30.5
static:
  - frequency: 30.5
`,
		},
		{
			name: "bad frequency reward",
			yaml: `
signals:
  - signal_type: numbers
    frequency: 30.5
    reward: {type: frequency, value: soon}
`,
		},
		{
			name: "duplicate callsign",
			yaml: `
characters:
  - {callsign: X, personality_prompt: p, frequency: 27.0}
  - {callsign: X, personality_prompt: p, frequency: 28.0}
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	c, err := Default()
	require.NoError(t, err)

	res, err := Seed(ctx, store, c, logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, &Result{Characters: 3, Signals: 2, Frequencies: 10}, res)

	slot, err := store.FindFrequency(ctx, 27.45)
	require.NoError(t, err)
	assert.Equal(t, models.BroadcastVoice, slot.BroadcastType)
	character, err := store.GetCharacter(ctx, slot.SourceID)
	require.NoError(t, err)
	assert.Equal(t, "ROADRUNNER", character.Callsign)
	assert.Equal(t, models.DispositionFriendly, character.InitialDisposition)

	slot, err = store.FindFrequency(ctx, 29.1)
	require.NoError(t, err)
	assert.Equal(t, models.BroadcastMorse, slot.BroadcastType)
	signal, err := store.GetSignal(ctx, slot.SourceID)
	require.NoError(t, err)
	assert.Equal(t, morse.Encode("THE TOWER REMEMBERS"), signal.ContentEncoded)

	hidden, err := store.FindFrequency(ctx, 31.777)
	require.NoError(t, err)
	assert.Equal(t, "unlocked_freq_31.777", hidden.RequiresFlag)

	// running it twice updates in place
	_, err = Seed(ctx, store, c, logger.Nop())
	require.NoError(t, err)
	characters, err := store.ListCharacters(ctx, false)
	require.NoError(t, err)
	assert.Len(t, characters, 3)
	all, err := store.ListFrequencies(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 10)
}
