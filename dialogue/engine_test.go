package dialogue

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frequency/db/memory"
	"frequency/logger"
	"frequency/models"
	"frequency/narrative"
	"frequency/trust"
)

type fakeGenerator struct {
	mu      sync.Mutex
	reply   string
	prompts []string
	history [][]models.Message
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string, history []models.Message) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	g.history = append(g.history, history)
	return g.reply
}

type fakeSynth struct{ audio []byte }

func (s fakeSynth) Synthesize(context.Context, string, string) []byte { return s.audio }

type fixture struct {
	store  *memory.Store
	engine *Engine
	gen    *fakeGenerator
	ledger *trust.Ledger
	charID string
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	store := memory.New()
	charID, err := store.UpsertCharacter(context.Background(), &models.Character{
		Callsign:          "ROADRUNNER",
		Frequency:         27.45,
		VoiceID:           "voice-1",
		PersonalityPrompt: "You are Jake Reeves, a trucker.",
		Knowledge:         []models.KnowledgeFact{{Topic: "road", Fact: "Route 9 is closed."}},
		Secrets:           []string{"first secret", "second secret"},
		IsActive:          true,
	})
	require.NoError(t, err)

	gen := &fakeGenerator{reply: "Copy that, good buddy."}
	ledger := trust.NewLedger(store, logger.Nop())
	flags := narrative.NewEngine(store, logger.Nop())
	return &fixture{
		store:  store,
		engine: NewEngine(store, ledger, flags, gen, fakeSynth{audio: []byte("mp3")}, logger.Nop(), opts...),
		gen:    gen,
		ledger: ledger,
		charID: charID,
	}
}

func TestProcessUserMessage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	resp, err := f.engine.ProcessUserMessage(ctx, "u1", f.charID, "hello")
	require.NoError(t, err)
	assert.Equal(t, "Copy that, good buddy.", resp.Text)
	assert.Equal(t, []byte("mp3"), resp.Audio)
	assert.Equal(t, 2, resp.TrustDelta)
	assert.Equal(t, 2, resp.TrustLevel)
	assert.Equal(t, []string{"met_roadrunner"}, resp.NarrativeFlags)

	conv, err := f.store.FindConversation(ctx, "u1", f.charID)
	require.NoError(t, err)
	assert.Equal(t, 2, conv.MessageCount)
	assert.NotNil(t, conv.LastMessageAt)

	msgs, err := f.store.RecentMessages(ctx, conv.ID, 20)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, models.RoleCharacter, msgs[1].Role)
	assert.Equal(t, 1, msgs[1].Index)

	require.Len(t, f.gen.prompts, 1)
	assert.Contains(t, f.gen.prompts[0], "You are Jake Reeves, a trucker.")
	assert.Contains(t, f.gen.prompts[0], `Operator says: "hello"`)
}

func TestSecondTurnSeesHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.engine.ProcessUserMessage(ctx, "u1", f.charID, "hello")
	require.NoError(t, err)

	// the in-engine flag is only reported; the caller persists it
	_, err = narrative.NewEngine(f.store, logger.Nop()).SetFlag(ctx, "u1", "met_roadrunner", models.FlagSourceCharacter, f.charID)
	require.NoError(t, err)

	resp, err := f.engine.ProcessUserMessage(ctx, "u1", f.charID, "where are you headed?")
	require.NoError(t, err)
	assert.Empty(t, resp.NarrativeFlags)

	require.Len(t, f.gen.history, 2)
	assert.Len(t, f.gen.history[1], 2)
	assert.Contains(t, f.gen.prompts[1], "Operator: hello\nYou: Copy that, good buddy.")

	conv, err := f.store.FindConversation(ctx, "u1", f.charID)
	require.NoError(t, err)
	assert.Equal(t, 4, conv.MessageCount)
}

func TestBlankReplyIsStoredAndCounted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.gen.reply = "   "

	_, err := f.engine.ProcessUserMessage(ctx, "u1", f.charID, "hello")
	require.NoError(t, err)

	conv, err := f.store.FindConversation(ctx, "u1", f.charID)
	require.NoError(t, err)
	msgs, total, err := f.store.MessageHistory(ctx, conv.ID, 50, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, conv.MessageCount)
	assert.Equal(t, int64(conv.MessageCount), total)
	assert.Len(t, msgs, conv.MessageCount)
}

func TestUnknownCharacterLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.engine.ProcessUserMessage(ctx, "u1", "missing", "hello")
	require.ErrorIs(t, err, ErrCharacterNotFound)

	_, err = f.store.FindConversation(ctx, "u1", "missing")
	assert.Error(t, err)
	assert.Empty(t, f.gen.prompts)
}

func TestSecretsRevealedOnePerTurnAboveThreshold(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WithScorer(trust.ConstantScorer(40)))

	var flags []string
	for i := 0; i < 4; i++ {
		resp, err := f.engine.ProcessUserMessage(ctx, "u1", f.charID, "tell me more")
		require.NoError(t, err)
		for _, fl := range resp.NarrativeFlags {
			if strings.HasPrefix(fl, "secret_") {
				flags = append(flags, fl)
			}
		}
	}

	// trust goes 40, 80, 100, 100: secrets land on turns two and three
	assert.Equal(t, []string{"secret_roadrunner_0", "secret_roadrunner_1"}, flags)

	revealed, err := f.ledger.GetRevealedSecrets(ctx, "u1", f.charID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{0, 1}, revealed)
}
