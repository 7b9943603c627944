package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"frequency/content"
	"frequency/db/memory"
	"frequency/dialogue"
	"frequency/frequency"
	"frequency/logger"
	"frequency/models"
	"frequency/morse"
	"frequency/narrative"
	"frequency/notebook"
	"frequency/trust"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type event struct {
	name string
	data any
}

type recorder struct {
	mu     sync.Mutex
	events []event
}

func (r *recorder) Emit(name string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{name, data})
}

func (r *recorder) all() []event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event(nil), r.events...)
}

func (r *recorder) named(name string) []any {
	var out []any
	for _, e := range r.all() {
		if e.name == name {
			out = append(out, e.data)
		}
	}
	return out
}

func (r *recorder) names() []string {
	var out []string
	for _, e := range r.all() {
		out = append(out, e.name)
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// waitFor blocks until n events called name have been emitted.
func (r *recorder) waitFor(t *testing.T, name string, n int) []any {
	t.Helper()
	require.Eventually(t, func() bool { return len(r.named(name)) >= n }, 2*time.Second, 2*time.Millisecond,
		"waiting for %d %s events, got %v", n, name, r.names())
	return r.named(name)
}

type fakeGenerator struct{ reply string }

func (g fakeGenerator) Generate(context.Context, string, []models.Message) string { return g.reply }

type fakeSynth struct{}

func (fakeSynth) Synthesize(context.Context, string, string) []byte { return []byte("mp3") }

type fakeTranscriber struct{ text string }

func (f fakeTranscriber) Transcribe(_ context.Context, audio []byte, _ string) (string, error) {
	if len(audio) == 0 {
		return "", nil
	}
	return f.text, nil
}

type harness struct {
	store     *memory.Store
	svc       *Services
	narrative *narrative.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memory.New()
	cat, err := content.Default()
	require.NoError(t, err)
	_, err = content.Seed(context.Background(), store, cat, logger.Nop())
	require.NoError(t, err)

	log := logger.Nop()
	nar := narrative.NewEngine(store, log)
	dir := frequency.NewDirectory(store, nar, log)
	nar.UseUnlocker(dir)
	return &harness{
		store:     store,
		narrative: nar,
		svc: &Services{
			Users:       store,
			Resetter:    store,
			Directory:   dir,
			Narrative:   nar,
			Dialogue:    dialogue.NewEngine(store, trust.NewLedger(store, log), nar, fakeGenerator{reply: "Copy that, good buddy. Stay off the ridge road tonight."}, fakeSynth{}, log),
			Notebook:    notebook.NewService(store, log),
			Transcriber: fakeTranscriber{text: "is anyone out there"},
			Log:         log,
			SlowScan:    2 * time.Millisecond,
			FastScan:    time.Millisecond,
		},
	}
}

// open returns a connected session.
func (h *harness) open(t *testing.T, userID string) (*Session, *recorder) {
	t.Helper()
	rec := &recorder{}
	s := New(h.svc, rec)
	t.Cleanup(s.Close)
	send(t, s, EventConnect, ConnectPayload{UserID: userID})
	rec.waitFor(t, EventConnected, 1)
	return s, rec
}

func send(t *testing.T, s *Session, name string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	s.Handle(name, data)
}

func lastError(t *testing.T, rec *recorder) *Error {
	t.Helper()
	errs := rec.named(EventError)
	require.NotEmpty(t, errs, "no error emitted, got %v", rec.names())
	return errs[len(errs)-1].(*Error)
}

func TestRequiresConnect(t *testing.T) {
	h := newHarness(t)
	rec := &recorder{}
	s := New(h.svc, rec)
	defer s.Close()

	send(t, s, EventTune, TunePayload{Frequency: 27.45})
	assert.Equal(t, CodeNotConnected, lastError(t, rec).Code)
	assert.Empty(t, rec.named(EventTuned))
}

func TestConnect(t *testing.T) {
	h := newHarness(t)
	s, rec := h.open(t, "")

	ev := rec.named(EventConnected)[0].(*ConnectedEvent)
	assert.NotEmpty(t, ev.UserID)
	assert.Equal(t, s.ID(), ev.SessionID)
	assert.Equal(t, []string{}, ev.NarrativeState)
	assert.Equal(t, []models.NotebookEntry{}, ev.NotebookEntries)
	for _, f := range ev.FrequencyMap {
		assert.NotEqual(t, 31.777, f.Frequency, "gated slot leaked into the map")
	}

	// returning user keeps their id
	_, again := h.open(t, ev.UserID)
	assert.Equal(t, ev.UserID, again.named(EventConnected)[0].(*ConnectedEvent).UserID)
}

func TestAutoConnect(t *testing.T) {
	h := newHarness(t)
	rec := &recorder{}
	s := New(h.svc, rec)
	defer s.Close()

	s.AutoConnect()
	rec.waitFor(t, EventConnected, 1)
	userID := s.UserID()
	assert.NotEmpty(t, userID)

	s.AutoConnect()
	assert.Len(t, rec.named(EventConnected), 1)
	assert.Equal(t, userID, s.UserID())
}

func TestTune(t *testing.T) {
	h := newHarness(t)
	s, rec := h.open(t, "u1")

	send(t, s, EventTune, TunePayload{Frequency: 27.45})
	tuned := rec.waitFor(t, EventTuned, 1)[0].(*TunedEvent)
	assert.Equal(t, models.BroadcastVoice, tuned.BroadcastType)
	assert.Equal(t, "ROADRUNNER", tuned.CharacterCallsign)
	assert.NotEmpty(t, tuned.CharacterID)
	assert.Less(t, tuned.StaticLevel, 0.3)

	send(t, s, EventTune, TunePayload{Frequency: 26.5})
	tuned = rec.waitFor(t, EventTuned, 2)[1].(*TunedEvent)
	assert.Equal(t, models.BroadcastStatic, tuned.BroadcastType)
	assert.Equal(t, frequency.NoSignalStatic, tuned.StaticLevel)
	assert.Empty(t, tuned.CharacterID)

	// unrounded input snaps to the dial
	send(t, s, EventTune, TunePayload{Frequency: 27.4501})
	tuned = rec.waitFor(t, EventTuned, 3)[2].(*TunedEvent)
	assert.Equal(t, 27.45, tuned.Frequency)
	assert.Equal(t, models.BroadcastVoice, tuned.BroadcastType)
}

func TestTuneMorseSignal(t *testing.T) {
	h := newHarness(t)
	s, rec := h.open(t, "u1")

	send(t, s, EventTune, TunePayload{Frequency: 29.1})
	tuned := rec.waitFor(t, EventTuned, 1)[0].(*TunedEvent)
	assert.Equal(t, models.BroadcastMorse, tuned.BroadcastType)
	assert.Equal(t, "THE TOWER REMEMBERS", tuned.SignalContent)

	audio := rec.waitFor(t, EventSignalAudio, 1)[0].(*SignalAudioEvent)
	assert.Equal(t, morse.Timings(morse.Encode("THE TOWER REMEMBERS")), audio.Timings)
	assert.True(t, audio.IsLooping)
	assert.Positive(t, audio.Duration)

	update := rec.waitFor(t, EventNarrativeUpdate, 1)[0].(*NarrativeUpdateEvent)
	assert.Equal(t, "tower_hint_1", update.Flag)

	// rewards fire once
	send(t, s, EventTune, TunePayload{Frequency: 29.1})
	rec.waitFor(t, EventTuned, 2)
	assert.Len(t, rec.named(EventNarrativeUpdate), 1)
}

func TestSignalUnlocksFrequency(t *testing.T) {
	h := newHarness(t)
	s, rec := h.open(t, "u1")

	// the numbers station only broadcasts for operators who met NIGHTBIRD
	send(t, s, EventTune, TunePayload{Frequency: 30.5})
	tuned := rec.waitFor(t, EventTuned, 1)[0].(*TunedEvent)
	assert.Equal(t, models.BroadcastStatic, tuned.BroadcastType)

	_, err := h.narrative.SetFlag(context.Background(), "u1", "met_nightbird", models.FlagSourceCharacter, "")
	require.NoError(t, err)

	send(t, s, EventTune, TunePayload{Frequency: 30.5})
	tuned = rec.waitFor(t, EventTuned, 2)[1].(*TunedEvent)
	assert.Equal(t, models.BroadcastNumbers, tuned.BroadcastType)

	audio := rec.waitFor(t, EventSignalAudio, 1)[0].(*SignalAudioEvent)
	assert.Equal(t, []int{}, audio.Timings)
	assert.Equal(t, 7*msPerDigit, audio.Duration)

	update := rec.waitFor(t, EventNarrativeUpdate, 1)[0].(*NarrativeUpdateEvent)
	assert.Equal(t, "unlocked_freq_31.777", update.Flag)
	require.NotNil(t, update.NewFrequency)
	assert.Equal(t, 31.777, *update.NewFrequency)

	synced := rec.waitFor(t, EventNotebookSync, 1)[0].(*NotebookSyncEvent)
	require.Len(t, synced.Entries, 1)
	assert.Equal(t, models.EntryFrequency, synced.Entries[0].EntryType)

	send(t, s, EventTune, TunePayload{Frequency: 31.777})
	tuned = rec.waitFor(t, EventTuned, 3)[2].(*TunedEvent)
	assert.Equal(t, "OPERATOR_9", tuned.CharacterCallsign)

	flags, err := h.store.ListFlags(context.Background(), "u1")
	require.NoError(t, err)
	sources := map[string]models.FlagSource{}
	for _, f := range flags {
		sources[f.FlagKey] = f.SourceType
	}
	assert.Equal(t, models.FlagSourceSignal, sources["unlocked_freq_31.777"])
}

func TestPushToTalk(t *testing.T) {
	h := newHarness(t)
	s, rec := h.open(t, "u1")

	send(t, s, EventTune, TunePayload{Frequency: 27.45})
	characterID := rec.waitFor(t, EventTuned, 1)[0].(*TunedEvent).CharacterID

	send(t, s, EventPTTStart, PTTStartPayload{Frequency: 27.45})
	send(t, s, EventPTTEnd, PTTEndPayload{Frequency: 27.45, Transcript: "hello"})

	audio := rec.waitFor(t, EventCharacterAudio, 1)[0].(*CharacterAudioEvent)
	assert.Equal(t, characterID, audio.CharacterID)
	assert.NotEmpty(t, audio.Transcript)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("mp3")), audio.AudioBase64)
	assert.Equal(t, 10*msPerWord, audio.Duration)

	thinking := rec.named(EventCharacterThinking)
	require.Len(t, thinking, 2)
	assert.True(t, thinking[0].(*CharacterThinkingEvent).IsThinking)
	assert.False(t, thinking[1].(*CharacterThinkingEvent).IsThinking)

	update := rec.waitFor(t, EventNarrativeUpdate, 1)[0].(*NarrativeUpdateEvent)
	assert.Equal(t, "met_roadrunner", update.Flag)
	assert.Equal(t, "Contact established with ROADRUNNER", update.Message)

	synced := rec.waitFor(t, EventNotebookSync, 1)[0].(*NotebookSyncEvent)
	require.Len(t, synced.Entries, 1)
	assert.Equal(t, models.EntryCharacter, synced.Entries[0].EntryType)

	// a second turn earns nothing new
	send(t, s, EventPTTEnd, PTTEndPayload{Frequency: 27.45, Transcript: "over"})
	rec.waitFor(t, EventCharacterAudio, 2)
	s.Close()
	assert.Len(t, rec.named(EventNarrativeUpdate), 1)
}

func TestPushToTalkTranscribesAudio(t *testing.T) {
	h := newHarness(t)
	s, rec := h.open(t, "u1")

	send(t, s, EventPTTEnd, PTTEndPayload{
		Frequency:   27.45,
		AudioBase64: base64.StdEncoding.EncodeToString([]byte("webm")),
	})
	transcription := rec.waitFor(t, EventTranscription, 1)[0].(*TranscriptionEvent)
	assert.Equal(t, "is anyone out there", transcription.Transcript)
	rec.waitFor(t, EventCharacterAudio, 1)
}

func TestPushToTalkWithoutWords(t *testing.T) {
	h := newHarness(t)
	s, rec := h.open(t, "u1")
	rec.reset()

	send(t, s, EventPTTEnd, PTTEndPayload{Frequency: 27.45, Transcript: "   "})
	s.Close()
	assert.Empty(t, rec.names())
}

type failingMessages struct{ *memory.Store }

func (failingMessages) AppendMessage(context.Context, *models.Message) error {
	return errors.New("write failed")
}

func TestPushToTalkDialogueErrorClearsThinking(t *testing.T) {
	h := newHarness(t)
	log := logger.Nop()
	h.svc.Dialogue = dialogue.NewEngine(failingMessages{h.store}, trust.NewLedger(h.store, log), h.narrative,
		fakeGenerator{reply: "Copy that."}, fakeSynth{}, log)
	s, rec := h.open(t, "u1")

	send(t, s, EventPTTEnd, PTTEndPayload{Frequency: 27.45, Transcript: "hello"})
	rec.waitFor(t, EventError, 1)
	assert.Equal(t, CodeDialogue, lastError(t, rec).Code)

	thinking := rec.named(EventCharacterThinking)
	require.Len(t, thinking, 2)
	assert.True(t, thinking[0].(*CharacterThinkingEvent).IsThinking)
	assert.False(t, thinking[1].(*CharacterThinkingEvent).IsThinking)
	assert.Equal(t, []string{EventConnected, EventCharacterThinking, EventCharacterThinking, EventError}, rec.names())
}

func TestPushToTalkUsesTunedFrequency(t *testing.T) {
	h := newHarness(t)
	s, rec := h.open(t, "u1")

	send(t, s, EventTune, TunePayload{Frequency: 27.45})
	rec.waitFor(t, EventTuned, 1)

	send(t, s, EventPTTEnd, PTTEndPayload{Transcript: "hello"})
	audio := rec.waitFor(t, EventCharacterAudio, 1)[0].(*CharacterAudioEvent)
	assert.NotEmpty(t, audio.Transcript)
}

func TestPushToTalkNoCharacter(t *testing.T) {
	h := newHarness(t)
	s, rec := h.open(t, "u1")

	send(t, s, EventPTTStart, PTTStartPayload{Frequency: 26.5})
	assert.Empty(t, rec.named(EventError))

	send(t, s, EventPTTEnd, PTTEndPayload{Frequency: 26.5, Transcript: "hello?"})
	rec.waitFor(t, EventError, 1)
	assert.Equal(t, CodeNoCharacter, lastError(t, rec).Code)
	assert.Empty(t, rec.named(EventCharacterThinking))
}

func TestScanWrapsAtBandEdge(t *testing.T) {
	h := newHarness(t)
	s, rec := h.open(t, "u1")

	send(t, s, EventTune, TunePayload{Frequency: 31.95})
	rec.waitFor(t, EventTuned, 1)

	send(t, s, EventScan, ScanPayload{Direction: "up", Speed: "fast"})
	updates := rec.waitFor(t, EventScanUpdate, 3)
	send(t, s, EventStopScan, nil)

	var got []float64
	for _, u := range updates[:3] {
		got = append(got, u.(*ScanUpdateEvent).Frequency)
	}
	assert.Equal(t, []float64{32.0, 26.0, 26.05}, got)

	count := len(rec.named(EventScanUpdate))
	time.Sleep(10 * time.Millisecond)
	assert.Len(t, rec.named(EventScanUpdate), count, "scan kept running after stop_scan")
}

func TestScanStrength(t *testing.T) {
	h := newHarness(t)
	s, rec := h.open(t, "u1")

	send(t, s, EventTune, TunePayload{Frequency: 27.5})
	rec.waitFor(t, EventTuned, 1)
	send(t, s, EventScan, ScanPayload{Direction: "down", Speed: "slow"})
	updates := rec.waitFor(t, EventScanUpdate, 2)
	send(t, s, EventStopScan, nil)

	hit := updates[0].(*ScanUpdateEvent)
	assert.Equal(t, 27.45, hit.Frequency)
	assert.Equal(t, models.BroadcastVoice, hit.Blip)
	assert.GreaterOrEqual(t, hit.SignalStrength, 0.8)
	assert.LessOrEqual(t, hit.SignalStrength, 1.0)

	miss := updates[1].(*ScanUpdateEvent)
	assert.Equal(t, 27.4, miss.Frequency)
	assert.Equal(t, noiseFloor, miss.SignalStrength)
	assert.Empty(t, miss.Blip)
}

func TestScanLastStartWins(t *testing.T) {
	h := newHarness(t)
	s, rec := h.open(t, "u1")

	send(t, s, EventScan, ScanPayload{Direction: "up", Speed: "slow"})
	send(t, s, EventScan, ScanPayload{Direction: "down", Speed: "fast"})
	send(t, s, EventScan, ScanPayload{Direction: "up", Speed: "fast"})
	rec.waitFor(t, EventScanUpdate, 1)

	s.scanMu.Lock()
	active := s.scan
	s.scanMu.Unlock()
	require.NotNil(t, active)

	send(t, s, EventStopScan, nil)
	send(t, s, EventStopScan, nil)
	assert.Empty(t, rec.named(EventError))

	send(t, s, EventScan, ScanPayload{Direction: "sideways"})
	assert.Equal(t, CodeBadPayload, lastError(t, rec).Code)
}

func TestCloseStopsScan(t *testing.T) {
	h := newHarness(t)
	s, rec := h.open(t, "u1")

	send(t, s, EventScan, ScanPayload{Direction: "up", Speed: "fast"})
	rec.waitFor(t, EventScanUpdate, 1)
	s.Close()

	count := len(rec.named(EventScanUpdate))
	time.Sleep(10 * time.Millisecond)
	assert.Len(t, rec.named(EventScanUpdate), count)

	// events after close are ignored
	send(t, s, EventTune, TunePayload{Frequency: 27.45})
	assert.Empty(t, rec.named(EventTuned))
}

func TestSeek(t *testing.T) {
	h := newHarness(t)
	s, rec := h.open(t, "u1")

	send(t, s, EventSeek, SeekPayload{Direction: "up"})
	tuned := rec.waitFor(t, EventTuned, 1)[0].(*TunedEvent)
	assert.Equal(t, 27.45, tuned.Frequency)
	assert.Equal(t, "ROADRUNNER", tuned.CharacterCallsign)

	// the numbers station and OPERATOR_9 are still hidden
	send(t, s, EventTune, TunePayload{Frequency: 29.5})
	rec.waitFor(t, EventTuned, 2)
	send(t, s, EventSeek, SeekPayload{Direction: "up"})
	assert.Equal(t, CodeNoSignal, lastError(t, rec).Code)

	send(t, s, EventSeek, SeekPayload{Direction: "down"})
	tuned = rec.waitFor(t, EventTuned, 3)[2].(*TunedEvent)
	assert.Equal(t, 29.1, tuned.Frequency)
}

func TestResetConversationsKeepsFlags(t *testing.T) {
	h := newHarness(t)
	s, rec := h.open(t, "u1")

	send(t, s, EventPTTEnd, PTTEndPayload{Frequency: 27.45, Transcript: "hello"})
	rec.waitFor(t, EventNotebookSync, 1)

	send(t, s, EventResetConversations, nil)
	reset := rec.waitFor(t, EventConversationsReset, 1)[0].(*ConversationsResetEvent)
	assert.Equal(t, &ConversationsResetEvent{Conversations: 1, Messages: 2, Trust: 1}, reset)

	ctx := context.Background()
	flags, err := h.narrative.UserFlags(ctx, "u1")
	require.NoError(t, err)
	assert.Contains(t, flags, "met_roadrunner")

	entries, err := h.svc.Notebook.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestNotebookEvents(t *testing.T) {
	h := newHarness(t)
	s, rec := h.open(t, "u1")

	send(t, s, EventNotebookAdd, NotebookAddPayload{EntryType: models.EntryNote, Content: "dots at 29.1"})
	entries := rec.waitFor(t, EventNotebookSync, 1)[0].(*NotebookSyncEvent).Entries
	require.Len(t, entries, 1)
	id := entries[0].ID

	send(t, s, EventNotebookAdd, NotebookAddPayload{EntryType: "diary", Content: "x"})
	assert.Equal(t, CodeNotebookAdd, lastError(t, rec).Code)

	pinned := true
	send(t, s, EventNotebookUpdate, NotebookUpdatePayload{EntryID: id, IsPinned: &pinned})
	entries = rec.waitFor(t, EventNotebookSync, 2)[1].(*NotebookSyncEvent).Entries
	assert.True(t, entries[0].IsPinned)

	// another operator cannot touch it
	other, otherRec := h.open(t, "u2")
	send(t, other, EventNotebookDelete, NotebookDeletePayload{EntryID: id})
	assert.Equal(t, CodeNotebookDelete, lastError(t, otherRec).Code)

	send(t, s, EventNotebookDelete, NotebookDeletePayload{EntryID: id})
	entries = rec.waitFor(t, EventNotebookSync, 3)[2].(*NotebookSyncEvent).Entries
	assert.Empty(t, entries)
}

func TestMalformedEvents(t *testing.T) {
	h := newHarness(t)
	s, rec := h.open(t, "u1")

	s.Handle(EventTune, json.RawMessage(`{"frequency": "loud"}`))
	assert.Equal(t, CodeBadPayload, lastError(t, rec).Code)

	s.Handle("transmit_everything", nil)
	assert.Equal(t, CodeUnknownEvent, lastError(t, rec).Code)
}

func TestSpeechDuration(t *testing.T) {
	assert.Equal(t, minSpeechMs, speechDuration(""))
	assert.Equal(t, minSpeechMs, speechDuration("copy that"))
	assert.Equal(t, 5*msPerWord, speechDuration("one two three four five"))
}

func TestRegistry(t *testing.T) {
	h := newHarness(t)
	r := NewRegistry(nil)

	a := New(h.svc, &recorder{})
	b := New(h.svc, &recorder{})
	r.Add(a)
	r.Add(b)
	assert.Equal(t, 2, r.Len())

	a.AutoConnect()
	a.Handle(EventScan, json.RawMessage(`{"direction":"up","speed":"fast"}`))

	r.Remove(a.ID())
	r.Remove(a.ID())
	assert.Equal(t, 1, r.Len())

	r.CloseAll()
	assert.Equal(t, 0, r.Len())
}
