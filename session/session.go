package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"frequency/db"
	"frequency/dialogue"
	"frequency/frequency"
	"frequency/logger"
	"frequency/metrics"
	"frequency/models"
	"frequency/morse"
	"frequency/narrative"
	"frequency/notebook"
)

const (
	DefaultSlowScan = 200 * time.Millisecond
	DefaultFastScan = 50 * time.Millisecond

	msPerWord      = 400
	minSpeechMs    = 1500
	msPerDigit     = 800
	defaultAudioMT = "audio/webm"
)

// Emitter delivers server events to the client. It is called from several
// goroutines and must be safe for that.
type Emitter interface {
	Emit(event string, data any)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(event string, data any)

func (f EmitterFunc) Emit(event string, data any) { f(event, data) }

// Transcriber turns push-to-talk audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// Resetter wipes a user's conversations and trust.
type Resetter interface {
	DeleteUserConversations(ctx context.Context, userID string) (conversations, messages int64, err error)
	DeleteUserTrust(ctx context.Context, userID string) (int64, error)
}

// Services are the shared collaborators every session uses.
type Services struct {
	Users       db.UserStore
	Resetter    Resetter
	Directory   *frequency.Directory
	Narrative   *narrative.Engine
	Dialogue    *dialogue.Engine
	Notebook    *notebook.Service
	Transcriber Transcriber
	Metrics     *metrics.Metrics
	Log         *logger.Logger

	SlowScan time.Duration
	FastScan time.Duration
}

type pttContext struct {
	frequency   float64
	characterID string
	startedAt   time.Time
}

// Session is one connection's protocol state. Events other than ptt_end are
// handled in arrival order by the caller's read loop.
type Session struct {
	id   string
	svc  *Services
	emit Emitter
	log  *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	connectMu sync.Mutex

	mu        sync.Mutex
	userID    string
	frequency float64
	ptt       *pttContext

	scanMu sync.Mutex
	scan   *scanner

	turns sync.WaitGroup
}

func New(svc *Services, emit Emitter) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	return &Session{
		id:        id,
		svc:       svc,
		emit:      emit,
		log:       svc.Log.With("service", "Session", "session_id", id),
		ctx:       ctx,
		cancel:    cancel,
		frequency: frequency.DefaultFrequency,
	}
}

func (s *Session) ID() string { return s.id }

// UserID is empty until the session is connected.
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// Handle dispatches one client event.
func (s *Session) Handle(event string, data json.RawMessage) {
	if s.ctx.Err() != nil {
		return
	}
	start := time.Now()

	if event != EventConnect && s.UserID() == "" {
		s.fail(event, start, wireError(CodeNotConnected, "Connect before sending "+event, nil))
		return
	}

	var werr *Error
	switch event {
	case EventConnect:
		var p ConnectPayload
		if werr = decode(data, &p); werr == nil {
			s.connectMu.Lock()
			werr = s.connect(s.ctx, p.UserID)
			s.connectMu.Unlock()
		}
	case EventTune:
		var p TunePayload
		if werr = decode(data, &p); werr == nil {
			werr = s.tune(s.ctx, p.Frequency)
		}
	case EventScan:
		var p ScanPayload
		if werr = decode(data, &p); werr == nil {
			werr = s.startScan(p)
		}
	case EventStopScan:
		s.stopScan()
	case EventSeek:
		var p SeekPayload
		if werr = decode(data, &p); werr == nil {
			werr = s.seek(s.ctx, p)
		}
	case EventPTTStart:
		var p PTTStartPayload
		if werr = decode(data, &p); werr == nil {
			werr = s.pttStart(s.ctx, p.Frequency)
		}
	case EventPTTEnd:
		var p PTTEndPayload
		if werr = decode(data, &p); werr != nil {
			break
		}
		s.turns.Add(1)
		go func() {
			defer s.turns.Done()
			turnStart := time.Now()
			if werr := s.pttEnd(s.ctx, p); werr != nil {
				s.fail(event, turnStart, werr)
				return
			}
			s.svc.Metrics.RecordEvent(event, "ok", time.Since(turnStart))
		}()
		return
	case EventNotebookAdd:
		var p NotebookAddPayload
		if werr = decode(data, &p); werr == nil {
			werr = s.notebookAdd(s.ctx, p)
		}
	case EventNotebookUpdate:
		var p NotebookUpdatePayload
		if werr = decode(data, &p); werr == nil {
			werr = s.notebookUpdate(s.ctx, p)
		}
	case EventNotebookDelete:
		var p NotebookDeletePayload
		if werr = decode(data, &p); werr == nil {
			werr = s.notebookDelete(s.ctx, p)
		}
	case EventResetConversations:
		werr = s.resetConversations(s.ctx)
	default:
		werr = wireError(CodeUnknownEvent, "Unknown event "+event, nil)
	}

	if werr != nil {
		s.fail(event, start, werr)
		return
	}
	s.svc.Metrics.RecordEvent(event, "ok", time.Since(start))
}

func (s *Session) fail(event string, start time.Time, werr *Error) {
	s.svc.Metrics.RecordEvent(event, "error", time.Since(start))
	if s.ctx.Err() != nil {
		return
	}
	switch werr.Code {
	case CodeNoCharacter, CodeNoSignal, CodeNotConnected:
		s.log.Debug("event rejected", "event", event, "code", werr.Code)
	default:
		s.log.Error("event failed", "event", event, "code", werr.Code, "error", werr)
	}
	s.emit.Emit(EventError, werr)
}

func decode(data json.RawMessage, v any) *Error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return wireError(CodeBadPayload, "Malformed payload", err)
	}
	return nil
}

// AutoConnect binds a fresh user if no connect event has arrived yet.
func (s *Session) AutoConnect() {
	s.connectMu.Lock()
	defer s.connectMu.Unlock()
	if s.ctx.Err() != nil || s.UserID() != "" {
		return
	}
	s.log.Debug("no connect received, binding a new user")
	start := time.Now()
	if werr := s.connect(s.ctx, ""); werr != nil {
		s.fail(EventConnect, start, werr)
		return
	}
	s.svc.Metrics.RecordEvent(EventConnect, "ok", time.Since(start))
}

// Close stops the scan and waits for in-flight turns to give up.
func (s *Session) Close() {
	s.cancel()
	s.stopScan()
	s.mu.Lock()
	s.ptt = nil
	s.mu.Unlock()
	s.turns.Wait()
}

// connect binds the session to a user, creating it when unknown. A later
// connect rebinds.
func (s *Session) connect(ctx context.Context, requested string) *Error {
	id := strings.TrimSpace(requested)
	if id == "" {
		id = uuid.NewString()
	}

	user, created, err := s.svc.Users.TouchUser(ctx, id)
	if err != nil {
		return wireError(CodeConnection, "Failed to establish connection", err)
	}

	var (
		freqMap []models.FrequencyInfo
		entries []models.NotebookEntry
		flags   []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		freqMap, err = s.svc.Directory.FrequencyMap(gctx, user.ID)
		return err
	})
	g.Go(func() error {
		var err error
		entries, err = s.svc.Notebook.List(gctx, user.ID)
		return err
	})
	g.Go(func() error {
		var err error
		flags, err = s.svc.Narrative.UserFlags(gctx, user.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return wireError(CodeConnection, "Failed to establish connection", err)
	}

	s.stopScan()
	s.mu.Lock()
	s.userID = user.ID
	s.ptt = nil
	s.mu.Unlock()

	s.log.Info("user connected", "user_id", user.ID, "new_user", created, "session_count", user.SessionCount)
	s.emit.Emit(EventConnected, &ConnectedEvent{
		UserID:          user.ID,
		SessionID:       s.id,
		FrequencyMap:    freqMap,
		NotebookEntries: nonNil(entries),
		NarrativeState:  nonNil(flags),
	})
	return nil
}

func (s *Session) tune(ctx context.Context, f float64) *Error {
	f = frequency.Round(f)
	userID := s.UserID()
	info, err := s.svc.Directory.InfoForUser(ctx, userID, f)
	if err != nil {
		return wireError(CodeTune, "Failed to tune frequency", err)
	}
	s.mu.Lock()
	s.frequency = f
	s.mu.Unlock()
	return s.tuned(ctx, userID, f, info)
}

// tuned emits the settled result for f and anything the signal there earns.
func (s *Session) tuned(ctx context.Context, userID string, f float64, info *frequency.Info) *Error {
	ev := &TunedEvent{
		Frequency:     f,
		BroadcastType: models.BroadcastStatic,
		StaticLevel:   info.StaticLevel(f),
	}
	if info == nil {
		s.emit.Emit(EventTuned, ev)
		return nil
	}

	ev.BroadcastType = info.Frequency.BroadcastType
	ev.Label = info.Frequency.Label
	if c := info.Character; c != nil {
		ev.CharacterID = c.ID
		ev.CharacterCallsign = c.Callsign
	}
	if sig := info.Signal; sig != nil {
		ev.SignalID = sig.ID
		ev.SignalContent = sig.ContentText
		ev.SignalEncoded = sig.ContentEncoded
	}
	s.emit.Emit(EventTuned, ev)
	s.log.Debug("tuned", "user_id", userID, "frequency", f, "broadcast_type", ev.BroadcastType)

	sig := info.Signal
	if sig == nil {
		return nil
	}
	if audio := signalAudio(sig); audio != nil {
		s.emit.Emit(EventSignalAudio, audio)
	}
	updates, err := s.svc.Narrative.CheckTriggers(ctx, userID, narrative.Context{SignalID: sig.ID})
	if err != nil {
		return wireError(CodeTune, "Failed to record signal", err)
	}
	s.publish(ctx, userID, updates, models.FlagSourceSignal, nil)
	return nil
}

func signalAudio(sig *models.Signal) *SignalAudioEvent {
	switch sig.SignalType {
	case models.SignalMorse:
		timings := morse.Timings(sig.ContentEncoded)
		total := 0
		for _, t := range timings {
			if t < 0 {
				t = -t
			}
			total += t
		}
		return &SignalAudioEvent{
			SignalID:   sig.ID,
			SignalType: sig.SignalType,
			Timings:    timings,
			Duration:   total,
			IsLooping:  sig.IsLooping,
		}
	case models.SignalNumbers:
		digits := 0
		for _, r := range sig.ContentText {
			if r >= '0' && r <= '9' {
				digits++
			}
		}
		return &SignalAudioEvent{
			SignalID:   sig.ID,
			SignalType: sig.SignalType,
			Timings:    []int{},
			Duration:   digits * msPerDigit,
			IsLooping:  sig.IsLooping,
		}
	}
	return nil
}

func (s *Session) seek(ctx context.Context, p SeekPayload) *Error {
	dir := db.Direction(p.Direction)
	if !dir.Valid() {
		return wireError(CodeBadPayload, "direction must be up or down", nil)
	}
	userID := s.UserID()
	s.mu.Lock()
	from := s.frequency
	s.mu.Unlock()

	info, err := s.svc.Directory.SeekSignal(ctx, userID, from, dir)
	if err != nil {
		return wireError(CodeSeek, "Failed to seek", err)
	}
	if info == nil {
		return wireError(CodeNoSignal, "No signal found "+p.Direction+" the dial", nil)
	}
	f := info.Frequency.Frequency
	s.mu.Lock()
	s.frequency = f
	s.mu.Unlock()
	return s.tuned(ctx, userID, f, info)
}

func (s *Session) pttStart(ctx context.Context, f float64) *Error {
	f = frequency.Round(f)
	info, err := s.svc.Directory.InfoForUser(ctx, s.UserID(), f)
	if err != nil {
		return wireError(CodeTune, "Failed to tune frequency", err)
	}
	if info == nil || info.Character == nil {
		return nil
	}
	s.mu.Lock()
	s.ptt = &pttContext{frequency: f, characterID: info.Character.ID, startedAt: time.Now()}
	s.mu.Unlock()
	s.log.Debug("transmitting", "frequency", f, "callsign", info.Character.Callsign)
	return nil
}

func (s *Session) pttEnd(ctx context.Context, p PTTEndPayload) *Error {
	userID := s.UserID()
	s.mu.Lock()
	f := s.frequency
	if p.Frequency != 0 {
		f = frequency.Round(p.Frequency)
	}
	if held := s.ptt; held != nil {
		s.log.Debug("transmission ended", "frequency", held.frequency, "held_ms", time.Since(held.startedAt).Milliseconds())
	}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.ptt = nil
		s.mu.Unlock()
	}()

	transcript := strings.TrimSpace(p.Transcript)
	if transcript == "" && p.AudioBase64 != "" {
		transcript = s.transcribe(ctx, p)
	}
	if transcript == "" {
		s.log.Debug("transmission without words", "frequency", f)
		return nil
	}

	info, err := s.svc.Directory.InfoForUser(ctx, userID, f)
	if err != nil {
		return wireError(CodeDialogue, "Failed to process voice message", err)
	}
	if info == nil || info.Character == nil {
		return wireError(CodeNoCharacter, "No one is listening on this frequency", nil)
	}
	character := info.Character

	s.emit.Emit(EventCharacterThinking, &CharacterThinkingEvent{CharacterID: character.ID, IsThinking: true})
	start := time.Now()
	resp, err := s.svc.Dialogue.ProcessUserMessage(ctx, userID, character.ID, transcript)
	s.emit.Emit(EventCharacterThinking, &CharacterThinkingEvent{CharacterID: character.ID, IsThinking: false})
	if err != nil {
		return wireError(CodeDialogue, "Failed to process voice message", err)
	}
	s.svc.Metrics.RecordDialogueTurn(time.Since(start))

	audio := &CharacterAudioEvent{
		CharacterID: character.ID,
		Transcript:  resp.Text,
		Duration:    speechDuration(resp.Text),
	}
	if len(resp.Audio) > 0 {
		audio.AudioBase64 = base64.StdEncoding.EncodeToString(resp.Audio)
	}
	s.emit.Emit(EventCharacterAudio, audio)

	updates, err := s.svc.Narrative.CheckTriggers(ctx, userID, narrative.Context{CharacterID: character.ID})
	if err != nil {
		return wireError(CodeDialogue, "Failed to record contact", err)
	}
	for _, flag := range resp.NarrativeFlags {
		created, err := s.svc.Narrative.SetFlag(ctx, userID, flag, models.FlagSourceCharacter, character.ID)
		if err != nil {
			return wireError(CodeDialogue, "Failed to record contact", err)
		}
		if created {
			updates = append(updates, narrative.Update{Flag: flag, Source: character.Callsign})
		}
	}
	s.publish(ctx, userID, updates, models.FlagSourceCharacter, character)
	return nil
}

func (s *Session) transcribe(ctx context.Context, p PTTEndPayload) string {
	if s.svc.Transcriber == nil {
		return ""
	}
	audio, err := base64.StdEncoding.DecodeString(p.AudioBase64)
	if err != nil {
		s.log.Warn("undecodable push-to-talk audio", "error", err)
		return ""
	}
	mimeType := p.MimeType
	if mimeType == "" {
		mimeType = defaultAudioMT
	}
	text, err := s.svc.Transcriber.Transcribe(ctx, audio, mimeType)
	if err != nil {
		s.log.Warn("transcription failed", "bytes", len(audio), "error", err)
		return ""
	}
	text = strings.TrimSpace(text)
	if text != "" {
		s.emit.Emit(EventTranscription, &TranscriptionEvent{Transcript: text})
	}
	return text
}

// publish emits newly set flags and logs what they uncovered in the
// notebook. contact is the character the turn spoke to, if any.
func (s *Session) publish(ctx context.Context, userID string, updates []narrative.Update, source models.FlagSource, contact *models.Character) {
	logged := false
	for i := range updates {
		u := updates[i]
		s.svc.Metrics.RecordFlagSet(string(source))
		s.emit.Emit(EventNarrativeUpdate, &u)

		var err error
		switch {
		case u.NewFrequency != nil:
			_, err = s.svc.Notebook.LogFrequency(ctx, userID, *u.NewFrequency, "", u.Message)
		case contact != nil && u.Flag == narrative.MetFlag(contact.Callsign):
			_, err = s.svc.Notebook.LogContact(ctx, userID, contact)
		default:
			continue
		}
		if err != nil {
			s.log.Warn("discovery not logged", "flag", u.Flag, "error", err)
			continue
		}
		logged = true
	}
	if logged {
		s.syncNotebook(ctx, userID)
	}
}

func (s *Session) syncNotebook(ctx context.Context, userID string) {
	entries, err := s.svc.Notebook.List(ctx, userID)
	if err != nil {
		s.log.Warn("notebook sync failed", "error", err)
		return
	}
	s.emit.Emit(EventNotebookSync, &NotebookSyncEvent{Entries: nonNil(entries)})
}

func (s *Session) notebookAdd(ctx context.Context, p NotebookAddPayload) *Error {
	userID := s.UserID()
	_, err := s.svc.Notebook.Add(ctx, userID, notebook.NewEntry{
		EntryType:    p.EntryType,
		Title:        p.Title,
		Content:      p.Content,
		FrequencyRef: p.FrequencyRef,
		CharacterRef: p.CharacterRef,
		SignalRef:    p.SignalRef,
		Tags:         p.Tags,
	})
	if err != nil {
		return wireError(CodeNotebookAdd, notebookMessage(err, "Failed to add notebook entry"), err)
	}
	s.syncNotebook(ctx, userID)
	return nil
}

func (s *Session) notebookUpdate(ctx context.Context, p NotebookUpdatePayload) *Error {
	userID := s.UserID()
	err := s.svc.Notebook.Update(ctx, userID, p.EntryID, models.NotebookPatch{
		Title:    p.Title,
		Content:  p.Content,
		IsPinned: p.IsPinned,
		Tags:     p.Tags,
	})
	if err != nil {
		return wireError(CodeNotebookUpdate, notebookMessage(err, "Failed to update notebook entry"), err)
	}
	s.syncNotebook(ctx, userID)
	return nil
}

func (s *Session) notebookDelete(ctx context.Context, p NotebookDeletePayload) *Error {
	userID := s.UserID()
	if err := s.svc.Notebook.Delete(ctx, userID, p.EntryID); err != nil {
		return wireError(CodeNotebookDelete, notebookMessage(err, "Failed to delete notebook entry"), err)
	}
	s.syncNotebook(ctx, userID)
	return nil
}

func notebookMessage(err error, def string) string {
	switch {
	case errors.Is(err, notebook.ErrInvalidEntry):
		return err.Error()
	case errors.Is(err, notebook.ErrEntryNotFound):
		return "Notebook entry not found"
	}
	return def
}

// resetConversations clears dialogue memory and trust. Flags and the
// notebook survive.
func (s *Session) resetConversations(ctx context.Context) *Error {
	userID := s.UserID()
	convs, msgs, err := s.svc.Resetter.DeleteUserConversations(ctx, userID)
	if err != nil {
		return wireError(CodeReset, "Failed to reset conversations", err)
	}
	trustRows, err := s.svc.Resetter.DeleteUserTrust(ctx, userID)
	if err != nil {
		return wireError(CodeReset, "Failed to reset conversations", err)
	}
	s.log.Info("conversations reset", "user_id", userID, "conversations", convs, "messages", msgs, "trust", trustRows)
	s.emit.Emit(EventConversationsReset, &ConversationsResetEvent{
		Conversations: convs,
		Messages:      msgs,
		Trust:         trustRows,
	})
	return nil
}

// speechDuration estimates how long the reply takes to say.
func speechDuration(text string) int {
	ms := len(strings.Fields(text)) * msPerWord
	if ms < minSpeechMs {
		return minSpeechMs
	}
	return ms
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
