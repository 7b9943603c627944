package session

import (
	"frequency/models"
	"frequency/narrative"
)

// Client to server events.
const (
	EventConnect            = "connect"
	EventTune               = "tune"
	EventScan               = "scan"
	EventStopScan           = "stop_scan"
	EventSeek               = "seek"
	EventPTTStart           = "ptt_start"
	EventPTTEnd             = "ptt_end"
	EventNotebookAdd        = "notebook_add"
	EventNotebookUpdate     = "notebook_update"
	EventNotebookDelete     = "notebook_delete"
	EventResetConversations = "reset_conversations"
)

// Server to client events.
const (
	EventConnected          = "connected"
	EventTuned              = "tuned"
	EventScanUpdate         = "scan_update"
	EventSignalAudio        = "signal_audio"
	EventCharacterThinking  = "character_thinking"
	EventCharacterAudio     = "character_audio"
	EventNarrativeUpdate    = "narrative_update"
	EventNotebookSync       = "notebook_sync"
	EventTranscription      = "transcription"
	EventConversationsReset = "conversations_reset"
	EventError              = "error"
)

// Error codes carried by the error event.
const (
	CodeConnection     = "CONNECTION_ERROR"
	CodeNotConnected   = "NOT_CONNECTED"
	CodeBadPayload     = "BAD_PAYLOAD"
	CodeUnknownEvent   = "UNKNOWN_EVENT"
	CodeTune           = "TUNE_ERROR"
	CodeScan           = "SCAN_ERROR"
	CodeSeek           = "SEEK_ERROR"
	CodeNoSignal       = "NO_SIGNAL"
	CodeNoCharacter    = "NO_CHARACTER"
	CodeDialogue       = "DIALOGUE_ERROR"
	CodeNotebookAdd    = "NOTEBOOK_ADD_ERROR"
	CodeNotebookUpdate = "NOTEBOOK_UPDATE_ERROR"
	CodeNotebookDelete = "NOTEBOOK_DELETE_ERROR"
	CodeReset          = "RESET_ERROR"
)

type ConnectPayload struct {
	UserID string `json:"userId,omitempty"`
}

type TunePayload struct {
	Frequency float64 `json:"frequency"`
}

type ScanPayload struct {
	Direction string `json:"direction"`
	Speed     string `json:"speed"`
}

type SeekPayload struct {
	Direction string `json:"direction"`
}

type PTTStartPayload struct {
	Frequency float64 `json:"frequency"`
}

type PTTEndPayload struct {
	Frequency   float64 `json:"frequency"`
	Transcript  string  `json:"transcript"`
	AudioBase64 string  `json:"audioBase64,omitempty"`
	MimeType    string  `json:"mimeType,omitempty"`
}

type NotebookAddPayload struct {
	EntryType    models.EntryType `json:"entryType"`
	Title        string           `json:"title,omitempty"`
	Content      string           `json:"content"`
	FrequencyRef *float64         `json:"frequencyRef,omitempty"`
	CharacterRef string           `json:"characterRef,omitempty"`
	SignalRef    string           `json:"signalRef,omitempty"`
	Tags         []string         `json:"tags,omitempty"`
}

type NotebookUpdatePayload struct {
	EntryID  string    `json:"entryId"`
	Title    *string   `json:"title,omitempty"`
	Content  *string   `json:"content,omitempty"`
	IsPinned *bool     `json:"isPinned,omitempty"`
	Tags     *[]string `json:"tags,omitempty"`
}

type NotebookDeletePayload struct {
	EntryID string `json:"entryId"`
}

type ConnectedEvent struct {
	UserID          string                 `json:"userId"`
	SessionID       string                 `json:"sessionId"`
	FrequencyMap    []models.FrequencyInfo `json:"frequencyMap"`
	NotebookEntries []models.NotebookEntry `json:"notebookEntries"`
	NarrativeState  []string               `json:"narrativeState"`
}

type TunedEvent struct {
	Frequency         float64              `json:"frequency"`
	BroadcastType     models.BroadcastType `json:"broadcastType"`
	Label             string               `json:"label,omitempty"`
	CharacterID       string               `json:"characterId,omitempty"`
	CharacterCallsign string               `json:"characterCallsign,omitempty"`
	SignalID          string               `json:"signalId,omitempty"`
	SignalContent     string               `json:"signalContent,omitempty"`
	SignalEncoded     string               `json:"signalEncoded,omitempty"`
	StaticLevel       float64              `json:"staticLevel"`
}

type ScanUpdateEvent struct {
	Frequency      float64              `json:"frequency"`
	SignalStrength float64              `json:"signalStrength"`
	Blip           models.BroadcastType `json:"blip,omitempty"`
}

// SignalAudioEvent lets the client render a signal locally. Timings are
// signed milliseconds: positive tone, negative silence.
type SignalAudioEvent struct {
	SignalID   string            `json:"signalId"`
	SignalType models.SignalType `json:"signalType"`
	Timings    []int             `json:"timings"`
	Duration   int               `json:"duration"`
	IsLooping  bool              `json:"isLooping"`
}

type CharacterThinkingEvent struct {
	CharacterID string `json:"characterId"`
	IsThinking  bool   `json:"isThinking"`
}

type CharacterAudioEvent struct {
	CharacterID string `json:"characterId"`
	AudioBase64 string `json:"audioBase64,omitempty"`
	AudioURL    string `json:"audioUrl,omitempty"`
	Transcript  string `json:"transcript"`
	Duration    int    `json:"duration"`
}

type NarrativeUpdateEvent = narrative.Update

type NotebookSyncEvent struct {
	Entries []models.NotebookEntry `json:"entries"`
}

type TranscriptionEvent struct {
	Transcript string `json:"transcript"`
}

type ConversationsResetEvent struct {
	Conversations int64 `json:"conversations"`
	Messages      int64 `json:"messages"`
	Trust         int64 `json:"trust"`
}

// Error is the payload of the error event. The wrapped cause stays server side.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.Code + ": " + e.err.Error()
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.err }

func wireError(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, err: cause}
}
