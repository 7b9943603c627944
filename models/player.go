package models

import "time"

type User struct {
	ID           string    `bson:"_id" json:"id"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	LastSession  time.Time `bson:"last_session" json:"last_session"`
	SessionCount int       `bson:"session_count" json:"session_count"`
}

// Conversation is the single thread between a user and a character
type Conversation struct {
	ID            string     `bson:"_id" json:"id"`
	UserID        string     `bson:"user_id" json:"user_id"`
	CharacterID   string     `bson:"character_id" json:"character_id"`
	StartedAt     time.Time  `bson:"started_at" json:"started_at"`
	LastMessageAt *time.Time `bson:"last_message_at,omitempty" json:"last_message_at,omitempty"`
	MessageCount  int        `bson:"message_count" json:"message_count"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleCharacter Role = "character"
)

type Message struct {
	ID             string    `bson:"_id" json:"id"`
	ConversationID string    `bson:"conversation_id" json:"conversation_id"`
	Role           Role      `bson:"role" json:"role"`
	Content        string    `bson:"content" json:"content"`
	AudioURL       string    `bson:"audio_url,omitempty" json:"audio_url,omitempty"`
	Index          int       `bson:"index" json:"index"` // Position in conversation
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
}

// CharacterTrust is the relationship between one user and one character
type CharacterTrust struct {
	ID                string    `bson:"_id" json:"id"`
	UserID            string    `bson:"user_id" json:"user_id"`
	CharacterID       string    `bson:"character_id" json:"character_id"`
	TrustLevel        int       `bson:"trust_level" json:"trust_level"`
	InteractionsCount int       `bson:"interactions_count" json:"interactions_count"`
	RevealedSecrets   []int     `bson:"revealed_secrets" json:"revealed_secrets"`
	UpdatedAt         time.Time `bson:"updated_at" json:"updated_at"`
}

func (t *CharacterTrust) HasRevealed(index int) bool {
	for _, i := range t.RevealedSecrets {
		if i == index {
			return true
		}
	}
	return false
}

type FlagSource string

const (
	FlagSourceCharacter FlagSource = "character"
	FlagSourceSignal    FlagSource = "signal"
	FlagSourceAction    FlagSource = "action"
)

// NarrativeFlag is a write-once story marker for a user
type NarrativeFlag struct {
	ID         string     `bson:"_id" json:"id"`
	UserID     string     `bson:"user_id" json:"user_id"`
	FlagKey    string     `bson:"flag_key" json:"flag_key"`
	SourceType FlagSource `bson:"source_type,omitempty" json:"source_type,omitempty"`
	SourceID   string     `bson:"source_id,omitempty" json:"source_id,omitempty"`
	UnlockedAt time.Time  `bson:"unlocked_at" json:"unlocked_at"`
}

type EntryType string

const (
	EntryFrequency  EntryType = "frequency"
	EntryCharacter  EntryType = "character"
	EntrySignal     EntryType = "signal"
	EntryNote       EntryType = "note"
	EntryScratchpad EntryType = "scratchpad"
)

func (e EntryType) Valid() bool {
	switch e {
	case EntryFrequency, EntryCharacter, EntrySignal, EntryNote, EntryScratchpad:
		return true
	}
	return false
}

type NotebookEntry struct {
	ID           string    `bson:"_id" json:"id"`
	UserID       string    `bson:"user_id" json:"user_id"`
	EntryType    EntryType `bson:"entry_type" json:"entry_type"`
	Title        string    `bson:"title,omitempty" json:"title,omitempty"`
	Content      string    `bson:"content" json:"content"`
	FrequencyRef *float64  `bson:"frequency_ref,omitempty" json:"frequency_ref,omitempty"`
	CharacterRef string    `bson:"character_ref,omitempty" json:"character_ref,omitempty"`
	SignalRef    string    `bson:"signal_ref,omitempty" json:"signal_ref,omitempty"`
	IsPinned     bool      `bson:"is_pinned" json:"is_pinned"`
	Tags         []string  `bson:"tags" json:"tags"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}

// NotebookPatch carries the fields an owner changes; nil means unchanged.
type NotebookPatch struct {
	Title    *string
	Content  *string
	IsPinned *bool
	Tags     *[]string
}

func (p NotebookPatch) Empty() bool {
	return p.Title == nil && p.Content == nil && p.IsPinned == nil && p.Tags == nil
}
