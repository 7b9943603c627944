package db

import (
	"context"
	"errors"
	"time"

	"frequency/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Direction selects which side of the dial a nearest-slot search walks.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

func (d Direction) Valid() bool { return d == Up || d == Down }

// ContentStore reads the authored catalog: characters, signals, frequency slots.
type ContentStore interface {
	GetCharacter(ctx context.Context, id string) (*models.Character, error)
	GetSignal(ctx context.Context, id string) (*models.Signal, error)
	ListCharacters(ctx context.Context, activeOnly bool) ([]models.Character, error)
	ListSignals(ctx context.Context, activeOnly bool) ([]models.Signal, error)
	// FindFrequency matches the exact (already rounded) dial value.
	FindFrequency(ctx context.Context, value float64) (*models.Frequency, error)
	// ListFrequencies returns slots ordered by value ascending.
	ListFrequencies(ctx context.Context, discoverableOnly bool) ([]models.Frequency, error)
	// NearestFrequency returns the first discoverable non-static slot strictly
	// above (Up) or below (Down) value, ordered toward that edge of the dial.
	NearestFrequency(ctx context.Context, value float64, dir Direction) (*models.Frequency, error)
}

// ContentWriter upserts catalog rows. Only the seeder uses it.
type ContentWriter interface {
	// UpsertCharacter matches on callsign and returns the stored id.
	UpsertCharacter(ctx context.Context, c *models.Character) (string, error)
	// UpsertSignal matches on frequency and returns the stored id.
	UpsertSignal(ctx context.Context, s *models.Signal) (string, error)
	// UpsertFrequency matches on frequency value.
	UpsertFrequency(ctx context.Context, f *models.Frequency) error
}

type UserStore interface {
	// TouchUser loads the user and records a new session, creating the user
	// first when the id is unknown. created reports which happened.
	TouchUser(ctx context.Context, id string) (user *models.User, created bool, err error)
}

type ConversationStore interface {
	// EnsureConversation is an upsert on (user, character).
	EnsureConversation(ctx context.Context, userID, characterID string) (*models.Conversation, error)
	FindConversation(ctx context.Context, userID, characterID string) (*models.Conversation, error)
	// RecentMessages returns the newest limit messages in chronological order.
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]models.Message, error)
	// MessageHistory pages through a conversation oldest first.
	MessageHistory(ctx context.Context, conversationID string, limit, offset int) ([]models.Message, int64, error)
	AppendMessage(ctx context.Context, msg *models.Message) error
	// RecordExchange bumps last activity and message_count by added.
	RecordExchange(ctx context.Context, conversationID string, at time.Time, added int) error
	// DeleteUserConversations removes every conversation and message the user owns.
	DeleteUserConversations(ctx context.Context, userID string) (conversations, messages int64, err error)
}

type TrustStore interface {
	// EnsureTrust is an upsert that creates a zeroed record on first access.
	EnsureTrust(ctx context.Context, userID, characterID string) (*models.CharacterTrust, error)
	// AdjustTrust adds delta clamped to [min, max] and counts one interaction.
	AdjustTrust(ctx context.Context, userID, characterID string, delta, min, max int) (*models.CharacterTrust, error)
	// AddRevealedSecret is a set union on the revealed indices.
	AddRevealedSecret(ctx context.Context, userID, characterID string, index int) error
	DeleteUserTrust(ctx context.Context, userID string) (int64, error)
}

type FlagStore interface {
	// ListFlags returns the user's flags ordered by unlock time.
	ListFlags(ctx context.Context, userID string) ([]models.NarrativeFlag, error)
	// InsertFlag inserts if absent and reports whether a row was created.
	InsertFlag(ctx context.Context, flag *models.NarrativeFlag) (bool, error)
}

type NotebookStore interface {
	// ListNotebook returns pinned entries first, then most recently updated.
	ListNotebook(ctx context.Context, userID string) ([]models.NotebookEntry, error)
	InsertNotebookEntry(ctx context.Context, entry *models.NotebookEntry) error
	// UpdateNotebookEntry and DeleteNotebookEntry only touch rows owned by userID.
	UpdateNotebookEntry(ctx context.Context, userID, entryID string, patch models.NotebookPatch) (bool, error)
	DeleteNotebookEntry(ctx context.Context, userID, entryID string) (bool, error)
}

// Store is everything the server needs from persistence.
type Store interface {
	ContentStore
	ContentWriter
	UserStore
	ConversationStore
	TrustStore
	FlagStore
	NotebookStore
	Close(ctx context.Context) error
}
