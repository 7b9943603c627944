package notebook

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"frequency/db"
	"frequency/logger"
	"frequency/models"
)

var (
	ErrInvalidEntry  = errors.New("invalid notebook entry")
	ErrEntryNotFound = errors.New("notebook entry not found")
)

// NewEntry is what a player (or discovery logging) writes.
type NewEntry struct {
	EntryType    models.EntryType
	Title        string
	Content      string
	FrequencyRef *float64
	CharacterRef string
	SignalRef    string
	Tags         []string
}

type Service struct {
	store db.NotebookStore
	log   *logger.Logger
}

func NewService(store db.NotebookStore, log *logger.Logger) *Service {
	return &Service{store: store, log: log.With("service", "Notebook")}
}

// List returns pinned entries first, then most recently updated.
func (s *Service) List(ctx context.Context, userID string) ([]models.NotebookEntry, error) {
	entries, err := s.store.ListNotebook(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list notebook: %w", err)
	}
	return entries, nil
}

func (s *Service) Add(ctx context.Context, userID string, e NewEntry) (*models.NotebookEntry, error) {
	if !e.EntryType.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidEntry, e.EntryType)
	}
	if strings.TrimSpace(e.Content) == "" {
		return nil, fmt.Errorf("%w: content required", ErrInvalidEntry)
	}

	entry := &models.NotebookEntry{
		UserID:       userID,
		EntryType:    e.EntryType,
		Title:        e.Title,
		Content:      e.Content,
		FrequencyRef: e.FrequencyRef,
		CharacterRef: e.CharacterRef,
		SignalRef:    e.SignalRef,
		Tags:         e.Tags,
	}
	if err := s.store.InsertNotebookEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("insert notebook entry: %w", err)
	}
	return entry, nil
}

// Update changes the fields set in patch on an entry the user owns.
func (s *Service) Update(ctx context.Context, userID, entryID string, patch models.NotebookPatch) error {
	if entryID == "" || patch.Empty() {
		return fmt.Errorf("%w: nothing to update", ErrInvalidEntry)
	}
	ok, err := s.store.UpdateNotebookEntry(ctx, userID, entryID, patch)
	if err != nil {
		return fmt.Errorf("update notebook entry: %w", err)
	}
	if !ok {
		return ErrEntryNotFound
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, userID, entryID string) error {
	ok, err := s.store.DeleteNotebookEntry(ctx, userID, entryID)
	if err != nil {
		return fmt.Errorf("delete notebook entry: %w", err)
	}
	if !ok {
		return ErrEntryNotFound
	}
	return nil
}

// LogContact records first contact with a character.
func (s *Service) LogContact(ctx context.Context, userID string, c *models.Character) (*models.NotebookEntry, error) {
	f := c.Frequency
	content := fmt.Sprintf("Made contact with %s on %.3f MHz.", c.Callsign, f)
	if c.DisplayName != "" {
		content = fmt.Sprintf("Made contact with %s (%s) on %.3f MHz.", c.Callsign, c.DisplayName, f)
	}
	entry, err := s.Add(ctx, userID, NewEntry{
		EntryType:    models.EntryCharacter,
		Title:        c.Callsign,
		Content:      content,
		FrequencyRef: &f,
		CharacterRef: c.ID,
		Tags:         []string{"auto", "contact"},
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug("logged contact", "user_id", userID, "callsign", c.Callsign)
	return entry, nil
}

// LogFrequency records a newly unlocked frequency.
func (s *Service) LogFrequency(ctx context.Context, userID string, f float64, signalID, note string) (*models.NotebookEntry, error) {
	content := fmt.Sprintf("New frequency: %.3f MHz.", f)
	if note != "" {
		content = note
	}
	entry, err := s.Add(ctx, userID, NewEntry{
		EntryType:    models.EntryFrequency,
		Title:        fmt.Sprintf("%.3f MHz", f),
		Content:      content,
		FrequencyRef: &f,
		SignalRef:    signalID,
		Tags:         []string{"auto", "frequency"},
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug("logged frequency", "user_id", userID, "frequency", f)
	return entry, nil
}
