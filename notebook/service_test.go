package notebook

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frequency/db/memory"
	"frequency/logger"
	"frequency/models"
)

func TestAddValidates(t *testing.T) {
	s := NewService(memory.New(), logger.Nop())
	ctx := context.Background()

	tests := []struct {
		name  string
		entry NewEntry
		ok    bool
	}{
		{"note", NewEntry{EntryType: models.EntryNote, Content: "static pattern at 29.1"}, true},
		{"unknown type", NewEntry{EntryType: "diary", Content: "x"}, false},
		{"blank content", NewEntry{EntryType: models.EntryNote, Content: "  "}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Add(ctx, "u1", tt.entry)
			if !tt.ok {
				assert.ErrorIs(t, err, ErrInvalidEntry)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, got.ID)
			assert.Equal(t, []string{}, got.Tags)
		})
	}
}

func TestOwnerOnly(t *testing.T) {
	s := NewService(memory.New(), logger.Nop())
	ctx := context.Background()

	entry, err := s.Add(ctx, "u1", NewEntry{EntryType: models.EntryNote, Content: "mine"})
	require.NoError(t, err)

	title := "stolen"
	assert.ErrorIs(t, s.Update(ctx, "u2", entry.ID, models.NotebookPatch{Title: &title}), ErrEntryNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "u2", entry.ID), ErrEntryNotFound)

	assert.ErrorIs(t, s.Update(ctx, "u1", entry.ID, models.NotebookPatch{}), ErrInvalidEntry)

	title = "renamed"
	require.NoError(t, s.Update(ctx, "u1", entry.ID, models.NotebookPatch{Title: &title}))

	entries, err := s.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "renamed", entries[0].Title)
	assert.Equal(t, "mine", entries[0].Content)

	require.NoError(t, s.Delete(ctx, "u1", entry.ID))
	entries, err = s.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestListOrder(t *testing.T) {
	s := NewService(memory.New(), logger.Nop())
	ctx := context.Background()

	first, err := s.Add(ctx, "u1", NewEntry{EntryType: models.EntryNote, Content: "first"})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = s.Add(ctx, "u1", NewEntry{EntryType: models.EntryNote, Content: "second"})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = s.Add(ctx, "u1", NewEntry{EntryType: models.EntryNote, Content: "third"})
	require.NoError(t, err)

	pinned := true
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, s.Update(ctx, "u1", first.ID, models.NotebookPatch{IsPinned: &pinned}))

	entries, err := s.List(ctx, "u1")
	require.NoError(t, err)
	var got []string
	for _, e := range entries {
		got = append(got, e.Content)
	}
	assert.Equal(t, []string{"first", "third", "second"}, got)
}

func TestDiscoveryLogging(t *testing.T) {
	s := NewService(memory.New(), logger.Nop())
	ctx := context.Background()

	contact, err := s.LogContact(ctx, "u1", &models.Character{ID: "c1", Callsign: "NIGHTBIRD", DisplayName: "Helena Cross", Frequency: 28.2})
	require.NoError(t, err)
	assert.Equal(t, models.EntryCharacter, contact.EntryType)
	assert.Equal(t, "c1", contact.CharacterRef)
	assert.Equal(t, "Made contact with NIGHTBIRD (Helena Cross) on 28.200 MHz.", contact.Content)

	freq, err := s.LogFrequency(ctx, "u1", 31.777, "s1", "")
	require.NoError(t, err)
	assert.Equal(t, models.EntryFrequency, freq.EntryType)
	require.NotNil(t, freq.FrequencyRef)
	assert.Equal(t, 31.777, *freq.FrequencyRef)
	assert.Equal(t, "31.777 MHz", freq.Title)
}
