// Package memory is a process-local db.Store. The server uses it in demo
// mode and the tests use it everywhere a MongoDB would otherwise be needed.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"frequency/db"
	"frequency/models"
)

type pairKey struct{ user, other string }

type Store struct {
	mu sync.RWMutex

	users         map[string]*models.User
	characters    map[string]*models.Character
	signals       map[string]*models.Signal
	frequencies   map[float64]*models.Frequency
	conversations map[string]*models.Conversation
	convByPair    map[pairKey]string
	messages      map[string][]models.Message
	trust         map[pairKey]*models.CharacterTrust
	flags         map[pairKey]*models.NarrativeFlag
	notebook      map[string]*models.NotebookEntry
}

func New() *Store {
	return &Store{
		users:         map[string]*models.User{},
		characters:    map[string]*models.Character{},
		signals:       map[string]*models.Signal{},
		frequencies:   map[float64]*models.Frequency{},
		conversations: map[string]*models.Conversation{},
		convByPair:    map[pairKey]string{},
		messages:      map[string][]models.Message{},
		trust:         map[pairKey]*models.CharacterTrust{},
		flags:         map[pairKey]*models.NarrativeFlag{},
		notebook:      map[string]*models.NotebookEntry{},
	}
}

var _ db.Store = (*Store)(nil)

func (s *Store) Close(context.Context) error { return nil }

func newID() string { return uuid.NewString() }

// content

func (s *Store) GetCharacter(_ context.Context, id string) (*models.Character, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.characters[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	out := *c
	return &out, nil
}

func (s *Store) GetSignal(_ context.Context, id string) (*models.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sig, ok := s.signals[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	out := *sig
	return &out, nil
}

func (s *Store) ListCharacters(_ context.Context, activeOnly bool) ([]models.Character, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Character{}
	for _, c := range s.characters {
		if activeOnly && !c.IsActive {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Frequency < out[j].Frequency })
	return out, nil
}

func (s *Store) ListSignals(_ context.Context, activeOnly bool) ([]models.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Signal{}
	for _, sig := range s.signals {
		if activeOnly && !sig.IsActive {
			continue
		}
		out = append(out, *sig)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Frequency < out[j].Frequency })
	return out, nil
}

func (s *Store) FindFrequency(_ context.Context, value float64) (*models.Frequency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.frequencies[value]
	if !ok {
		return nil, db.ErrNotFound
	}
	out := *f
	return &out, nil
}

func (s *Store) sortedFrequencies() []models.Frequency {
	out := make([]models.Frequency, 0, len(s.frequencies))
	for _, f := range s.frequencies {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Frequency < out[j].Frequency })
	return out
}

func (s *Store) ListFrequencies(_ context.Context, discoverableOnly bool) ([]models.Frequency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Frequency{}
	for _, f := range s.sortedFrequencies() {
		if discoverableOnly && !f.IsDiscoverable {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func (s *Store) NearestFrequency(_ context.Context, value float64, dir db.Direction) (*models.Frequency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.sortedFrequencies()
	eligible := func(f models.Frequency) bool {
		return f.IsDiscoverable && f.BroadcastType != models.BroadcastStatic
	}
	if dir == db.Down {
		for i := len(all) - 1; i >= 0; i-- {
			if all[i].Frequency < value && eligible(all[i]) {
				return &all[i], nil
			}
		}
		return nil, db.ErrNotFound
	}
	for i := range all {
		if all[i].Frequency > value && eligible(all[i]) {
			return &all[i], nil
		}
	}
	return nil, db.ErrNotFound
}

func (s *Store) UpsertCharacter(_ context.Context, c *models.Character) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.characters {
		if existing.Callsign == c.Callsign {
			row := *c
			row.ID, row.CreatedAt = id, existing.CreatedAt
			s.characters[id] = &row
			return id, nil
		}
	}
	row := *c
	row.ID, row.CreatedAt = newID(), time.Now()
	s.characters[row.ID] = &row
	return row.ID, nil
}

func (s *Store) UpsertSignal(_ context.Context, sig *models.Signal) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.signals {
		if existing.Frequency == sig.Frequency {
			row := *sig
			row.ID, row.CreatedAt = id, existing.CreatedAt
			s.signals[id] = &row
			return id, nil
		}
	}
	row := *sig
	row.ID, row.CreatedAt = newID(), time.Now()
	s.signals[row.ID] = &row
	return row.ID, nil
}

func (s *Store) UpsertFrequency(_ context.Context, f *models.Frequency) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := *f
	row.UpdatedAt = time.Now()
	if existing, ok := s.frequencies[f.Frequency]; ok {
		row.ID = existing.ID
	} else {
		row.ID = newID()
	}
	s.frequencies[f.Frequency] = &row
	return nil
}

// users

func (s *Store) TouchUser(_ context.Context, id string) (*models.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	u, ok := s.users[id]
	if !ok {
		u = &models.User{ID: id, CreatedAt: now}
		s.users[id] = u
	}
	u.LastSession = now
	u.SessionCount++
	out := *u
	return &out, !ok, nil
}

// conversations

func (s *Store) EnsureConversation(_ context.Context, userID, characterID string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{userID, characterID}
	if id, ok := s.convByPair[key]; ok {
		out := *s.conversations[id]
		return &out, nil
	}
	c := &models.Conversation{ID: newID(), UserID: userID, CharacterID: characterID, StartedAt: time.Now()}
	s.conversations[c.ID] = c
	s.convByPair[key] = c.ID
	out := *c
	return &out, nil
}

func (s *Store) FindConversation(_ context.Context, userID, characterID string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.convByPair[pairKey{userID, characterID}]
	if !ok {
		return nil, db.ErrNotFound
	}
	out := *s.conversations[id]
	return &out, nil
}

func (s *Store) RecentMessages(_ context.Context, conversationID string, limit int) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[conversationID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]models.Message{}, msgs...), nil
}

func (s *Store) MessageHistory(_ context.Context, conversationID string, limit, offset int) ([]models.Message, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[conversationID]
	total := int64(len(msgs))
	if offset >= len(msgs) {
		return []models.Message{}, total, nil
	}
	msgs = msgs[offset:]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return append([]models.Message{}, msgs...), total, nil
}

func (s *Store) AppendMessage(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.ID == "" {
		msg.ID = newID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	msgs := append(s.messages[msg.ConversationID], *msg)
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Index < msgs[j].Index })
	s.messages[msg.ConversationID] = msgs
	return nil
}

func (s *Store) RecordExchange(_ context.Context, conversationID string, at time.Time, added int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[conversationID]
	if !ok {
		return db.ErrNotFound
	}
	c.LastMessageAt = &at
	c.MessageCount += added
	return nil
}

func (s *Store) DeleteUserConversations(_ context.Context, userID string) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var convs, msgs int64
	for id, c := range s.conversations {
		if c.UserID != userID {
			continue
		}
		msgs += int64(len(s.messages[id]))
		delete(s.messages, id)
		delete(s.convByPair, pairKey{c.UserID, c.CharacterID})
		delete(s.conversations, id)
		convs++
	}
	return convs, msgs, nil
}

// trust

func (s *Store) EnsureTrust(_ context.Context, userID, characterID string) (*models.CharacterTrust, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyTrust(s.ensureTrustLocked(userID, characterID)), nil
}

func (s *Store) ensureTrustLocked(userID, characterID string) *models.CharacterTrust {
	key := pairKey{userID, characterID}
	t, ok := s.trust[key]
	if !ok {
		t = &models.CharacterTrust{
			ID:              newID(),
			UserID:          userID,
			CharacterID:     characterID,
			RevealedSecrets: []int{},
			UpdatedAt:       time.Now(),
		}
		s.trust[key] = t
	}
	return t
}

func (s *Store) AdjustTrust(_ context.Context, userID, characterID string, delta, min, max int) (*models.CharacterTrust, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trust[pairKey{userID, characterID}]
	if !ok {
		return nil, db.ErrNotFound
	}
	level := t.TrustLevel + delta
	if level > max {
		level = max
	}
	if level < min {
		level = min
	}
	t.TrustLevel = level
	t.InteractionsCount++
	t.UpdatedAt = time.Now()
	return copyTrust(t), nil
}

func (s *Store) AddRevealedSecret(_ context.Context, userID, characterID string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trust[pairKey{userID, characterID}]
	if !ok {
		return db.ErrNotFound
	}
	if !t.HasRevealed(index) {
		t.RevealedSecrets = append(t.RevealedSecrets, index)
	}
	return nil
}

func (s *Store) DeleteUserTrust(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for key := range s.trust {
		if key.user == userID {
			delete(s.trust, key)
			n++
		}
	}
	return n, nil
}

func copyTrust(t *models.CharacterTrust) *models.CharacterTrust {
	out := *t
	out.RevealedSecrets = append([]int{}, t.RevealedSecrets...)
	return &out
}

// narrative flags

func (s *Store) ListFlags(_ context.Context, userID string) ([]models.NarrativeFlag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.NarrativeFlag{}
	for key, f := range s.flags {
		if key.user == userID {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UnlockedAt.Equal(out[j].UnlockedAt) {
			return out[i].UnlockedAt.Before(out[j].UnlockedAt)
		}
		return out[i].FlagKey < out[j].FlagKey
	})
	return out, nil
}

func (s *Store) InsertFlag(_ context.Context, flag *models.NarrativeFlag) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{flag.UserID, flag.FlagKey}
	if _, ok := s.flags[key]; ok {
		return false, nil
	}
	if flag.ID == "" {
		flag.ID = newID()
	}
	if flag.UnlockedAt.IsZero() {
		flag.UnlockedAt = time.Now()
	}
	row := *flag
	s.flags[key] = &row
	return true, nil
}

// notebook

func (s *Store) ListNotebook(_ context.Context, userID string) ([]models.NotebookEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.NotebookEntry{}
	for _, e := range s.notebook {
		if e.UserID == userID {
			row := *e
			row.Tags = append([]string{}, e.Tags...)
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsPinned != out[j].IsPinned {
			return out[i].IsPinned
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *Store) InsertNotebookEntry(_ context.Context, entry *models.NotebookEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if entry.ID == "" {
		entry.ID = newID()
	}
	if entry.Tags == nil {
		entry.Tags = []string{}
	}
	entry.CreatedAt, entry.UpdatedAt = now, now
	row := *entry
	s.notebook[row.ID] = &row
	return nil
}

func (s *Store) UpdateNotebookEntry(_ context.Context, userID, entryID string, patch models.NotebookPatch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.notebook[entryID]
	if !ok || e.UserID != userID {
		return false, nil
	}
	if patch.Title != nil {
		e.Title = *patch.Title
	}
	if patch.Content != nil {
		e.Content = *patch.Content
	}
	if patch.IsPinned != nil {
		e.IsPinned = *patch.IsPinned
	}
	if patch.Tags != nil {
		e.Tags = append([]string{}, (*patch.Tags)...)
	}
	e.UpdatedAt = time.Now()
	return true, nil
}

func (s *Store) DeleteNotebookEntry(_ context.Context, userID, entryID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.notebook[entryID]
	if !ok || e.UserID != userID {
		return false, nil
	}
	delete(s.notebook, entryID)
	return true, nil
}
