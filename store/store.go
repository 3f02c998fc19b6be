// Package store holds the authoritative half of a conversation: the
// server-confirmed message list, the backward-pagination flag and the
// unread counter. Optimistic entries live in package optimistic; the
// merged display sequence is built by package projection.
package store

import (
	"sort"
	"sync"

	"convsync/domain"
)

type ConversationStore struct {
	mu     sync.RWMutex
	conv   domain.ConversationID
	byID   map[string]domain.Message
	more   bool
	unread int
}

func NewConversationStore(conv domain.ConversationID) *ConversationStore {
	return &ConversationStore{
		conv: conv,
		byID: make(map[string]domain.Message),
	}
}

func (s *ConversationStore) Conversation() domain.ConversationID { return s.conv }

// Load merges one authoritative page. The first page (replace=true) resets
// the store; history pages merge in by id, so a load never corrupts state
// already observed through the feed.
func (s *ConversationStore) Load(page domain.Page, replace bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if replace {
		s.byID = make(map[string]domain.Message, len(page.Messages))
	}
	for _, m := range page.Messages {
		s.byID[m.ID] = m
	}
	s.more = page.HasMore
	s.unread = page.UnreadCount
}

// Upsert inserts or replaces a message by id.
func (s *ConversationStore) Upsert(m domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[m.ID] = m
}

// Remove deletes a message by id and returns the removed copy, so callers
// can propagate the deletion to sinks that key on more than the id.
func (s *ConversationStore) Remove(id string) (domain.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.byID[id]
	if ok {
		delete(s.byID, id)
	}
	return m, ok
}

// Get returns the authoritative copy of a message, if known.
func (s *ConversationStore) Get(id string) (domain.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byID[id]
	return m, ok
}

// Snapshot returns the authoritative messages sorted ascending by timestamp.
// Ties are broken by id so the order is stable across calls.
func (s *ConversationStore) Snapshot() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Message, 0, len(s.byID))
	for _, m := range s.byID {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

func (s *ConversationStore) HasMore() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.more
}

func (s *ConversationStore) Unread() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread
}

func (s *ConversationStore) SetUnread(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unread = n
}

func (s *ConversationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
