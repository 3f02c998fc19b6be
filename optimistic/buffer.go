// Package optimistic tracks local mutations not yet confirmed by the
// server: messages in flight and reaction toggles awaiting their
// authoritative echo. Entries are reversible projections; the buffer never
// talks to the network itself.
package optimistic

import (
	"sync"

	"convsync/domain"
	"convsync/errors"
)

type pendingMessage struct {
	message  domain.Message
	serverID string
}

type Buffer struct {
	mu      sync.RWMutex
	order   []string
	pending map[string]*pendingMessage
	deltas  map[string]map[string]domain.ReactionDelta
}

func NewBuffer() *Buffer {
	return &Buffer{
		pending: make(map[string]*pendingMessage),
		deltas:  make(map[string]map[string]domain.ReactionDelta),
	}
}

// Insert registers a freshly created optimistic message (status sending).
// Identical texts are never deduplicated: every send is its own entry.
func (b *Buffer) Insert(m domain.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending[m.ID] = &pendingMessage{message: m}
	b.order = append(b.order, m.ID)
}

// MarkSent flips an entry to sent and records the server id returned by the
// gateway. The entry stays visible until retirement, which avoids a flicker
// when the realtime event lags the HTTP response.
func (b *Buffer) MarkSent(tempID, serverID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.pending[tempID]
	if !ok {
		return errors.ErrUnknownPending
	}
	p.message.Status = domain.StatusSent
	p.serverID = serverID
	return nil
}

// MarkFailed flips an entry to failed. Failed entries are kept indefinitely
// for the UI to offer retry or discard; there is no automatic retry.
func (b *Buffer) MarkFailed(tempID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.pending[tempID]
	if !ok {
		return errors.ErrUnknownPending
	}
	p.message.Status = domain.StatusFailed
	return nil
}

// MarkSending flips a failed entry back to sending for a UI-driven resend.
func (b *Buffer) MarkSending(tempID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.pending[tempID]
	if !ok {
		return errors.ErrUnknownPending
	}
	if p.message.Status != domain.StatusFailed {
		return errors.ErrNotFailed
	}
	p.message.Status = domain.StatusSending
	return nil
}

// Retire drops an entry by temp id, regardless of state.
func (b *Buffer) Retire(tempID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remove(tempID)
}

// RetireConfirmed retires the optimistic twin of an authoritative insert.
// It prefers an explicit temp-to-server id match; when the feed payload
// predates the send response, it falls back to the oldest sent entry.
func (b *Buffer) RetireConfirmed(serverID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, id := range b.order {
		if p, ok := b.pending[id]; ok && p.serverID == serverID {
			return b.remove(id)
		}
	}
	for _, id := range b.order {
		if p, ok := b.pending[id]; ok && p.message.Status == domain.StatusSent {
			return b.remove(id)
		}
	}
	return false
}

// Remove purges any entry sharing the given id, temp or server side.
// Used when a delete event arrives for a message still in flight.
func (b *Buffer) Remove(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.remove(id) {
		return true
	}
	for _, tempID := range b.order {
		if p, ok := b.pending[tempID]; ok && p.serverID == id {
			return b.remove(tempID)
		}
	}
	return false
}

func (b *Buffer) remove(tempID string) bool {
	if _, ok := b.pending[tempID]; !ok {
		return false
	}
	delete(b.pending, tempID)
	for i, id := range b.order {
		if id == tempID {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return true
}

// Pending returns the buffered messages in insertion order.
func (b *Buffer) Pending() []domain.Message {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]domain.Message, 0, len(b.order))
	for _, id := range b.order {
		if p, ok := b.pending[id]; ok {
			out = append(out, p.message)
		}
	}
	return out
}

// Status reports the current state of a pending entry.
func (b *Buffer) Status(tempID string) (domain.MessageStatus, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	p, ok := b.pending[tempID]
	if !ok {
		return domain.StatusNone, false
	}
	return p.message.Status, true
}

// Message returns a copy of a pending entry.
func (b *Buffer) Message(tempID string) (domain.Message, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	p, ok := b.pending[tempID]
	if !ok {
		return domain.Message{}, false
	}
	return p.message, true
}

// ClaimedServerIDs lists the server ids already assigned to still-pending
// entries. The projection hides those authoritative rows until retirement.
func (b *Buffer) ClaimedServerIDs() map[string]struct{} {
	b.mu.RLock()
	defer b.mu.RUnlock()

	claimed := make(map[string]struct{})
	for _, p := range b.pending {
		if p.serverID != "" {
			claimed[p.serverID] = struct{}{}
		}
	}
	return claimed
}

// ApplyReactionDelta records a local reaction toggle for display overlay.
func (b *Buffer) ApplyReactionDelta(messageID string, delta domain.ReactionDelta) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.deltas[messageID] == nil {
		b.deltas[messageID] = make(map[string]domain.ReactionDelta)
	}
	b.deltas[messageID][delta.Emoji] = delta
}

// ClearReactionDelta drops the override for one (message, emoji) pair.
// Called on gateway rollback and when the authoritative aggregate lands.
func (b *Buffer) ClearReactionDelta(messageID, emoji string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if m, ok := b.deltas[messageID]; ok {
		delete(m, emoji)
		if len(m) == 0 {
			delete(b.deltas, messageID)
		}
	}
}

// ClearReactionDeltas drops every override of a message (deletion case).
func (b *Buffer) ClearReactionDeltas(messageID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.deltas, messageID)
}

// ReactionDelta returns the current override for a (message, emoji) pair.
func (b *Buffer) ReactionDelta(messageID, emoji string) (domain.ReactionDelta, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	d, ok := b.deltas[messageID][emoji]
	return d, ok
}

// Deltas snapshots all reaction overrides keyed by message id.
func (b *Buffer) Deltas() map[string][]domain.ReactionDelta {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[string][]domain.ReactionDelta, len(b.deltas))
	for id, m := range b.deltas {
		for _, d := range m {
			out[id] = append(out[id], d)
		}
	}
	return out
}

func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.pending)
}
