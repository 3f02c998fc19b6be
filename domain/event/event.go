// Package event defines the realtime feed events consumed by the router
// and the merge notifications fanned out to local sinks.
package event

import (
	"convsync/domain"
)

type DomainEvent interface {
	Conversation() domain.ConversationID
}

// MessageInserted signals a new authoritative row. The payload is a partial
// reference; the router re-fetches the full message by id.
type MessageInserted struct {
	Conv      domain.ConversationID
	MessageID string
}

func (e MessageInserted) Conversation() domain.ConversationID { return e.Conv }

type MessageUpdated struct {
	Conv      domain.ConversationID
	MessageID string
}

func (e MessageUpdated) Conversation() domain.ConversationID { return e.Conv }

type MessageDeleted struct {
	Conv      domain.ConversationID
	MessageID string
}

func (e MessageDeleted) Conversation() domain.ConversationID { return e.Conv }

// ReactionChanged signals that the reaction rows of a message changed.
// The reaction feed is not conversation-scoped upstream; the router filters
// out messages it does not know.
type ReactionChanged struct {
	Conv      domain.ConversationID
	MessageID string
	Emoji     string
}

func (e ReactionChanged) Conversation() domain.ConversationID { return e.Conv }

// TypingBroadcast is an ad-hoc presence signal relayed on the broadcast
// channel, keyed by conversation.
type TypingBroadcast struct {
	Conv     domain.ConversationID
	UserID   string
	UserName string
	IsTyping bool
}

func (e TypingBroadcast) Conversation() domain.ConversationID { return e.Conv }

// ReactionBroadcast shaves latency for peers; the durable source of truth
// remains the fetch triggered by ReactionChanged.
type ReactionBroadcast struct {
	Conv      domain.ConversationID
	MessageID string
	Emoji     string
	UserID    string
	Action    string
}

func (e ReactionBroadcast) Conversation() domain.ConversationID { return e.Conv }

// MessageMerged is emitted locally after the router upserted an
// authoritative message, so sinks (history cache, search index) can follow.
type MessageMerged struct {
	Conv    domain.ConversationID
	Message domain.Message
}

func (e MessageMerged) Conversation() domain.ConversationID { return e.Conv }

// MessageRemoved is the local counterpart of MessageMerged for deletions.
type MessageRemoved struct {
	Conv    domain.ConversationID
	Message domain.Message
}

func (e MessageRemoved) Conversation() domain.ConversationID { return e.Conv }
