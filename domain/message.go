// Package domain contains core concepts of the conversation engine.
// This file defines Message and its value objects.
// Messages carry their authoritative server state; only locally-originated
// messages have a Status.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const tempIDPrefix = "temp-"

// MessageStatus describes the delivery state of a locally-originated message.
// Server-confirmed messages carry no status.
type MessageStatus string

const (
	StatusNone    MessageStatus = ""
	StatusSending MessageStatus = "sending"
	StatusSent    MessageStatus = "sent"
	StatusFailed  MessageStatus = "failed"
)

type Sender struct {
	ID          string
	DisplayName string
	Email       string
	Role        string
	IsSelf      bool
}

// Reaction is the aggregate view of one emoji on one message.
type Reaction struct {
	Emoji      string
	Count      int
	Users      []string
	HasReacted bool
}

type Attachment struct {
	URL  string
	Name string
	Size int64
	Type string
}

// ReplyRef is a value snapshot of the replied-to message, not a live link.
type ReplyRef struct {
	ID     string
	Text   string
	Sender Sender
}

type Message struct {
	ID         string
	Text       string
	Sender     Sender
	Timestamp  time.Time
	Reactions  []Reaction
	ReplyTo    *ReplyRef
	Attachment *Attachment
	IsEdited   bool
	Status     MessageStatus
}

// NewTempID generates a process-unique identifier for an optimistic message.
func NewTempID() string {
	return tempIDPrefix + uuid.NewString()
}

// IsTempID reports whether id was generated locally by NewTempID.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, tempIDPrefix)
}

// Reaction returns the aggregate for the given emoji, if present.
func (m Message) Reaction(emoji string) (Reaction, bool) {
	for _, r := range m.Reactions {
		if r.Emoji == emoji {
			return r, true
		}
	}
	return Reaction{}, false
}

// ReactionDelta is a local override of one emoji aggregate, applied between
// the user's toggle and the authoritative reaction-changed event.
type ReactionDelta struct {
	Emoji string
	Added bool
	User  string
}
