package domain

import "time"

// ConversationID identifies a conversation on the hiring platform.
type ConversationID string

// Page is one authoritative slice of a conversation's history,
// as returned by the gateway.
type Page struct {
	Messages    []Message
	HasMore     bool
	UnreadCount int
}

// TypingUser is an ephemeral presence entry. Timestamp is the instant the
// typing signal was last (re)asserted.
type TypingUser struct {
	ID        string
	Name      string
	Timestamp time.Time
}

// FileUpload is the raw payload handed to the gateway upload call before a
// send that carries an attachment.
type FileUpload struct {
	Name    string
	Size    int64
	Type    string
	Content []byte
}
