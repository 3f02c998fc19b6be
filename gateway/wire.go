// Package gateway implements the platform backend contract: a JSON HTTP
// client for request/response calls and a websocket client for the
// realtime feed.
package gateway

import (
	"time"

	"github.com/samber/lo"

	"convsync/auth"
	"convsync/domain"
)

// Wire shapes mirror the backend's JSON contract. Domain types stay free
// of serialization tags; converters below translate both ways.

type wireSender struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Role        string `json:"role"`
}

type wireReaction struct {
	Emoji      string   `json:"emoji"`
	Count      int      `json:"count"`
	Users      []string `json:"users"`
	HasReacted bool     `json:"has_reacted"`
}

type wireAttachment struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

type wireReply struct {
	ID     string     `json:"id"`
	Text   string     `json:"text"`
	Sender wireSender `json:"sender"`
}

type wireMessage struct {
	ID         string          `json:"id"`
	Text       string          `json:"text"`
	Sender     wireSender      `json:"sender"`
	Timestamp  time.Time       `json:"timestamp"`
	Reactions  []wireReaction  `json:"reactions"`
	ReplyTo    *wireReply      `json:"reply_to,omitempty"`
	Attachment *wireAttachment `json:"attachment,omitempty"`
	IsEdited   bool            `json:"is_edited"`
}

type wirePage struct {
	Messages    []wireMessage `json:"messages"`
	HasMore     bool          `json:"has_more"`
	UnreadCount int           `json:"unread_count"`
}

// toMessage converts a wire message, tagging IsSelf from the local
// identity. Server messages never carry a Status.
func toMessage(w wireMessage, self auth.Identity) domain.Message {
	m := domain.Message{
		ID:        w.ID,
		Text:      w.Text,
		Sender:    toSender(w.Sender, self),
		Timestamp: w.Timestamp,
		Reactions: lo.Map(w.Reactions, func(r wireReaction, _ int) domain.Reaction {
			return domain.Reaction{
				Emoji:      r.Emoji,
				Count:      r.Count,
				Users:      r.Users,
				HasReacted: r.HasReacted,
			}
		}),
		IsEdited: w.IsEdited,
	}
	if w.ReplyTo != nil {
		m.ReplyTo = &domain.ReplyRef{
			ID:     w.ReplyTo.ID,
			Text:   w.ReplyTo.Text,
			Sender: toSender(w.ReplyTo.Sender, self),
		}
	}
	if w.Attachment != nil {
		m.Attachment = &domain.Attachment{
			URL:  w.Attachment.URL,
			Name: w.Attachment.Name,
			Size: w.Attachment.Size,
			Type: w.Attachment.Type,
		}
	}
	return m
}

func toSender(w wireSender, self auth.Identity) domain.Sender {
	return domain.Sender{
		ID:          w.ID,
		DisplayName: w.DisplayName,
		Email:       w.Email,
		Role:        w.Role,
		IsSelf:      self.IsSelf(w.ID),
	}
}

func toPage(w wirePage, self auth.Identity) domain.Page {
	return domain.Page{
		Messages: lo.Map(w.Messages, func(m wireMessage, _ int) domain.Message {
			return toMessage(m, self)
		}),
		HasMore:     w.HasMore,
		UnreadCount: w.UnreadCount,
	}
}

func toWireAttachment(a *domain.Attachment) *wireAttachment {
	if a == nil {
		return nil
	}
	return &wireAttachment{URL: a.URL, Name: a.Name, Size: a.Size, Type: a.Type}
}
