// Package search maintains a local full-text index over merged messages,
// powering in-conversation history search without a server round trip.
package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/blugelabs/bluge"

	"convsync/domain"
)

type MessageIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewMessageIndex(writer *bluge.Writer, log *slog.Logger) *MessageIndex {
	return &MessageIndex{writer: writer, log: log}
}

// Hit is one search result, newest-score first.
type Hit struct {
	MessageID string
	Author    string
	Text      string
	Score     float64
}

// Index upserts one message document. Keyed by message id, so re-merges
// after edits replace the previous version.
func (x *MessageIndex) Index(conv domain.ConversationID, m domain.Message) error {
	doc := bluge.NewDocument(m.ID).
		AddField(bluge.NewKeywordField("conversation", string(conv)).StoreValue()).
		AddField(bluge.NewTextField("text", m.Text).StoreValue()).
		AddField(bluge.NewKeywordField("author", m.Sender.DisplayName).StoreValue()).
		AddField(bluge.NewDateTimeField("at", m.Timestamp))

	if err := x.writer.Update(doc.ID(), doc); err != nil {
		return fmt.Errorf("index message %s: %w", m.ID, err)
	}
	return nil
}

// Delete removes a message document after an authoritative deletion.
func (x *MessageIndex) Delete(messageID string) error {
	doc := bluge.NewDocument(messageID)
	if err := x.writer.Delete(doc.ID()); err != nil {
		return fmt.Errorf("unindex message %s: %w", messageID, err)
	}
	return nil
}

// Search matches terms against message text within one conversation.
func (x *MessageIndex) Search(ctx context.Context, conv domain.ConversationID, terms string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 10
	}

	reader, err := x.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", terms, err)
	}
	defer func() {
		if cerr := reader.Close(); cerr != nil {
			x.log.Warn("Failed to close index reader", "error", cerr)
		}
	}()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(terms).SetField("text")).
		AddMust(bluge.NewTermQuery(string(conv)).SetField("conversation"))

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, query))
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", terms, err)
	}

	var hits []Hit
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, fmt.Errorf("search %q: %w", terms, err)
		}
		if match == nil {
			break
		}

		hit := Hit{Score: match.Score}
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.MessageID = string(value)
			case "author":
				hit.Author = string(value)
			case "text":
				hit.Text = string(value)
			}
			return true
		})
		if err != nil {
			return nil, fmt.Errorf("search %q: %w", terms, err)
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
