//go:generate go run go.uber.org/mock/mockgen -source=history.go -destination=../mocks/mock_history_repository.go -package=mocks
// Package repositories persists a best-effort local cache of authoritative
// messages, so a reopened conversation can render instantly before the
// first gateway page lands. It is a cache, not a durable store.
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"convsync/domain"
)

type IHistoryRepository interface {
	Store(message CachedMessage) error
	Recent(conv domain.ConversationID, cursor *string) ([]CachedMessage, *string, error)
	Delete(message CachedMessage) error
}

// CachedMessage is the flattened disk shape of an authoritative message.
type CachedMessage struct {
	ID           string    `json:"id"`
	Conversation string    `json:"conversation"`
	AuthorID     string    `json:"author_id"`
	Author       string    `json:"author"`
	Text         string    `json:"text"`
	At           time.Time `json:"at"`
	Edited       bool      `json:"edited"`
}

type HistoryRepository struct {
	db    *badger.DB
	log   *slog.Logger
	limit *int
}

func NewHistoryRepository(db *badger.DB, log *slog.Logger, limit *int) HistoryRepository {
	return HistoryRepository{db: db, log: log, limit: limit}
}

// key formats as "msg:{conversation}:{timestamp_padded}:{id}" to:
//  1. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order).
//  2. Prevent data loss by using the message id as a collision
//     disconnector if two messages land on the same nanosecond.
func key(m CachedMessage) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", m.Conversation, m.At.UnixNano(), m.ID))
}

func (r HistoryRepository) Store(message CachedMessage) error {
	bytes, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(message), bytes)
	})
}

func (r HistoryRepository) Delete(message CachedMessage) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(message))
	})
}

// Recent retrieves cached messages for a conversation using a reverse
// prefix scan, newest first, stopping at the configured limit. The
// returned cursor resumes the scan on the next call.
func (r HistoryRepository) Recent(conv domain.ConversationID, cursor *string) ([]CachedMessage, *string, error) {
	var rawMessages [][]byte
	var lastKey string

	err := r.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("msg:%s:", conv)
		prefix := []byte(prefixStr)
		prefixLen := len(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past the newest possible key for this conversation,
			// then walk backwards.
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)

		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if r.limit != nil && len(rawMessages) == *r.limit {
				r.log.Debug(fmt.Sprintf("Maximum of %d cached messages reached", *r.limit))
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[prefixLen:])
			err := item.Value(func(value []byte) error {
				cp := append([]byte(nil), value...)
				rawMessages = append(rawMessages, cp)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	messages := make([]CachedMessage, 0, len(rawMessages))
	for _, raw := range rawMessages {
		var m CachedMessage
		if err = json.Unmarshal(raw, &m); err != nil {
			return nil, nil, err
		}
		messages = append(messages, m)
	}
	return messages, &lastKey, nil
}

// FromMessage flattens an authoritative message for the cache.
func FromMessage(conv domain.ConversationID, m domain.Message) CachedMessage {
	return CachedMessage{
		ID:           m.ID,
		Conversation: string(conv),
		AuthorID:     m.Sender.ID,
		Author:       m.Sender.DisplayName,
		Text:         m.Text,
		At:           m.Timestamp,
		Edited:       m.IsEdited,
	}
}
