package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"convsync/contract"
	"convsync/domain"
	"convsync/domain/event"
	"convsync/errors"
)

// Frame types of the realtime websocket protocol.
const (
	frameSubscribe         = "subscribe"
	frameMessageInserted   = "message.insert"
	frameMessageUpdated    = "message.update"
	frameMessageDeleted    = "message.delete"
	frameReactionChanged   = "reaction.changed"
	frameBroadcastTyping   = "broadcast.typing"
	frameBroadcastReaction = "broadcast.reaction"
)

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type messageRefPayload struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
}

type reactionChangedPayload struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	Emoji          string `json:"emoji"`
}

type typingPayload struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	UserName       string `json:"user_name"`
	IsTyping       bool   `json:"is_typing"`
}

type reactionBroadcastPayload struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	Emoji          string `json:"emoji"`
	UserID         string `json:"user_id"`
	Action         string `json:"action"`
}

// WebsocketFeed subscribes to one conversation's change notifications.
// The reader goroutine decodes frames into domain events until the
// connection drops or Close is called, then closes Events().
type WebsocketFeed struct {
	log    *slog.Logger
	conn   *websocket.Conn
	conv   domain.ConversationID
	events chan event.DomainEvent

	writeMu sync.Mutex
	once    sync.Once
	closed  chan struct{}
}

var _ contract.Feed = (*WebsocketFeed)(nil)

// DialFeed connects, subscribes to the conversation and starts reading.
func DialFeed(ctx context.Context, feedURL, token string, conv domain.ConversationID, log *slog.Logger) (*WebsocketFeed, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, feedURL, header)
	if err != nil {
		return nil, fmt.Errorf("dial feed %s: %w", feedURL, err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	f := &WebsocketFeed{
		log:    log,
		conn:   conn,
		conv:   conv,
		events: make(chan event.DomainEvent, 256),
		closed: make(chan struct{}),
	}

	if err = f.writeFrame(frameSubscribe, messageRefPayload{ConversationID: string(conv)}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("subscribe conversation %s: %w", conv, err)
	}

	go f.readLoop()
	return f, nil
}

func (f *WebsocketFeed) Events() <-chan event.DomainEvent {
	return f.events
}

// Broadcast publishes an ad-hoc signal to peers on the same channel.
func (f *WebsocketFeed) Broadcast(ctx context.Context, e event.DomainEvent) error {
	select {
	case <-f.closed:
		return errors.ErrFeedClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	switch evt := e.(type) {
	case event.TypingBroadcast:
		return f.writeFrame(frameBroadcastTyping, typingPayload{
			ConversationID: string(evt.Conv),
			UserID:         evt.UserID,
			UserName:       evt.UserName,
			IsTyping:       evt.IsTyping,
		})
	case event.ReactionBroadcast:
		return f.writeFrame(frameBroadcastReaction, reactionBroadcastPayload{
			ConversationID: string(evt.Conv),
			MessageID:      evt.MessageID,
			Emoji:          evt.Emoji,
			UserID:         evt.UserID,
			Action:         evt.Action,
		})
	default:
		return fmt.Errorf("broadcast: unsupported event %T", e)
	}
}

func (f *WebsocketFeed) Close() error {
	var err error
	f.once.Do(func() {
		close(f.closed)
		err = f.conn.Close()
	})
	return err
}

func (f *WebsocketFeed) readLoop() {
	defer close(f.events)

	for {
		var fr frame
		if err := f.conn.ReadJSON(&fr); err != nil {
			select {
			case <-f.closed:
			default:
				f.log.Warn("Feed read failed, subscription ends", "error", err)
			}
			return
		}

		evt, err := f.decode(fr)
		if err != nil {
			f.log.Debug("Dropping undecodable frame", "type", fr.Type, "error", err)
			continue
		}
		if evt == nil {
			continue
		}

		select {
		case f.events <- evt:
		case <-f.closed:
			return
		}
	}
}

func (f *WebsocketFeed) decode(fr frame) (event.DomainEvent, error) {
	switch fr.Type {
	case frameMessageInserted:
		p, err := decodePayload[messageRefPayload](fr.Payload)
		if err != nil {
			return nil, err
		}
		return event.MessageInserted{Conv: domain.ConversationID(p.ConversationID), MessageID: p.MessageID}, nil

	case frameMessageUpdated:
		p, err := decodePayload[messageRefPayload](fr.Payload)
		if err != nil {
			return nil, err
		}
		return event.MessageUpdated{Conv: domain.ConversationID(p.ConversationID), MessageID: p.MessageID}, nil

	case frameMessageDeleted:
		p, err := decodePayload[messageRefPayload](fr.Payload)
		if err != nil {
			return nil, err
		}
		return event.MessageDeleted{Conv: domain.ConversationID(p.ConversationID), MessageID: p.MessageID}, nil

	case frameReactionChanged:
		p, err := decodePayload[reactionChangedPayload](fr.Payload)
		if err != nil {
			return nil, err
		}
		return event.ReactionChanged{
			Conv:      domain.ConversationID(p.ConversationID),
			MessageID: p.MessageID,
			Emoji:     p.Emoji,
		}, nil

	case frameBroadcastTyping:
		p, err := decodePayload[typingPayload](fr.Payload)
		if err != nil {
			return nil, err
		}
		return event.TypingBroadcast{
			Conv:     domain.ConversationID(p.ConversationID),
			UserID:   p.UserID,
			UserName: p.UserName,
			IsTyping: p.IsTyping,
		}, nil

	case frameBroadcastReaction:
		p, err := decodePayload[reactionBroadcastPayload](fr.Payload)
		if err != nil {
			return nil, err
		}
		return event.ReactionBroadcast{
			Conv:      domain.ConversationID(p.ConversationID),
			MessageID: p.MessageID,
			Emoji:     p.Emoji,
			UserID:    p.UserID,
			Action:    p.Action,
		}, nil
	}
	return nil, nil
}

func decodePayload[T any](raw json.RawMessage) (T, error) {
	var p T
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("%w: %s", errors.ErrInvalidPayload, err)
	}
	return p, nil
}

func (f *WebsocketFeed) writeFrame(frameType string, payload any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	return f.conn.WriteJSON(frame{Type: frameType, Payload: encoded})
}
