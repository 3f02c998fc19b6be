//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"convsync/domain"
	"convsync/domain/event"
)

// SendRequest is the gateway payload for a message send. TempID travels with
// the request so the server can echo it back on the realtime feed, letting
// the buffer retire the matching optimistic entry explicitly instead of
// relying on timing alone.
type SendRequest struct {
	TempID     string
	Text       string
	ReplyToID  string
	Attachment *domain.Attachment
}

// Gateway is the request/response API of the platform backend.
// Every call is bounded by the context deadline set by the session.
type Gateway interface {
	FetchMessages(ctx context.Context, conv domain.ConversationID, offset, limit int) (domain.Page, error)
	SendMessage(ctx context.Context, conv domain.ConversationID, req SendRequest) (domain.Message, error)
	EditMessage(ctx context.Context, messageID, newText string) (domain.Message, error)
	DeleteMessage(ctx context.Context, messageID string) error
	AddReaction(ctx context.Context, messageID, emoji string) error
	RemoveReaction(ctx context.Context, messageID, emoji string) error
	MarkRead(ctx context.Context, conv domain.ConversationID) (int, error)
	FetchMessageByID(ctx context.Context, messageID string) (domain.Message, error)
	UploadAttachment(ctx context.Context, upload domain.FileUpload) (domain.Attachment, error)
}

// Feed is a push subscription scoped to one conversation. Events() is closed
// when the subscription ends. Broadcast publishes an ad-hoc signal (typing,
// reaction) to peers on the same channel.
type Feed interface {
	Events() <-chan event.DomainEvent
	Broadcast(ctx context.Context, e event.DomainEvent) error
	Close() error
}

// Router applies one inbound feed event to the local components.
type Router interface {
	Route(ctx context.Context, e event.DomainEvent)
}

// EventSink consumes merge notifications after the router applied them.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// Worker doesn't protect itself; the supervisor does.
type Worker interface {
	Run(ctx context.Context) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// GetWorkerName uses reflection to retrieve the type name of the worker,
// for logging and supervision purposes.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
