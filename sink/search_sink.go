package sink

import (
	"context"

	"convsync/domain/event"
	"convsync/search"
)

type SearchSink struct {
	index *search.MessageIndex
}

func NewSearchSink(index *search.MessageIndex) SearchSink {
	return SearchSink{index: index}
}

func (s SearchSink) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.MessageMerged:
		return s.index.Index(evt.Conv, evt.Message)
	case event.MessageRemoved:
		return s.index.Delete(evt.Message.ID)
	}
	return nil
}
