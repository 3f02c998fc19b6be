// Package sink adapts local consumers (history cache, search index) to the
// router's merge notifications.
package sink

import (
	"context"
	"fmt"
	"log/slog"

	"convsync/domain/event"
	"convsync/repositories"
)

type HistorySink struct {
	repository repositories.IHistoryRepository
	log        *slog.Logger
}

func NewHistorySink(repository repositories.IHistoryRepository, log *slog.Logger) HistorySink {
	return HistorySink{repository: repository, log: log}
}

func (s HistorySink) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.MessageMerged:
		return s.repository.Store(repositories.FromMessage(evt.Conv, evt.Message))
	case event.MessageRemoved:
		return s.repository.Delete(repositories.FromMessage(evt.Conv, evt.Message))
	default:
		s.log.Debug(fmt.Sprintf("Not implemented event : %v", evt))
		return nil
	}
}
