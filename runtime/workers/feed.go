package workers

import (
	"context"
	"log/slog"

	"convsync/contract"
)

// Ensure *FeedWorker implements the contract.Worker interface at compile time.
var _ contract.Worker = (*FeedWorker)(nil)

// FeedWorker pumps the realtime subscription into the router, one event at
// a time. Sequential consumption preserves arrival order per message id.
type FeedWorker struct {
	log    *slog.Logger
	feed   contract.Feed
	router contract.Router
}

func NewFeedWorker(log *slog.Logger, feed contract.Feed, router contract.Router) *FeedWorker {
	return &FeedWorker{log: log, feed: feed, router: router}
}

func (w *FeedWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping feed worker")
			return ctx.Err()
		case evt, ok := <-w.feed.Events():
			if !ok {
				w.log.Debug("Feed channel closed")
				return nil
			}
			w.router.Route(ctx, evt)
		}
	}
}
