package workers

import (
	"context"
	"log/slog"
	"time"

	"convsync/contract"
	"convsync/presence"
)

var _ contract.Worker = (*SweepWorker)(nil)

// SweepWorker evicts stale typing entries at a fixed interval. This is the
// liveness half of the presence policy: a peer that disconnected without a
// "stopped typing" signal is removed once it exceeds the age ceiling.
type SweepWorker struct {
	log      *slog.Logger
	tracker  *presence.Tracker
	interval time.Duration
}

func NewSweepWorker(log *slog.Logger, tracker *presence.Tracker, interval time.Duration) *SweepWorker {
	if interval <= 0 {
		interval = presence.DefaultSweepInterval
	}
	return &SweepWorker{log: log, tracker: tracker, interval: interval}
}

func (w *SweepWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping presence sweep")
			return ctx.Err()
		case <-ticker.C:
			if evicted := w.tracker.Sweep(); evicted > 0 {
				w.log.Debug("Evicted stale typing entries", "count", evicted)
			}
		}
	}
}
