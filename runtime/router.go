// Package runtime owns a conversation session: it wires the store, the
// optimistic buffer and the presence tracker to the gateway and the
// realtime feed, and drives them through supervised workers.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"convsync/auth"
	"convsync/contract"
	"convsync/domain/event"
	"convsync/optimistic"
	"convsync/presence"
	"convsync/store"
)

// Router translates inbound feed events into store, buffer and tracker
// operations. Events are applied in arrival order; reconciliation fetch
// failures are logged and swallowed, leaving the store at its
// last-known-good state.
type Router struct {
	log        *slog.Logger
	self       auth.Identity
	gw         contract.Gateway
	store      *store.ConversationStore
	buffer     *optimistic.Buffer
	tracker    *presence.Tracker
	sinks      []contract.EventSink
	fetchDelay time.Duration
}

func NewRouter(
	log *slog.Logger,
	self auth.Identity,
	gw contract.Gateway,
	st *store.ConversationStore,
	buffer *optimistic.Buffer,
	tracker *presence.Tracker,
	fetchDelay time.Duration,
) *Router {
	return &Router{
		log:        log,
		self:       self,
		gw:         gw,
		store:      st,
		buffer:     buffer,
		tracker:    tracker,
		fetchDelay: fetchDelay,
	}
}

// AddSinks registers consumers notified after each authoritative merge.
func (r *Router) AddSinks(sinks ...contract.EventSink) {
	r.sinks = append(r.sinks, sinks...)
}

func (r *Router) Route(ctx context.Context, e event.DomainEvent) {
	switch evt := e.(type) {
	case event.MessageInserted:
		r.onInserted(ctx, evt)
	case event.MessageUpdated:
		r.onUpdated(ctx, evt)
	case event.MessageDeleted:
		r.onDeleted(ctx, evt)
	case event.ReactionChanged:
		r.onReactionChanged(ctx, evt)
	case event.TypingBroadcast:
		r.onTyping(evt)
	case event.ReactionBroadcast:
		r.onReactionBroadcast(ctx, evt)
	default:
		r.log.Debug(fmt.Sprintf("Unhandled feed event: %T", e))
	}
}

// onInserted re-fetches the full message (the feed payload is a partial
// reference), merges it and retires the matching optimistic entry. The
// short delay before the fetch smooths the optimistic-to-authoritative
// handoff.
func (r *Router) onInserted(ctx context.Context, evt event.MessageInserted) {
	if evt.Conv != r.store.Conversation() {
		return
	}
	r.pause(ctx)

	msg, err := r.gw.FetchMessageByID(ctx, evt.MessageID)
	if err != nil {
		r.log.Warn("Reconciliation fetch failed after insert", "message", evt.MessageID, "error", err)
		return
	}
	r.store.Upsert(msg)
	r.buffer.RetireConfirmed(msg.ID)
	r.fanout(ctx, event.MessageMerged{Conv: evt.Conv, Message: msg})
}

func (r *Router) onUpdated(ctx context.Context, evt event.MessageUpdated) {
	if evt.Conv != r.store.Conversation() {
		return
	}

	msg, err := r.gw.FetchMessageByID(ctx, evt.MessageID)
	if err != nil {
		r.log.Warn("Reconciliation fetch failed after update", "message", evt.MessageID, "error", err)
		return
	}
	r.store.Upsert(msg)
	r.fanout(ctx, event.MessageMerged{Conv: evt.Conv, Message: msg})
}

func (r *Router) onDeleted(ctx context.Context, evt event.MessageDeleted) {
	if evt.Conv != r.store.Conversation() {
		return
	}

	removed, ok := r.store.Remove(evt.MessageID)
	r.buffer.Remove(evt.MessageID)
	r.buffer.ClearReactionDeltas(evt.MessageID)
	if ok {
		r.fanout(ctx, event.MessageRemoved{Conv: evt.Conv, Message: removed})
	}
}

// onReactionChanged clears the local override first, then replaces the
// whole message so the authoritative aggregate wins without a
// double-counted flicker. The reaction feed is not conversation-scoped
// upstream, so unknown messages are ignored.
func (r *Router) onReactionChanged(ctx context.Context, evt event.ReactionChanged) {
	if _, known := r.store.Get(evt.MessageID); !known {
		return
	}
	r.buffer.ClearReactionDelta(evt.MessageID, evt.Emoji)

	msg, err := r.gw.FetchMessageByID(ctx, evt.MessageID)
	if err != nil {
		r.log.Warn("Reconciliation fetch failed after reaction change", "message", evt.MessageID, "error", err)
		return
	}
	r.store.Upsert(msg)
	r.fanout(ctx, event.MessageMerged{Conv: r.store.Conversation(), Message: msg})
}

// onTyping routes a peer's typing signal to the tracker. Self signals are
// suppressed at this ingestion boundary.
func (r *Router) onTyping(evt event.TypingBroadcast) {
	if evt.Conv != r.store.Conversation() || r.self.IsSelf(evt.UserID) {
		return
	}
	if evt.IsTyping {
		r.tracker.SetTyping(evt.UserID, evt.UserName)
	} else {
		r.tracker.Clear(evt.UserID, presence.ClearRespectFloor)
	}
}

// onReactionBroadcast exists purely to shave latency for peers; the durable
// source of truth is the fetch.
func (r *Router) onReactionBroadcast(ctx context.Context, evt event.ReactionBroadcast) {
	if evt.Conv != r.store.Conversation() || r.self.IsSelf(evt.UserID) {
		return
	}

	msg, err := r.gw.FetchMessageByID(ctx, evt.MessageID)
	if err != nil {
		r.log.Debug("Broadcast-driven fetch failed", "message", evt.MessageID, "error", err)
		return
	}
	r.store.Upsert(msg)
	r.fanout(ctx, event.MessageMerged{Conv: evt.Conv, Message: msg})
}

// fanout notifies local sinks. Best effort: a failing sink never affects
// the merge that already happened.
func (r *Router) fanout(ctx context.Context, e event.DomainEvent) {
	for _, sink := range r.sinks {
		if err := sink.Consume(ctx, e); err != nil {
			r.log.Warn("Sink failed to consume event", "event", fmt.Sprintf("%T", e), "error", err)
		}
	}
}

func (r *Router) pause(ctx context.Context) {
	if r.fetchDelay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(r.fetchDelay):
	}
}

var _ contract.Router = (*Router)(nil)
