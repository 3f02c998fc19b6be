package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"convsync/auth"
	"convsync/contract"
	"convsync/domain"
	"convsync/domain/event"
	"convsync/errors"
	"convsync/optimistic"
	"convsync/presence"
	"convsync/projection"
	"convsync/runtime/workers"
	"convsync/store"
)

type Config struct {
	GraceWindow      time.Duration
	FetchDelay       time.Duration
	RequestTimeout   time.Duration
	TypingMinDisplay time.Duration
	TypingMaxAge     time.Duration
	SweepInterval    time.Duration
	PageSize         int
	FlushStopTyping  bool
}

func (c Config) withDefaults() Config {
	if c.GraceWindow <= 0 {
		c.GraceWindow = 500 * time.Millisecond
	}
	// A negative FetchDelay disables the smoothing pause entirely.
	if c.FetchDelay == 0 {
		c.FetchDelay = 100 * time.Millisecond
	}
	if c.FetchDelay < 0 {
		c.FetchDelay = 0
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.TypingMinDisplay <= 0 {
		c.TypingMinDisplay = presence.DefaultMinDisplayTime
	}
	if c.TypingMaxAge <= 0 {
		c.TypingMaxAge = presence.DefaultMaxAge
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = presence.DefaultSweepInterval
	}
	if c.PageSize <= 0 {
		c.PageSize = 50
	}
	return c
}

// Session owns the synchronization state of one open conversation. All
// mutations flow through its operations; Close releases the feed
// subscription, the sweep worker and every pending retirement timer.
type Session struct {
	log     *slog.Logger
	cfg     Config
	self    auth.Identity
	gw      contract.Gateway
	feed    contract.Feed
	sup     contract.ISupervisor
	store   *store.ConversationStore
	buffer  *optimistic.Buffer
	tracker *presence.Tracker
	router  *Router

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	timers map[string]*time.Timer
	drafts map[string]domain.SendMessageCommand
	closed bool
}

func NewSession(
	log *slog.Logger,
	self auth.Identity,
	gw contract.Gateway,
	feed contract.Feed,
	sup contract.ISupervisor,
	conv domain.ConversationID,
	cfg Config,
) *Session {
	cfg = cfg.withDefaults()

	st := store.NewConversationStore(conv)
	buffer := optimistic.NewBuffer()
	tracker := presence.NewTracker(cfg.TypingMinDisplay, cfg.TypingMaxAge)
	router := NewRouter(log, self, gw, st, buffer, tracker, cfg.FetchDelay)

	return &Session{
		log:     log,
		cfg:     cfg,
		self:    self,
		gw:      gw,
		feed:    feed,
		sup:     sup,
		store:   st,
		buffer:  buffer,
		tracker: tracker,
		router:  router,
		ctx:     context.Background(),
		timers:  make(map[string]*time.Timer),
		drafts:  make(map[string]domain.SendMessageCommand),
	}
}

func (s *Session) Conversation() domain.ConversationID { return s.store.Conversation() }

// Router exposes the feed-event entry point, mainly for direct injection in
// tests and custom feed pumps.
func (s *Session) Router() *Router { return s.router }

// AddSinks registers consumers notified after each authoritative merge.
func (s *Session) AddSinks(sinks ...contract.EventSink) {
	s.router.AddSinks(sinks...)
}

// Start launches the supervised feed pump and presence sweep. It returns
// immediately; workers stop when ctx is canceled or Close is called.
func (s *Session) Start(ctx context.Context) {
	sessionCtx, cancel := context.WithCancel(ctx)
	s.ctx = sessionCtx
	s.cancel = cancel

	s.sup.Add(
		workers.NewFeedWorker(s.log, s.feed, s.router),
		workers.NewSweepWorker(s.log, s.tracker, s.cfg.SweepInterval),
	)
	go s.sup.Run(sessionCtx)
}

// Load fetches one authoritative page. Offset zero replaces the store;
// deeper offsets merge older history in.
func (s *Session) Load(ctx context.Context, offset int) error {
	if s.isClosed() {
		return errors.ErrSessionClosed
	}

	rctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	page, err := s.gw.FetchMessages(rctx, s.store.Conversation(), offset, s.cfg.PageSize)
	if err != nil {
		return fmt.Errorf("load conversation %s: %w", s.store.Conversation(), err)
	}
	s.store.Load(page, offset == 0)
	return nil
}

// Send applies the optimistic projection and resolves the gateway call in
// the background. It returns the temporary id immediately; delivery failure
// surfaces as StatusFailed on the entry, never as an automatic retry.
func (s *Session) Send(cmd domain.SendMessageCommand) (string, error) {
	if s.isClosed() {
		return "", errors.ErrSessionClosed
	}
	if err := domain.ValidateCommand(cmd); err != nil {
		return "", err
	}

	msg := domain.Message{
		ID:        domain.NewTempID(),
		Text:      cmd.Text,
		Sender:    s.selfSender(),
		Timestamp: time.Now().UTC(),
		ReplyTo:   cmd.ReplyTo,
		Status:    domain.StatusSending,
	}
	if cmd.Upload != nil {
		msg.Attachment = &domain.Attachment{
			Name: cmd.Upload.Name,
			Size: cmd.Upload.Size,
			Type: cmd.Upload.Type,
		}
	}

	s.buffer.Insert(msg)
	s.mu.Lock()
	s.drafts[msg.ID] = cmd
	s.mu.Unlock()

	go s.resolveSend(msg.ID, cmd)
	return msg.ID, nil
}

// resolveSend performs the optional upload and the send call, then flips
// the optimistic entry accordingly.
func (s *Session) resolveSend(tempID string, cmd domain.SendMessageCommand) {
	rctx, cancel := context.WithTimeout(s.ctx, s.cfg.RequestTimeout)
	defer cancel()

	req := contract.SendRequest{TempID: tempID, Text: cmd.Text}
	if cmd.ReplyTo != nil {
		req.ReplyToID = cmd.ReplyTo.ID
	}

	if cmd.Upload != nil {
		att, err := s.gw.UploadAttachment(rctx, *cmd.Upload)
		if err != nil {
			s.log.Warn("Attachment upload failed, aborting send", "temp", tempID, "error", err)
			_ = s.buffer.MarkFailed(tempID)
			return
		}
		req.Attachment = &att
	}

	confirmed, err := s.gw.SendMessage(rctx, s.store.Conversation(), req)
	if err != nil {
		s.log.Warn("Send failed", "temp", tempID, "error", err)
		_ = s.buffer.MarkFailed(tempID)
		return
	}

	// The send response already carries the authoritative copy. Merging it
	// now means the grace-window retirement can never leave a gap when the
	// realtime insert event is late; the claimed-id filter keeps the view
	// free of duplicates in the meantime.
	s.store.Upsert(confirmed)
	_ = s.buffer.MarkSent(tempID, confirmed.ID)
	s.scheduleRetirement(tempID)
}

// scheduleRetirement drops the sent entry after the grace window unless the
// realtime insert already retired it.
func (s *Session) scheduleRetirement(tempID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	s.timers[tempID] = time.AfterFunc(s.cfg.GraceWindow, func() {
		s.buffer.Retire(tempID)
		s.mu.Lock()
		delete(s.timers, tempID)
		delete(s.drafts, tempID)
		s.mu.Unlock()
	})
}

// Resend re-issues the gateway call for a failed entry, UI-driven.
func (s *Session) Resend(tempID string) error {
	if s.isClosed() {
		return errors.ErrSessionClosed
	}
	if err := s.buffer.MarkSending(tempID); err != nil {
		return err
	}

	s.mu.Lock()
	cmd, ok := s.drafts[tempID]
	s.mu.Unlock()
	if !ok {
		return errors.ErrUnknownPending
	}

	go s.resolveSend(tempID, cmd)
	return nil
}

// Discard drops a failed entry, UI-driven.
func (s *Session) Discard(tempID string) error {
	if !s.buffer.Retire(tempID) {
		return errors.ErrUnknownPending
	}
	s.mu.Lock()
	if t, ok := s.timers[tempID]; ok {
		t.Stop()
		delete(s.timers, tempID)
	}
	delete(s.drafts, tempID)
	s.mu.Unlock()
	return nil
}

// ToggleReaction flips the local aggregate estimate synchronously, then
// confirms with the gateway. On failure the flip is inverted back and the
// error returned; on success the delta stays until the authoritative
// reaction-changed event clears it.
func (s *Session) ToggleReaction(ctx context.Context, messageID, emoji string) error {
	if s.isClosed() {
		return errors.ErrSessionClosed
	}
	cmd := domain.ToggleReactionCommand{Conv: s.store.Conversation(), MessageID: messageID, Emoji: emoji}
	if err := domain.ValidateCommand(cmd); err != nil {
		return err
	}

	msg, ok := s.store.Get(messageID)
	if !ok {
		return errors.ErrUnknownMessage
	}

	reacted := false
	if r, found := msg.Reaction(emoji); found {
		reacted = r.HasReacted
	}
	if d, overridden := s.buffer.ReactionDelta(messageID, emoji); overridden {
		reacted = d.Added
	}
	adding := !reacted

	s.buffer.ApplyReactionDelta(messageID, domain.ReactionDelta{
		Emoji: emoji,
		Added: adding,
		User:  s.self.DisplayName,
	})

	rctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	var err error
	if adding {
		err = s.gw.AddReaction(rctx, messageID, emoji)
	} else {
		err = s.gw.RemoveReaction(rctx, messageID, emoji)
	}
	if err != nil {
		s.buffer.ClearReactionDelta(messageID, emoji)
		return fmt.Errorf("toggle reaction %q on %s: %w", emoji, messageID, err)
	}
	return nil
}

// Edit replaces a message's text through the gateway and merges the result.
func (s *Session) Edit(ctx context.Context, messageID, newText string) error {
	if s.isClosed() {
		return errors.ErrSessionClosed
	}
	cmd := domain.EditMessageCommand{Conv: s.store.Conversation(), MessageID: messageID, Text: newText}
	if err := domain.ValidateCommand(cmd); err != nil {
		return err
	}

	rctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	updated, err := s.gw.EditMessage(rctx, messageID, newText)
	if err != nil {
		return fmt.Errorf("edit message %s: %w", messageID, err)
	}
	s.store.Upsert(updated)
	return nil
}

// Delete removes a message through the gateway. The local removal is eager;
// the authoritative delete event applies idempotently afterwards.
func (s *Session) Delete(ctx context.Context, messageID string) error {
	if s.isClosed() {
		return errors.ErrSessionClosed
	}

	rctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	if err := s.gw.DeleteMessage(rctx, messageID); err != nil {
		return fmt.Errorf("delete message %s: %w", messageID, err)
	}
	s.store.Remove(messageID)
	s.buffer.Remove(messageID)
	s.buffer.ClearReactionDeltas(messageID)
	return nil
}

// MarkRead reports the conversation as read and syncs the unread counter.
func (s *Session) MarkRead(ctx context.Context) error {
	if s.isClosed() {
		return errors.ErrSessionClosed
	}

	rctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	unread, err := s.gw.MarkRead(rctx, s.store.Conversation())
	if err != nil {
		return fmt.Errorf("mark read %s: %w", s.store.Conversation(), err)
	}
	s.store.SetUnread(unread)
	return nil
}

// SetTyping publishes the local user's typing state to peers. The local
// tracker never holds self entries.
func (s *Session) SetTyping(ctx context.Context, isTyping bool) error {
	if s.isClosed() {
		return errors.ErrSessionClosed
	}
	return s.feed.Broadcast(ctx, event.TypingBroadcast{
		Conv:     s.store.Conversation(),
		UserID:   s.self.UserID,
		UserName: s.self.DisplayName,
		IsTyping: isTyping,
	})
}

// View produces the merged, de-duplicated, sorted sequence for the UI.
// It is a pure projection of the current state.
func (s *Session) View() []domain.Message {
	return projection.View(
		s.store.Snapshot(),
		s.buffer.Pending(),
		s.buffer.ClaimedServerIDs(),
		s.buffer.Deltas(),
	)
}

func (s *Session) TypingUsers() []domain.TypingUser { return s.tracker.Typing() }

func (s *Session) Unread() int { return s.store.Unread() }

func (s *Session) HasMore() bool { return s.store.HasMore() }

// Close tears the session down deterministically: it flushes a final
// "stopped typing" signal when configured, stops retirement timers, ends
// the feed subscription and cancels the supervised workers. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	timers := s.timers
	s.timers = make(map[string]*time.Timer)
	s.drafts = make(map[string]domain.SendMessageCommand)
	s.mu.Unlock()

	if s.cfg.FlushStopTyping {
		flushCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		if err := s.feed.Broadcast(flushCtx, event.TypingBroadcast{
			Conv:   s.store.Conversation(),
			UserID: s.self.UserID,
		}); err != nil {
			s.log.Debug("Stopped-typing flush failed", "error", err)
		}
		cancel()
	}

	for _, t := range timers {
		t.Stop()
	}

	err := s.feed.Close()
	if s.cancel != nil {
		s.cancel()
	}
	s.sup.Stop()
	return err
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) selfSender() domain.Sender {
	return domain.Sender{
		ID:          s.self.UserID,
		DisplayName: s.self.DisplayName,
		Email:       s.self.Email,
		Role:        s.self.Role,
		IsSelf:      true,
	}
}
