package runtime_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"convsync/auth"
	"convsync/domain"
	"convsync/domain/event"
	"convsync/errors"
	"convsync/mocks"
	"convsync/runtime"
	"convsync/runtime/workers"
)

// stubFeed records broadcasts and lets tests push inbound events.
type stubFeed struct {
	mu         sync.Mutex
	events     chan event.DomainEvent
	broadcasts []event.DomainEvent
	closed     bool
}

func newStubFeed() *stubFeed {
	return &stubFeed{events: make(chan event.DomainEvent, 16)}
}

func (f *stubFeed) Events() <-chan event.DomainEvent { return f.events }

func (f *stubFeed) Broadcast(_ context.Context, e event.DomainEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts = append(f.broadcasts, e)
	return nil
}

func (f *stubFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.events)
	}
	return nil
}

func (f *stubFeed) sent() []event.DomainEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]event.DomainEvent{}, f.broadcasts...)
}

type sessionFixture struct {
	gw      *mocks.MockGateway
	feed    *stubFeed
	session *runtime.Session
}

func newSessionFixture(t *testing.T, cfg runtime.Config) sessionFixture {
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(ctrl)
	// Silencing logs for clean test output
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	self := auth.Identity{UserID: "me", DisplayName: "Me"}
	feed := newStubFeed()
	sup := workers.NewSupervisor(logger, 50*time.Millisecond)

	session := runtime.NewSession(logger, self, gw, feed, sup, conv, cfg)
	t.Cleanup(func() { _ = session.Close() })
	return sessionFixture{gw: gw, feed: feed, session: session}
}

func Test_Send_Shows_Exactly_One_Entry_Through_Lifecycle(t *testing.T) {
	req := require.New(t)
	f := newSessionFixture(t, runtime.Config{GraceWindow: 50 * time.Millisecond})

	confirmed := domain.Message{
		ID:        "srv-1",
		Text:      "hello",
		Sender:    domain.Sender{ID: "me", DisplayName: "Me", IsSelf: true},
		Timestamp: time.Now().UTC(),
	}
	f.gw.EXPECT().SendMessage(gomock.Any(), conv, gomock.Any()).Return(confirmed, nil)

	tempID, err := f.session.Send(domain.SendMessageCommand{Conv: conv, Text: "hello"})
	req.NoError(err)
	req.True(domain.IsTempID(tempID))

	// Optimistic entry is visible immediately
	view := f.session.View()
	req.Len(view, 1)
	req.Equal(tempID, view[0].ID)
	req.Equal(domain.StatusSending, view[0].Status)

	// Never two entries for one logical message, before or after confirmation
	req.Eventually(func() bool {
		view := f.session.View()
		return len(view) == 1 && view[0].ID == "srv-1"
	}, 2*time.Second, 10*time.Millisecond)
	req.Equal(domain.StatusNone, f.session.View()[0].Status)
}

func Test_Send_Rejects_Blank_Text(t *testing.T) {
	req := require.New(t)
	f := newSessionFixture(t, runtime.Config{})

	_, err := f.session.Send(domain.SendMessageCommand{Conv: conv, Text: ""})
	req.Error(err)
	req.Empty(f.session.View())
}

func Test_Send_Failure_Then_Resend(t *testing.T) {
	req := require.New(t)
	f := newSessionFixture(t, runtime.Config{GraceWindow: 50 * time.Millisecond})

	confirmed := domain.Message{ID: "srv-1", Text: "hello", Timestamp: time.Now().UTC()}
	gomock.InOrder(
		f.gw.EXPECT().SendMessage(gomock.Any(), conv, gomock.Any()).Return(domain.Message{}, io.ErrUnexpectedEOF),
		f.gw.EXPECT().SendMessage(gomock.Any(), conv, gomock.Any()).Return(confirmed, nil),
	)

	tempID, err := f.session.Send(domain.SendMessageCommand{Conv: conv, Text: "hello"})
	req.NoError(err)

	// Failure keeps the entry, no automatic retry
	req.Eventually(func() bool {
		view := f.session.View()
		return len(view) == 1 && view[0].Status == domain.StatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	req.NoError(f.session.Resend(tempID))
	req.Eventually(func() bool {
		view := f.session.View()
		return len(view) == 1 && view[0].ID == "srv-1"
	}, 2*time.Second, 10*time.Millisecond)
}

func Test_Discard_Drops_Failed_Entry(t *testing.T) {
	req := require.New(t)
	f := newSessionFixture(t, runtime.Config{})

	f.gw.EXPECT().SendMessage(gomock.Any(), conv, gomock.Any()).Return(domain.Message{}, io.ErrUnexpectedEOF)

	tempID, err := f.session.Send(domain.SendMessageCommand{Conv: conv, Text: "hello"})
	req.NoError(err)
	req.Eventually(func() bool {
		view := f.session.View()
		return len(view) == 1 && view[0].Status == domain.StatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	req.NoError(f.session.Discard(tempID))
	req.Empty(f.session.View())
	req.ErrorIs(f.session.Discard(tempID), errors.ErrUnknownPending)
}

func Test_Load_Fills_Store_And_Flags(t *testing.T) {
	req := require.New(t)
	f := newSessionFixture(t, runtime.Config{})
	ctx := context.Background()

	page := domain.Page{
		Messages: []domain.Message{
			{ID: "srv-1", Text: "first", Timestamp: time.Now().UTC().Add(-time.Minute)},
			{ID: "srv-2", Text: "second", Timestamp: time.Now().UTC()},
		},
		HasMore:     true,
		UnreadCount: 4,
	}
	f.gw.EXPECT().FetchMessages(gomock.Any(), conv, 0, 50).Return(page, nil)

	req.NoError(f.session.Load(ctx, 0))
	req.Len(f.session.View(), 2)
	req.True(f.session.HasMore())
	req.Equal(4, f.session.Unread())
}

func Test_ToggleReaction_Optimistic_Then_Confirmed(t *testing.T) {
	req := require.New(t)
	f := newSessionFixture(t, runtime.Config{})
	ctx := context.Background()

	page := domain.Page{Messages: []domain.Message{{
		ID:        "srv-1",
		Text:      "hello",
		Timestamp: time.Now().UTC(),
		Reactions: []domain.Reaction{{Emoji: "👍", Count: 2, Users: []string{"bob", "clara"}}},
	}}}
	f.gw.EXPECT().FetchMessages(gomock.Any(), conv, 0, 50).Return(page, nil)
	f.gw.EXPECT().AddReaction(gomock.Any(), "srv-1", "👍").Return(nil)

	req.NoError(f.session.Load(ctx, 0))
	req.NoError(f.session.ToggleReaction(ctx, "srv-1", "👍"))

	// Count moves from 2 to 3 synchronously
	view := f.session.View()
	req.Equal(3, view[0].Reactions[0].Count)
	req.True(view[0].Reactions[0].HasReacted)
}

func Test_ToggleReaction_Rolls_Back_On_Failure(t *testing.T) {
	req := require.New(t)
	f := newSessionFixture(t, runtime.Config{})
	ctx := context.Background()

	page := domain.Page{Messages: []domain.Message{{
		ID:        "srv-1",
		Text:      "hello",
		Timestamp: time.Now().UTC(),
		Reactions: []domain.Reaction{{Emoji: "👍", Count: 2, Users: []string{"bob", "clara"}}},
	}}}
	f.gw.EXPECT().FetchMessages(gomock.Any(), conv, 0, 50).Return(page, nil)
	f.gw.EXPECT().AddReaction(gomock.Any(), "srv-1", "👍").Return(io.ErrUnexpectedEOF)

	req.NoError(f.session.Load(ctx, 0))
	req.Error(f.session.ToggleReaction(ctx, "srv-1", "👍"))

	view := f.session.View()
	req.Equal(2, view[0].Reactions[0].Count)
	req.False(view[0].Reactions[0].HasReacted)
}

func Test_ToggleReaction_Unknown_Message(t *testing.T) {
	req := require.New(t)
	f := newSessionFixture(t, runtime.Config{})

	req.ErrorIs(f.session.ToggleReaction(context.Background(), "ghost", "👍"), errors.ErrUnknownMessage)
}

func Test_Delete_Is_Eager(t *testing.T) {
	req := require.New(t)
	f := newSessionFixture(t, runtime.Config{})
	ctx := context.Background()

	page := domain.Page{Messages: []domain.Message{{ID: "srv-1", Text: "hello", Timestamp: time.Now().UTC()}}}
	f.gw.EXPECT().FetchMessages(gomock.Any(), conv, 0, 50).Return(page, nil)
	f.gw.EXPECT().DeleteMessage(gomock.Any(), "srv-1").Return(nil)

	req.NoError(f.session.Load(ctx, 0))
	req.NoError(f.session.Delete(ctx, "srv-1"))
	req.Empty(f.session.View())
}

func Test_MarkRead_Syncs_Unread(t *testing.T) {
	req := require.New(t)
	f := newSessionFixture(t, runtime.Config{})

	f.gw.EXPECT().MarkRead(gomock.Any(), conv).Return(0, nil)
	req.NoError(f.session.MarkRead(context.Background()))
	req.Equal(0, f.session.Unread())
}

func Test_SetTyping_Broadcasts_Self_State(t *testing.T) {
	req := require.New(t)
	f := newSessionFixture(t, runtime.Config{})

	req.NoError(f.session.SetTyping(context.Background(), true))
	sent := f.feed.sent()
	req.Len(sent, 1)
	typing, ok := sent[0].(event.TypingBroadcast)
	req.True(ok)
	req.Equal("me", typing.UserID)
	req.True(typing.IsTyping)

	// The local tracker never holds self entries
	req.Empty(f.session.TypingUsers())
}

func Test_Close_Is_Idempotent_And_Fences_Operations(t *testing.T) {
	req := require.New(t)
	f := newSessionFixture(t, runtime.Config{})

	req.NoError(f.session.Close())
	req.NoError(f.session.Close())

	_, err := f.session.Send(domain.SendMessageCommand{Conv: conv, Text: "hello"})
	req.ErrorIs(err, errors.ErrSessionClosed)
	req.ErrorIs(f.session.Load(context.Background(), 0), errors.ErrSessionClosed)
	req.ErrorIs(f.session.MarkRead(context.Background()), errors.ErrSessionClosed)
}

func Test_Feed_Worker_Routes_Inbound_Events(t *testing.T) {
	req := require.New(t)
	f := newSessionFixture(t, runtime.Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	confirmed := domain.Message{ID: "srv-1", Text: "from peer", Timestamp: time.Now().UTC()}
	f.gw.EXPECT().FetchMessageByID(gomock.Any(), "srv-1").Return(confirmed, nil)

	f.session.Start(ctx)
	f.feed.events <- event.MessageInserted{Conv: conv, MessageID: "srv-1"}

	req.Eventually(func() bool {
		view := f.session.View()
		return len(view) == 1 && view[0].ID == "srv-1"
	}, 2*time.Second, 10*time.Millisecond)
}
