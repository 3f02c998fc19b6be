package optimistic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"convsync/domain"
	"convsync/errors"
)

func pendingMsg(text string) domain.Message {
	return domain.Message{
		ID:        domain.NewTempID(),
		Text:      text,
		Timestamp: time.Now().UTC(),
		Status:    domain.StatusSending,
	}
}

func Test_Send_Lifecycle_Sending_To_Sent(t *testing.T) {
	req := require.New(t)
	b := NewBuffer()
	m := pendingMsg("hello")

	b.Insert(m)
	status, ok := b.Status(m.ID)
	req.True(ok)
	req.Equal(domain.StatusSending, status)

	req.NoError(b.MarkSent(m.ID, "srv-1"))
	status, _ = b.Status(m.ID)
	req.Equal(domain.StatusSent, status)

	claimed := b.ClaimedServerIDs()
	req.Contains(claimed, "srv-1")

	req.True(b.Retire(m.ID))
	req.Equal(0, b.Len())
	req.Empty(b.ClaimedServerIDs())
}

func Test_Identical_Texts_Are_Distinct_Entries(t *testing.T) {
	req := require.New(t)
	b := NewBuffer()

	b.Insert(pendingMsg("same"))
	b.Insert(pendingMsg("same"))
	req.Equal(2, b.Len())
	req.Len(b.Pending(), 2)
}

func Test_MarkFailed_Keeps_Entry_For_Retry(t *testing.T) {
	req := require.New(t)
	b := NewBuffer()
	m := pendingMsg("hello")
	b.Insert(m)

	req.NoError(b.MarkFailed(m.ID))
	status, _ := b.Status(m.ID)
	req.Equal(domain.StatusFailed, status)
	req.Equal(1, b.Len())

	// Resend flips back to sending
	req.NoError(b.MarkSending(m.ID))
	status, _ = b.Status(m.ID)
	req.Equal(domain.StatusSending, status)
}

func Test_MarkSending_Rejects_Non_Failed(t *testing.T) {
	req := require.New(t)
	b := NewBuffer()
	m := pendingMsg("hello")
	b.Insert(m)

	req.ErrorIs(b.MarkSending(m.ID), errors.ErrNotFailed)
	req.ErrorIs(b.MarkSending("unknown"), errors.ErrUnknownPending)
}

func Test_RetireConfirmed_Prefers_Explicit_Server_Id(t *testing.T) {
	req := require.New(t)
	b := NewBuffer()
	first := pendingMsg("first")
	second := pendingMsg("second")
	b.Insert(first)
	b.Insert(second)

	req.NoError(b.MarkSent(first.ID, "srv-1"))
	req.NoError(b.MarkSent(second.ID, "srv-2"))

	// The event for the second send arrives first
	req.True(b.RetireConfirmed("srv-2"))
	_, ok := b.Status(second.ID)
	req.False(ok)
	_, ok = b.Status(first.ID)
	req.True(ok)
}

func Test_RetireConfirmed_Falls_Back_To_Oldest_Sent(t *testing.T) {
	req := require.New(t)
	b := NewBuffer()
	first := pendingMsg("first")
	second := pendingMsg("second")
	b.Insert(first)
	b.Insert(second)

	// Feed event lands before either send response reports a server id
	req.False(b.RetireConfirmed("srv-9"))

	req.NoError(b.MarkSent(first.ID, "srv-1"))
	req.True(b.RetireConfirmed("srv-9"))
	_, ok := b.Status(first.ID)
	req.False(ok)
	_, ok = b.Status(second.ID)
	req.True(ok)
}

func Test_Remove_Matches_Temp_And_Server_Id(t *testing.T) {
	req := require.New(t)
	b := NewBuffer()
	m := pendingMsg("hello")
	b.Insert(m)
	req.NoError(b.MarkSent(m.ID, "srv-1"))

	req.True(b.Remove("srv-1"))
	req.Equal(0, b.Len())
	req.False(b.Remove("srv-1"))
}

func Test_Reaction_Delta_Toggle_And_Clear(t *testing.T) {
	req := require.New(t)
	b := NewBuffer()

	b.ApplyReactionDelta("m1", domain.ReactionDelta{Emoji: "👍", Added: true, User: "alice"})
	d, ok := b.ReactionDelta("m1", "👍")
	req.True(ok)
	req.True(d.Added)

	// A second toggle overwrites, never stacks
	b.ApplyReactionDelta("m1", domain.ReactionDelta{Emoji: "👍", Added: false, User: "alice"})
	d, ok = b.ReactionDelta("m1", "👍")
	req.True(ok)
	req.False(d.Added)
	req.Len(b.Deltas()["m1"], 1)

	b.ClearReactionDelta("m1", "👍")
	_, ok = b.ReactionDelta("m1", "👍")
	req.False(ok)
	req.Empty(b.Deltas())
}

func Test_ClearReactionDeltas_Drops_All_For_Message(t *testing.T) {
	req := require.New(t)
	b := NewBuffer()

	b.ApplyReactionDelta("m1", domain.ReactionDelta{Emoji: "👍", Added: true, User: "alice"})
	b.ApplyReactionDelta("m1", domain.ReactionDelta{Emoji: "🎉", Added: true, User: "alice"})
	b.ApplyReactionDelta("m2", domain.ReactionDelta{Emoji: "👍", Added: true, User: "alice"})

	b.ClearReactionDeltas("m1")
	req.Empty(b.Deltas()["m1"])
	req.Len(b.Deltas()["m2"], 1)
}
