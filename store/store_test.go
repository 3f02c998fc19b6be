package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"convsync/domain"
)

func msg(id string, at time.Time) domain.Message {
	return domain.Message{ID: id, Text: "hello " + id, Timestamp: at}
}

func Test_Load_First_Page_Replaces(t *testing.T) {
	req := require.New(t)
	s := NewConversationStore("conv-1")
	at := time.Now().UTC()

	s.Load(domain.Page{Messages: []domain.Message{msg("m1", at)}, HasMore: true, UnreadCount: 2}, true)
	req.Equal(1, s.Len())
	req.True(s.HasMore())
	req.Equal(2, s.Unread())

	// A fresh first page drops everything previously held
	s.Load(domain.Page{Messages: []domain.Message{msg("m2", at.Add(time.Minute))}}, true)
	req.Equal(1, s.Len())
	_, ok := s.Get("m1")
	req.False(ok)
	_, ok = s.Get("m2")
	req.True(ok)
	req.False(s.HasMore())
}

func Test_Load_History_Page_Merges_By_Id(t *testing.T) {
	req := require.New(t)
	s := NewConversationStore("conv-1")
	at := time.Now().UTC()

	s.Load(domain.Page{Messages: []domain.Message{msg("m3", at)}}, true)
	s.Load(domain.Page{Messages: []domain.Message{
		msg("m1", at.Add(-2*time.Minute)),
		msg("m2", at.Add(-time.Minute)),
		msg("m3", at),
	}, HasMore: true}, false)

	req.Equal(3, s.Len())
	req.True(s.HasMore())
}

func Test_Snapshot_Sorted_Ascending_With_Id_Tiebreak(t *testing.T) {
	req := require.New(t)
	s := NewConversationStore("conv-1")
	at := time.Now().UTC()

	s.Upsert(msg("b", at))
	s.Upsert(msg("a", at))
	s.Upsert(msg("c", at.Add(-time.Minute)))

	snapshot := s.Snapshot()
	req.Len(snapshot, 3)
	req.Equal("c", snapshot[0].ID)
	req.Equal("a", snapshot[1].ID)
	req.Equal("b", snapshot[2].ID)
}

func Test_Remove_Returns_Removed_Copy(t *testing.T) {
	req := require.New(t)
	s := NewConversationStore("conv-1")
	at := time.Now().UTC()
	s.Upsert(msg("m1", at))

	removed, ok := s.Remove("m1")
	req.True(ok)
	req.Equal("m1", removed.ID)
	req.Equal(0, s.Len())

	// Removing again is a no-op
	_, ok = s.Remove("m1")
	req.False(ok)
}

func Test_Upsert_Replaces_Existing(t *testing.T) {
	req := require.New(t)
	s := NewConversationStore("conv-1")
	at := time.Now().UTC()

	s.Upsert(msg("m1", at))
	edited := msg("m1", at)
	edited.Text = "edited"
	edited.IsEdited = true
	s.Upsert(edited)

	got, ok := s.Get("m1")
	req.True(ok)
	req.Equal("edited", got.Text)
	req.True(got.IsEdited)
	req.Equal(1, s.Len())
}
