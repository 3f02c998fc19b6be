package projection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"convsync/domain"
)

func msg(id, text string, at time.Time) domain.Message {
	return domain.Message{ID: id, Text: text, Timestamp: at}
}

func Test_View_Hides_Claimed_Authoritative_Rows(t *testing.T) {
	req := require.New(t)
	at := time.Now().UTC()

	authoritative := []domain.Message{msg("srv-1", "hello", at)}
	pending := []domain.Message{{
		ID:        "temp-abc",
		Text:      "hello",
		Timestamp: at,
		Status:    domain.StatusSent,
	}}
	claimed := map[string]struct{}{"srv-1": {}}

	view := View(authoritative, pending, claimed, nil)
	req.Len(view, 1)
	req.Equal("temp-abc", view[0].ID)
}

func Test_View_Merges_And_Sorts_Ascending(t *testing.T) {
	req := require.New(t)
	at := time.Now().UTC()

	authoritative := []domain.Message{
		msg("srv-2", "second", at.Add(time.Minute)),
		msg("srv-1", "first", at),
	}
	pending := []domain.Message{msg("temp-1", "third", at.Add(2*time.Minute))}

	view := View(authoritative, pending, nil, nil)
	req.Len(view, 3)
	req.Equal([]string{"srv-1", "srv-2", "temp-1"}, []string{view[0].ID, view[1].ID, view[2].ID})
}

func Test_View_Does_Not_Mutate_Inputs(t *testing.T) {
	req := require.New(t)
	at := time.Now().UTC()

	original := msg("srv-1", "hello", at)
	original.Reactions = []domain.Reaction{{Emoji: "👍", Count: 2, Users: []string{"bob", "clara"}}}
	authoritative := []domain.Message{original}
	deltas := map[string][]domain.ReactionDelta{
		"srv-1": {{Emoji: "👍", Added: true, User: "alice"}},
	}

	view := View(authoritative, nil, nil, deltas)
	req.Equal(3, view[0].Reactions[0].Count)

	// Source aggregate is untouched
	req.Equal(2, authoritative[0].Reactions[0].Count)
	req.Len(authoritative[0].Reactions[0].Users, 2)
}

func Test_Overlay_Add_Is_Relative_To_Aggregate(t *testing.T) {
	req := require.New(t)
	at := time.Now().UTC()

	m := msg("srv-1", "hello", at)
	m.Reactions = []domain.Reaction{{Emoji: "👍", Count: 3, Users: []string{"alice", "bob"}, HasReacted: true}}
	deltas := map[string][]domain.ReactionDelta{
		"srv-1": {{Emoji: "👍", Added: true, User: "alice"}},
	}

	// Server already counts the user, the stale delta must not double count
	view := View([]domain.Message{m}, nil, nil, deltas)
	req.Equal(3, view[0].Reactions[0].Count)
}

func Test_Overlay_Remove_Drops_Empty_Aggregate(t *testing.T) {
	req := require.New(t)
	at := time.Now().UTC()

	m := msg("srv-1", "hello", at)
	m.Reactions = []domain.Reaction{{Emoji: "👍", Count: 1, Users: []string{"alice"}, HasReacted: true}}
	deltas := map[string][]domain.ReactionDelta{
		"srv-1": {{Emoji: "👍", Added: false, User: "alice"}},
	}

	view := View([]domain.Message{m}, nil, nil, deltas)
	req.Empty(view[0].Reactions)
}

func Test_Overlay_Add_Creates_New_Aggregate(t *testing.T) {
	req := require.New(t)
	at := time.Now().UTC()

	m := msg("srv-1", "hello", at)
	deltas := map[string][]domain.ReactionDelta{
		"srv-1": {{Emoji: "🎉", Added: true, User: "alice"}},
	}

	view := View([]domain.Message{m}, nil, nil, deltas)
	req.Len(view[0].Reactions, 1)
	req.Equal("🎉", view[0].Reactions[0].Emoji)
	req.Equal(1, view[0].Reactions[0].Count)
	req.True(view[0].Reactions[0].HasReacted)
}
