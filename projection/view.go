// Package projection builds the merged display sequence from the
// authoritative store and the optimistic buffer. It is a pure function of
// its inputs: it never mutates them, so re-rendering is idempotent.
package projection

import (
	"sort"

	"github.com/samber/lo"

	"convsync/domain"
)

// View merges authoritative and pending messages into the sequence shown to
// the user:
//
//   - every pending optimistic entry is visible,
//   - authoritative entries whose id is claimed by a still-pending entry are
//     hidden until that entry retires, so a logical message never shows twice,
//   - reaction deltas overlay the authoritative aggregates, display-only.
//
// The result is sorted ascending by timestamp, ties broken by id.
func View(authoritative, pending []domain.Message, claimed map[string]struct{}, deltas map[string][]domain.ReactionDelta) []domain.Message {
	visible := lo.Filter(authoritative, func(m domain.Message, _ int) bool {
		_, hidden := claimed[m.ID]
		return !hidden
	})

	merged := make([]domain.Message, 0, len(visible)+len(pending))
	for _, m := range visible {
		merged = append(merged, overlayReactions(m, deltas[m.ID]))
	}
	merged = append(merged, pending...)

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Timestamp.Equal(merged[j].Timestamp) {
			return merged[i].ID < merged[j].ID
		}
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})
	return merged
}

// overlayReactions applies local reaction deltas on a copy of the message.
// The overlay is relative to the authoritative aggregate: an "added" delta
// only counts while the server still reports the user as not reacted, which
// avoids double counting once the authoritative aggregate lands.
func overlayReactions(m domain.Message, deltas []domain.ReactionDelta) domain.Message {
	if len(deltas) == 0 {
		return m
	}

	reactions := make([]domain.Reaction, len(m.Reactions))
	copy(reactions, m.Reactions)
	m.Reactions = reactions

	for _, d := range deltas {
		idx := -1
		for i, r := range m.Reactions {
			if r.Emoji == d.Emoji {
				idx = i
				break
			}
		}

		switch {
		case d.Added && idx == -1:
			m.Reactions = append(m.Reactions, domain.Reaction{
				Emoji:      d.Emoji,
				Count:      1,
				Users:      []string{d.User},
				HasReacted: true,
			})
		case d.Added && !m.Reactions[idx].HasReacted:
			m.Reactions[idx].Count++
			m.Reactions[idx].HasReacted = true
			m.Reactions[idx].Users = append(append([]string{}, m.Reactions[idx].Users...), d.User)
		case !d.Added && idx != -1 && m.Reactions[idx].HasReacted:
			m.Reactions[idx].Count--
			m.Reactions[idx].HasReacted = false
			m.Reactions[idx].Users = lo.Filter(m.Reactions[idx].Users, func(u string, _ int) bool {
				return u != d.User
			})
			if m.Reactions[idx].Count <= 0 {
				m.Reactions = append(m.Reactions[:idx], m.Reactions[idx+1:]...)
			}
		}
	}
	return m
}
