package presence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fakeClock(start time.Time) (func() time.Time, func(d time.Duration)) {
	current := start
	now := func() time.Time { return current }
	advance := func(d time.Duration) { current = current.Add(d) }
	return now, advance
}

func Test_Clear_Respects_Visibility_Floor(t *testing.T) {
	req := require.New(t)
	now, advance := fakeClock(time.Now().UTC())
	tracker := NewTracker(3*time.Second, 8*time.Second).WithClock(now)

	tracker.SetTyping("u1", "Alice")
	advance(2 * time.Second)

	// Stopped-typing signal before the floor has passed is ignored
	tracker.Clear("u1", ClearRespectFloor)
	req.True(tracker.IsTyping("u1"))

	advance(1500 * time.Millisecond)
	tracker.Clear("u1", ClearRespectFloor)
	req.False(tracker.IsTyping("u1"))
}

func Test_Clear_Force_Ignores_Floor(t *testing.T) {
	req := require.New(t)
	now, advance := fakeClock(time.Now().UTC())
	tracker := NewTracker(3*time.Second, 8*time.Second).WithClock(now)

	tracker.SetTyping("u1", "Alice")
	advance(time.Second)
	tracker.Clear("u1", ClearForce)
	req.False(tracker.IsTyping("u1"))
}

func Test_Sweep_Evicts_Stale_Entries(t *testing.T) {
	req := require.New(t)
	now, advance := fakeClock(time.Now().UTC())
	tracker := NewTracker(3*time.Second, 8*time.Second).WithClock(now)

	tracker.SetTyping("u1", "Alice")
	advance(5 * time.Second)
	tracker.SetTyping("u2", "Bob")

	// u1 is past the 8s ceiling after 9s, u2 is not
	advance(4 * time.Second)
	req.Equal(1, tracker.Sweep())
	req.False(tracker.IsTyping("u1"))
	req.True(tracker.IsTyping("u2"))
}

func Test_Sweep_Waits_For_Floor(t *testing.T) {
	req := require.New(t)
	now, advance := fakeClock(time.Now().UTC())
	tracker := NewTracker(10*time.Second, 8*time.Second).WithClock(now)

	tracker.SetTyping("u1", "Alice")
	advance(9 * time.Second)

	// Past the age ceiling but still inside the (larger) floor
	req.Equal(0, tracker.Sweep())
	req.True(tracker.IsTyping("u1"))

	advance(2 * time.Second)
	req.Equal(1, tracker.Sweep())
}

func Test_SetTyping_Refreshes_Timestamp_And_Floor(t *testing.T) {
	req := require.New(t)
	now, advance := fakeClock(time.Now().UTC())
	tracker := NewTracker(3*time.Second, 8*time.Second).WithClock(now)

	tracker.SetTyping("u1", "Alice")
	advance(7 * time.Second)
	tracker.SetTyping("u1", "Alice")

	advance(2 * time.Second)
	req.Equal(0, tracker.Sweep())
	req.True(tracker.IsTyping("u1"))
}

func Test_Typing_Sorted_Oldest_First(t *testing.T) {
	req := require.New(t)
	now, advance := fakeClock(time.Now().UTC())
	tracker := NewTracker(3*time.Second, 8*time.Second).WithClock(now)

	tracker.SetTyping("u2", "Bob")
	advance(time.Second)
	tracker.SetTyping("u1", "Alice")

	typing := tracker.Typing()
	req.Len(typing, 2)
	req.Equal("Bob", typing[0].Name)
	req.Equal("Alice", typing[1].Name)
}
