package replacer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLRU_VictimIsLeastRecentlyUnpinned(t *testing.T) {
	l := NewLRU()
	l.Unpin(1)
	l.Unpin(2)
	l.Unpin(3)

	id, ok := l.Victim()
	require.True(t, ok)
	require.Equal(t, 1, id)

	id, ok = l.Victim()
	require.True(t, ok)
	require.Equal(t, 2, id)
}

func TestLRU_PinRemovesFromEvictableSet(t *testing.T) {
	l := NewLRU()
	l.Unpin(1)
	l.Unpin(2)
	l.Pin(1)

	id, ok := l.Victim()
	require.True(t, ok)
	require.Equal(t, 2, id)

	_, ok = l.Victim()
	require.False(t, ok)
}

func TestLRU_VictimEmptyReturnsFalse(t *testing.T) {
	l := NewLRU()
	_, ok := l.Victim()
	require.False(t, ok)
}

func TestClock_GivesSecondChanceThenEvictsOnSecondPass(t *testing.T) {
	c := NewClock(3)
	c.Unpin(0)
	c.Unpin(1)
	c.Unpin(2)

	// All three frames are freshly referenced, so the first pass of the
	// hand only clears reference bits; the victim is found on the second
	// pass, starting again from frame 0.
	id, ok := c.Victim()
	require.True(t, ok)
	require.Equal(t, 0, id)

	// Frame 1's bit was cleared by the first sweep and never set again, so
	// it is the very next victim.
	id, ok = c.Victim()
	require.True(t, ok)
	require.Equal(t, 1, id)
}

func TestClock_PinExcludesFromVictimSelection(t *testing.T) {
	c := NewClock(2)
	c.Unpin(0)
	c.Unpin(1)
	c.Pin(0)
	c.Pin(1)

	_, ok := c.Victim()
	require.False(t, ok)
}

func TestClock_NoEvictableFramesReturnsFalse(t *testing.T) {
	c := NewClock(4)
	_, ok := c.Victim()
	require.False(t, ok)
}
