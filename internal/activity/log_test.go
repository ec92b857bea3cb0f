package activity

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLog_ClearThenAppend(t *testing.T) {
	l := New(0, nil)
	l.Append("one")
	l.Append("two")

	l.Clear()
	l.Append("three")

	require.Equal(t, []string{"three"}, l.Snapshot())
	require.Equal(t, 1, l.Len())
}

func TestLog_OrderAndTimes(t *testing.T) {
	l := New(0, nil)
	base := time.Date(2024, 11, 18, 10, 0, 0, 0, time.UTC)
	tick := 0
	l.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	l.Appendf("model %d", 1)
	l.Appendf("model %d", 2)

	entries := l.Entries()
	require.Len(t, entries, 2)
	require.Equal(t, "model 1", entries[0].Message)
	require.Equal(t, "model 2", entries[1].Message)
	require.True(t, entries[0].Time.Before(entries[1].Time))
}

func TestLog_RetentionDropsOldest(t *testing.T) {
	l := New(3, nil)
	for i := 0; i < 5; i++ {
		l.Appendf("m%d", i)
	}

	require.Equal(t, []string{"m2", "m3", "m4"}, l.Snapshot())
}

func TestLog_SnapshotIsCopy(t *testing.T) {
	l := New(0, nil)
	l.Append("a")

	snap := l.Snapshot()
	snap[0] = "mutated"

	require.Equal(t, []string{"a"}, l.Snapshot())
}

func TestLog_SubscribersNotified(t *testing.T) {
	l := New(0, nil)
	var calls atomic.Int32
	l.Subscribe(func() { calls.Add(1) })

	l.Append("a")
	l.Clear()

	require.Equal(t, int32(2), calls.Load())
}

func TestLog_ConcurrentAppends(t *testing.T) {
	l := New(0, nil)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				l.Append(fmt.Sprintf("g%d-%d", g, i))
			}
		}(g)
	}
	wg.Wait()

	require.Equal(t, 800, l.Len())
}
