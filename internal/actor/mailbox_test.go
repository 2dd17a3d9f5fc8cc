package actor

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDoRunsSynchronouslyAndReturnsResult(t *testing.T) {
	m := New(4)
	defer m.Shutdown()

	var got int
	ok := m.Do(func() { got = 42 })
	require.True(t, ok)
	require.Equal(t, 42, got)
}

func TestSendRunsEveryQueuedMessage(t *testing.T) {
	m := New(8)
	defer m.Shutdown()

	var counter int64
	const n = 50
	for i := 0; i < n; i++ {
		ok := m.Send(func() { counter++ })
		require.True(t, ok)
	}
	m.Do(func() {})

	require.Equal(t, int64(n), atomic.LoadInt64(&counter))
}

func TestShutdownDrainsPendingWork(t *testing.T) {
	m := New(4)

	var ran int32
	for i := 0; i < 3; i++ {
		m.Send(func() {
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&ran, 1)
		})
	}
	m.Shutdown()

	require.Equal(t, int32(3), atomic.LoadInt32(&ran))
}

func TestSendAfterShutdownFails(t *testing.T) {
	m := New(1)
	m.Shutdown()

	ok := m.Send(func() {})
	require.False(t, ok)

	ok = m.Do(func() {})
	require.False(t, ok)
}
