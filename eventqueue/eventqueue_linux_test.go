//go:build linux
// +build linux

package eventqueue_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fbnetwork/corenet/eventqueue"
)

func TestEpollQueueReportsReadableListener(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	q, err := eventqueue.New()
	require.NoError(t, err)
	defer q.Close()

	require.NoError(t, q.AttachListener(int(r.Fd())))

	_, err = w.Write([]byte("x"))
	require.NoError(t, err)

	events, err := q.PollWithDeadline(1000)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.True(t, q.IsListenerEvent(events[0]))
	require.Equal(t, int(r.Fd()), q.PeerOf(events[0]))
}

func TestEpollQueuePollWithDeadlineReturnsEmptyOnTimeout(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	q, err := eventqueue.New()
	require.NoError(t, err)
	defer q.Close()

	require.NoError(t, q.AddClient(int(r.Fd())))

	start := time.Now()
	events, err := q.PollWithDeadline(50)
	require.NoError(t, err)
	require.Empty(t, events)
	require.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestEpollQueueRemoveClientOnUnknownFDIsNotError(t *testing.T) {
	q, err := eventqueue.New()
	require.NoError(t, err)
	defer q.Close()

	require.NoError(t, q.RemoveClient(999999))
}

func TestEpollQueueIsClientEventDistinguishesListener(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	cr, cw, err := os.Pipe()
	require.NoError(t, err)
	defer cr.Close()
	defer cw.Close()

	q, err := eventqueue.New()
	require.NoError(t, err)
	defer q.Close()

	require.NoError(t, q.AttachListener(int(r.Fd())))
	require.NoError(t, q.AddClient(int(cr.Fd())))

	_, err = cw.Write([]byte("y"))
	require.NoError(t, err)

	events, err := q.PollWithDeadline(1000)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.True(t, q.IsClientEvent(events[0]))
	require.False(t, q.IsListenerEvent(events[0]))
}
