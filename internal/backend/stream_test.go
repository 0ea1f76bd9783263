package backend

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"comfyd/internal/backend/backendtest"
)

func TestStreamDeliversEvents(t *testing.T) {
	srv := backendtest.New(t)
	c := newTestClient(t, srv.URL)

	s, err := c.Dial(context.Background(), "client-1")
	require.NoError(t, err)
	defer s.Close(time.Second)
	require.Equal(t, "client-1", srv.WaitStream(t, 2*time.Second))

	require.NoError(t, srv.SendProgress("client-1", 3, 9))
	require.NoError(t, srv.SendRaw("client-1", []byte(`not json`)))
	require.NoError(t, srv.SendRaw("client-1", []byte(`{"data":{}}`)))
	require.NoError(t, srv.Send("client-1", map[string]any{"type": "executing", "data": map[string]any{"node": nil, "prompt_id": "job-1"}}))

	ev, err := s.Next()
	require.NoError(t, err)
	require.Equal(t, EventProgress, ev.Type)
	p, err := ev.Progress()
	require.NoError(t, err)
	require.Equal(t, 3, p.Value)
	require.Equal(t, 9, p.Max)

	_, err = s.Next()
	require.True(t, IsMalformed(err))
	_, err = s.Next()
	require.True(t, IsMalformed(err))

	ev, err = s.Next()
	require.NoError(t, err)
	require.Equal(t, EventExecuting, ev.Type)
	x, err := ev.Executing()
	require.NoError(t, err)
	require.Empty(t, x.Node)
	require.Equal(t, "job-1", x.JobID)
}

func TestStreamCloseUnblocksNext(t *testing.T) {
	srv := backendtest.New(t)
	c := newTestClient(t, srv.URL)

	s, err := c.Dial(context.Background(), "client-2")
	require.NoError(t, err)
	srv.WaitStream(t, 2*time.Second)

	done := make(chan error, 1)
	go func() {
		_, err := s.Next()
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	_ = s.Close(time.Second)
	// A second close is a no-op.
	_ = s.Close(time.Second)

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not return after Close")
	}
}

func TestStreamURL(t *testing.T) {
	c := NewClient(Options{BaseURL: "https://gpu.example:8443/base"})
	u, err := c.streamURL("abc")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(u, "wss://gpu.example:8443/base/ws?"))
	require.Contains(t, u, "clientId=abc")
}

func TestDialFailure(t *testing.T) {
	c := NewClient(Options{BaseURL: "http://127.0.0.1:1", ConnectTimeout: 200 * time.Millisecond, RequestTimeout: time.Second})
	_, err := c.Dial(context.Background(), "x")
	require.Error(t, err)
}
