package eventstream

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListener_Stream_NotifiesOnProgress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/event/stream", r.URL.Path)
		assert.Equal(t, "0", r.URL.Query().Get("index"))

		flusher, ok := w.(http.Flusher)
		require.True(t, ok)

		// Heartbeat, then a full frame, then a frame split across writes.
		fmt.Fprint(w, "\n")
		flusher.Flush()

		fmt.Fprint(w, `{"Index":7,"Events":[{"Topic":"Job","Type":"JobRegistered","Index":7}]}`+"\n")
		flusher.Flush()

		fmt.Fprint(w, `{"Index":9,"Events":[{"Topic":"Deployment",`)
		flusher.Flush()
		fmt.Fprint(w, `"Type":"DeploymentStatusUpdate","Index":9}]}`+"\n")
		flusher.Flush()
	}))
	defer server.Close()

	listener := NewListener(ListenerConfig{Address: server.URL})

	require.NoError(t, listener.stream(context.Background()))

	// Both frames progressed the index; the buffered channel coalesces,
	// but at least one notification must be pending.
	select {
	case <-listener.Notify():
	default:
		t.Fatal("expected a pending notification")
	}
	assert.Equal(t, uint64(9), listener.index)
}

func TestListener_Stream_IgnoresStaleIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Index":3,"Events":[]}`+"\n")
	}))
	defer server.Close()

	listener := NewListener(ListenerConfig{Address: server.URL})
	listener.index = 5

	require.NoError(t, listener.stream(context.Background()))

	select {
	case <-listener.Notify():
		t.Fatal("stale index must not notify")
	default:
	}
	assert.Equal(t, uint64(5), listener.index)
}

func TestListener_Stream_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not allowed", http.StatusForbidden)
	}))
	defer server.Close()

	listener := NewListener(ListenerConfig{Address: server.URL})
	assert.ErrorIs(t, listener.stream(context.Background()), ErrUnexpectedStatus)
}

func TestListener_Stream_ResumesFromIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "42", r.URL.Query().Get("index"))
	}))
	defer server.Close()

	listener := NewListener(ListenerConfig{Address: server.URL})
	listener.index = 42

	require.NoError(t, listener.stream(context.Background()))
}

func TestListener_Run_StopsOnCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Close immediately so Run enters its reconnect wait.
	}))
	defer server.Close()

	listener := NewListener(ListenerConfig{Address: server.URL})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- listener.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop on cancellation")
	}
}
