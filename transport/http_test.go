package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHTTPStream(t *testing.T, brokerURL string) *HTTPStream {
	t.Helper()
	tr, err := NewHTTPStream(Config{BrokerURL: brokerURL})
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestNewHTTPStream_RequiresBrokerURL(t *testing.T) {
	_, err := NewHTTPStream(Config{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewHTTPStream_TrimsTrailingSlash(t *testing.T) {
	tr, err := NewHTTPStream(Config{BrokerURL: "http://broker:8080/"})
	require.NoError(t, err)
	defer tr.Close()
	assert.Equal(t, "http://broker:8080", tr.baseURL)
}

// --- Publish ---

func TestHTTPStream_Publish(t *testing.T) {
	var gotAuth, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/emit", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	tr := newHTTPStream(t, server.URL)
	tr.SetCredential("tok-1")

	receipt, err := tr.Publish(context.Background(), "hello.world", []byte(`{"x":1}`))
	require.NoError(t, err)
	assert.True(t, receipt.Delivered)
	assert.Equal(t, http.StatusAccepted, receipt.Status)
	assert.Equal(t, "Bearer tok-1", gotAuth)
	assert.Equal(t, `{"x":1}`, gotBody)
}

func TestHTTPStream_PublishRejectedIsSoftFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "subject not allowed", http.StatusForbidden)
	}))
	defer server.Close()

	tr := newHTTPStream(t, server.URL)

	receipt, err := tr.Publish(context.Background(), "hello.world", []byte("{}"))
	require.NoError(t, err)
	assert.False(t, receipt.Delivered)
	assert.Equal(t, http.StatusForbidden, receipt.Status)
	assert.Contains(t, receipt.Body, "subject not allowed")
}

func TestHTTPStream_PublishNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close() // refuse connections

	tr := newHTTPStream(t, server.URL)

	_, err := tr.Publish(context.Background(), "hello.world", []byte("{}"))
	var trErr *Error
	require.ErrorAs(t, err, &trErr)
	assert.Equal(t, "publish", trErr.Op)
	assert.Equal(t, "hello.world", trErr.Subject)
}

// --- Subscribe ---

// sseServer serves a fixed set of events per connection and counts
// connections.
type sseServer struct {
	mu       sync.Mutex
	connects int
	events   []string
	server   *httptest.Server
}

func newSSEServer(t *testing.T, events ...string) *sseServer {
	t.Helper()
	s := &sseServer{events: events}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.connects++
		s.mu.Unlock()

		require.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, ev := range s.events {
			fmt.Fprintf(w, "data: %s\n\n", ev)
			flusher.Flush()
		}
	}))
	t.Cleanup(s.server.Close)
	return s
}

func (s *sseServer) connectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatal("condition not met in time")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestHTTPStream_SubscribeDeliversEvents(t *testing.T) {
	server := newSSEServer(t, `{"seq":1}`, `{"seq":2}`)
	tr := newHTTPStream(t, server.server.URL)

	var mu sync.Mutex
	var got []string
	sub, err := tr.Subscribe(context.Background(), "hello.world", func(data []byte) {
		mu.Lock()
		got = append(got, string(data))
		mu.Unlock()
	})
	require.NoError(t, err)
	defer sub.Stop()

	waitFor(t, 5*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) >= 2
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, `{"seq":1}`, got[0])
	assert.Equal(t, `{"seq":2}`, got[1])
}

func TestHTTPStream_SubscribeReconnects(t *testing.T) {
	server := newSSEServer(t, `{"seq":1}`)
	tr := newHTTPStream(t, server.server.URL)

	sub, err := tr.Subscribe(context.Background(), "hello.world", func([]byte) {})
	require.NoError(t, err)
	defer sub.Stop()

	// Each connection ends after its events, so the reader must
	// reconnect to keep the subscription alive.
	waitFor(t, 5*time.Second, func() bool { return server.connectCount() >= 2 })
}

func TestHTTPStream_SubscribeStop(t *testing.T) {
	server := newSSEServer(t, `{"seq":1}`)
	tr := newHTTPStream(t, server.server.URL)

	sub, err := tr.Subscribe(context.Background(), "hello.world", func([]byte) {})
	require.NoError(t, err)

	waitFor(t, 5*time.Second, func() bool { return server.connectCount() >= 1 })
	sub.Stop()
	sub.Stop() // idempotent, returns after the reader exited
}

func TestHTTPStream_SubscribeAfterClose(t *testing.T) {
	server := newSSEServer(t)
	tr := newHTTPStream(t, server.server.URL)
	require.NoError(t, tr.Close())

	_, err := tr.Subscribe(context.Background(), "s", func([]byte) {})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestHTTPStream_CloseStopsReaders(t *testing.T) {
	server := newSSEServer(t, `{"seq":1}`)
	tr := newHTTPStream(t, server.server.URL)

	_, err := tr.Subscribe(context.Background(), "a", func([]byte) {})
	require.NoError(t, err)
	_, err = tr.Subscribe(context.Background(), "b", func([]byte) {})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		tr.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}
}
