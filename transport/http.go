package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Reconnect backoff bounds for subscription streams.
const (
	streamBackoffInitial = 250 * time.Millisecond
	streamBackoffMax     = 10 * time.Second
)

// HTTPStream publishes envelopes to the broker's /emit endpoint and
// subscribes via long-lived SSE streams on /subscribe/{subject}, one
// background reader goroutine per subject.
//
// The current access token is injected by the client after every
// registration and refresh; in-flight subscription streams pick the new
// token up on their next (re)connect.
type HTTPStream struct {
	baseURL string
	publish *http.Client
	stream  *http.Client
	logger  *slog.Logger

	mu      sync.Mutex
	token   string
	closed  bool
	cancels map[*Subscription]context.CancelFunc
	wg      sync.WaitGroup
}

var _ Transport = (*HTTPStream)(nil)

// NewHTTPStream creates an HTTP transport for the given broker URL.
func NewHTTPStream(cfg Config) (*HTTPStream, error) {
	if cfg.BrokerURL == "" {
		return nil, fmt.Errorf("%w: http transport requires a broker URL", ErrInvalidConfig)
	}
	if _, err := url.Parse(cfg.BrokerURL); err != nil {
		return nil, fmt.Errorf("%w: broker URL %q: %v", ErrInvalidConfig, cfg.BrokerURL, err)
	}

	publishClient := cfg.HTTPClient
	if publishClient == nil {
		timeout := cfg.PublishTimeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		publishClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &HTTPStream{
		baseURL: strings.TrimRight(cfg.BrokerURL, "/"),
		publish: publishClient,
		// Subscription reads are long-lived; no client timeout.
		stream:  &http.Client{},
		logger:  logger,
		cancels: make(map[*Subscription]context.CancelFunc),
	}, nil
}

// Publish POSTs the serialized envelope to /emit with the current
// bearer credential. A non-2xx response is a soft failure reported in
// the Receipt; network failures return an *Error.
func (t *HTTPStream) Publish(ctx context.Context, subject string, data []byte) (*Receipt, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/emit", bytes.NewReader(data))
	if err != nil {
		return nil, &Error{Op: "publish", Subject: subject, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	t.authorize(req)

	resp, err := t.publish.Do(req)
	if err != nil {
		return nil, &Error{Op: "publish", Subject: subject, Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	receipt := &Receipt{
		Delivered: resp.StatusCode >= 200 && resp.StatusCode < 300,
		Status:    resp.StatusCode,
		Body:      string(body),
	}
	if !receipt.Delivered {
		t.logger.Warn("publish rejected", "subject", subject, "status", resp.StatusCode, "body", receipt.Body)
	}
	return receipt, nil
}

// Subscribe opens an SSE stream for the subject on a dedicated
// background goroutine and invokes fn once per parsed event payload.
// The reader reconnects with bounded exponential backoff until the
// subscription is stopped or the transport closes.
func (t *HTTPStream) Subscribe(ctx context.Context, subject string, fn Handler) (*Subscription, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, &Error{Op: "subscribe", Subject: subject, Err: ErrClosed}
	}
	streamCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	sub := newSubscription(subject, cancel, done)
	t.cancels[sub] = cancel
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer close(done)
		defer t.wg.Done()
		defer func() {
			t.mu.Lock()
			delete(t.cancels, sub)
			t.mu.Unlock()
		}()
		t.readLoop(streamCtx, subject, fn)
	}()

	return sub, nil
}

// readLoop owns the stream for one subject: connect, consume events,
// reconnect on any failure or clean EOF, back off exponentially between
// attempts and reset the backoff once events flow again.
func (t *HTTPStream) readLoop(ctx context.Context, subject string, fn Handler) {
	backoff := streamBackoffInitial
	for {
		delivered, err := t.streamOnce(ctx, subject, fn)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			t.logger.Warn("subscription stream interrupted",
				"subject", subject, "error", err, "retry_in", backoff)
		} else {
			t.logger.Debug("subscription stream ended, reconnecting",
				"subject", subject, "retry_in", backoff)
		}
		if delivered > 0 {
			backoff = streamBackoffInitial
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > streamBackoffMax {
			backoff = streamBackoffMax
		}
	}
}

// streamOnce runs a single connection lifetime and returns the number
// of events delivered before it ended.
func (t *HTTPStream) streamOnce(ctx context.Context, subject string, fn Handler) (int, error) {
	endpoint := t.baseURL + "/subscribe/" + url.PathEscape(subject)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "text/event-stream")
	t.authorize(req)

	resp, err := t.stream.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, fmt.Errorf("subscribe returned HTTP %d: %s", resp.StatusCode, body)
	}

	delivered := 0
	scanner := NewSSEScanner(resp.Body)
	for scanner.Next() {
		event := scanner.Event()
		if event.Data == "" {
			continue
		}
		delivered++
		fn([]byte(event.Data))
	}
	return delivered, scanner.Err()
}

// SetCredential swaps the bearer token used by subsequent requests.
func (t *HTTPStream) SetCredential(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.token = token
}

func (t *HTTPStream) authorize(req *http.Request) {
	t.mu.Lock()
	token := t.token
	t.mu.Unlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// Close cancels every subscription stream and waits for the readers to
// exit.
func (t *HTTPStream) Close() error {
	t.mu.Lock()
	t.closed = true
	for _, cancel := range t.cancels {
		cancel()
	}
	t.mu.Unlock()
	t.wg.Wait()
	return nil
}
