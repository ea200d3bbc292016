package transport

import (
	"context"
	"log/slog"
	"sync"

	"cloud.google.com/go/pubsub"
)

// PubSub adapts the managed pub/sub service. Subjects map to topic IDs
// and subscriptions follow the "<subject>-sub" naming convention.
//
// When no project is configured, or the SDK client cannot be created
// (missing credentials in a degraded environment), the adapter runs in
// mock mode: publishes are logged and delivered to local subscribers
// like the in-process bus, so agents stay runnable.
type PubSub struct {
	projectID string
	client    *pubsub.Client
	mock      *InProcess
	logger    *slog.Logger

	mu      sync.Mutex
	topics  map[string]*pubsub.Topic
	cancels map[*Subscription]context.CancelFunc
	wg      sync.WaitGroup
}

var _ Transport = (*PubSub)(nil)

// NewPubSub creates the managed adapter, degrading to mock mode when
// the project is unset or the SDK client cannot be constructed.
func NewPubSub(ctx context.Context, cfg Config) *PubSub {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	t := &PubSub{
		projectID: cfg.ProjectID,
		logger:    logger,
		topics:    make(map[string]*pubsub.Topic),
		cancels:   make(map[*Subscription]context.CancelFunc),
	}

	if cfg.ProjectID == "" {
		logger.Warn("pubsub: no project configured, running in mock mode")
		t.mock = NewInProcess(logger)
		return t
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		logger.Warn("pubsub: client unavailable, running in mock mode", "error", err)
		t.mock = NewInProcess(logger)
		return t
	}
	t.client = client
	return t
}

// Publish sends data on the subject's topic and waits for the server
// acknowledgment, bounded by ctx.
func (t *PubSub) Publish(ctx context.Context, subject string, data []byte) (*Receipt, error) {
	if t.mock != nil {
		t.logger.Debug("pubsub mock publish", "subject", subject)
		return t.mock.Publish(ctx, subject, data)
	}

	result := t.topic(subject).Publish(ctx, &pubsub.Message{Data: data})
	if _, err := result.Get(ctx); err != nil {
		return nil, &Error{Op: "publish", Subject: subject, Err: err}
	}
	return &Receipt{Delivered: true}, nil
}

// Subscribe attaches fn to the subject's subscription. Delivery happens
// on the SDK's receive callbacks; Stop cancels the receive loop.
func (t *PubSub) Subscribe(ctx context.Context, subject string, fn Handler) (*Subscription, error) {
	if t.mock != nil {
		return t.mock.Subscribe(ctx, subject, fn)
	}

	receiver := t.client.Subscription(subject + "-sub")
	receiveCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	sub := newSubscription(subject, cancel, done)
	t.mu.Lock()
	t.cancels[sub] = cancel
	t.mu.Unlock()
	t.wg.Add(1)

	go func() {
		defer close(done)
		defer t.wg.Done()
		defer func() {
			t.mu.Lock()
			delete(t.cancels, sub)
			t.mu.Unlock()
		}()
		err := receiver.Receive(receiveCtx, func(_ context.Context, m *pubsub.Message) {
			fn(m.Data)
			m.Ack()
		})
		if err != nil && receiveCtx.Err() == nil {
			t.logger.Error("pubsub receive terminated", "subject", subject, "error", err)
		}
	}()

	return sub, nil
}

// SetCredential is a no-op: the SDK resolves credentials from its
// environment.
func (t *PubSub) SetCredential(string) {}

// Close stops cached topics, cancels receive loops, waits for them to
// exit, and closes the SDK client.
func (t *PubSub) Close() error {
	if t.mock != nil {
		return t.mock.Close()
	}
	t.mu.Lock()
	for _, topic := range t.topics {
		topic.Stop()
	}
	t.topics = make(map[string]*pubsub.Topic)
	for _, cancel := range t.cancels {
		cancel()
	}
	t.mu.Unlock()
	t.wg.Wait()
	return t.client.Close()
}

func (t *PubSub) topic(subject string) *pubsub.Topic {
	t.mu.Lock()
	defer t.mu.Unlock()
	topic, ok := t.topics[subject]
	if !ok {
		topic = t.client.Topic(subject)
		t.topics[subject] = topic
	}
	return topic
}
