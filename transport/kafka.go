package transport

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/segmentio/kafka-go"
)

// Kafka adapts a log-based broker. Subjects map to topics; each
// subscription runs a consumer group reader on its own goroutine.
//
// When no brokers are configured the adapter runs in mock mode,
// logging publishes and delivering to local subscribers like the
// in-process bus.
type Kafka struct {
	brokers []string
	groupID string
	writer  *kafka.Writer
	mock    *InProcess
	logger  *slog.Logger

	mu      sync.Mutex
	cancels map[*Subscription]context.CancelFunc
	wg      sync.WaitGroup
}

var _ Transport = (*Kafka)(nil)

// NewKafka creates the log-broker adapter, degrading to mock mode when
// no bootstrap brokers are configured.
func NewKafka(cfg Config) *Kafka {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	t := &Kafka{
		brokers: cfg.Brokers,
		groupID: cfg.GroupID,
		logger:  logger,
		cancels: make(map[*Subscription]context.CancelFunc),
	}

	if len(cfg.Brokers) == 0 {
		logger.Warn("kafka: no brokers configured, running in mock mode")
		t.mock = NewInProcess(logger)
		return t
	}

	t.writer = &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return t
}

// Publish appends data to the subject's topic, bounded by ctx.
func (t *Kafka) Publish(ctx context.Context, subject string, data []byte) (*Receipt, error) {
	if t.mock != nil {
		t.logger.Debug("kafka mock publish", "subject", subject)
		return t.mock.Publish(ctx, subject, data)
	}

	err := t.writer.WriteMessages(ctx, kafka.Message{Topic: subject, Value: data})
	if err != nil {
		return nil, &Error{Op: "publish", Subject: subject, Err: err}
	}
	return &Receipt{Delivered: true}, nil
}

// Subscribe starts a consumer group reader for the subject's topic on a
// background goroutine. Stop cancels the reader.
func (t *Kafka) Subscribe(ctx context.Context, subject string, fn Handler) (*Subscription, error) {
	if t.mock != nil {
		return t.mock.Subscribe(ctx, subject, fn)
	}

	groupID := t.groupID
	if groupID == "" {
		groupID = subject + "-sub"
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  t.brokers,
		GroupID:  groupID,
		Topic:    subject,
		MinBytes: 1,
		MaxBytes: 10 << 20,
	})

	readCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	sub := newSubscription(subject, cancel, done)
	t.mu.Lock()
	t.cancels[sub] = cancel
	t.mu.Unlock()
	t.wg.Add(1)

	go func() {
		defer close(done)
		defer t.wg.Done()
		defer reader.Close()
		defer func() {
			t.mu.Lock()
			delete(t.cancels, sub)
			t.mu.Unlock()
		}()
		for {
			m, err := reader.ReadMessage(readCtx)
			if err != nil {
				if readCtx.Err() == nil && !errors.Is(err, context.Canceled) {
					t.logger.Error("kafka read terminated", "subject", subject, "error", err)
				}
				return
			}
			fn(m.Value)
		}
	}()

	return sub, nil
}

// SetCredential is a no-op: broker authentication is configured on the
// connection, not per session.
func (t *Kafka) SetCredential(string) {}

// Close cancels all readers, waits for them to stop, and closes the
// writer.
func (t *Kafka) Close() error {
	if t.mock != nil {
		return t.mock.Close()
	}
	t.mu.Lock()
	for _, cancel := range t.cancels {
		cancel()
	}
	t.mu.Unlock()
	t.wg.Wait()
	return t.writer.Close()
}
