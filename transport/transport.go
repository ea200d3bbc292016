package transport

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Kind selects a transport variant.
type Kind string

const (
	KindInProcess Kind = "inprocess"
	KindHTTP      Kind = "http"
	KindPubSub    Kind = "pubsub"
	KindKafka     Kind = "kafka"
)

// Handler consumes a delivered message in its serialized form.
type Handler func(data []byte)

// Receipt reports the outcome of a publish. A broker rejection (non-2xx
// response) is a soft failure carried here rather than an error;
// network-level failures surface as *Error instead.
type Receipt struct {
	Delivered bool
	Status    int
	Body      string
}

// Transport is the polymorphic delivery capability. Publish must not
// block the caller indefinitely; Subscribe must not block the caller at
// all: delivery happens asynchronously on a background goroutine or
// the broker SDK's own callback.
//
// SetCredential is part of the interface so the client never probes for
// credential support: variants that carry no bearer credential
// implement it as a no-op.
type Transport interface {
	Publish(ctx context.Context, subject string, data []byte) (*Receipt, error)
	Subscribe(ctx context.Context, subject string, fn Handler) (*Subscription, error)
	SetCredential(token string)
	Close() error
}

// Config selects and parameterizes a transport variant.
type Config struct {
	Kind Kind

	// BrokerURL is the ABI base URL (HTTP variant).
	BrokerURL string

	// HTTPClient overrides the publish client (HTTP variant). The
	// subscription stream always uses an unbounded client.
	HTTPClient *http.Client

	// PublishTimeout bounds HTTP publishes when HTTPClient is nil.
	PublishTimeout time.Duration

	// ProjectID selects the managed pub/sub project. Empty means mock
	// mode.
	ProjectID string

	// Brokers lists Kafka bootstrap addresses. Empty means mock mode.
	Brokers []string

	// GroupID is the Kafka consumer group. Defaults per subject.
	GroupID string

	// Logger is used for structured logging. Nil means slog.Default().
	Logger *slog.Logger
}

// New creates a Transport for the given Config. An unset Kind defaults
// to HTTP when a broker URL is present and in-process otherwise.
func New(ctx context.Context, cfg Config) (Transport, error) {
	switch cfg.Kind {
	case KindInProcess:
		return NewInProcess(cfg.Logger), nil
	case KindHTTP:
		return NewHTTPStream(cfg)
	case KindPubSub:
		return NewPubSub(ctx, cfg), nil
	case KindKafka:
		return NewKafka(cfg), nil
	case "":
		if cfg.BrokerURL != "" {
			return NewHTTPStream(cfg)
		}
		return NewInProcess(cfg.Logger), nil
	default:
		return nil, ErrInvalidConfig
	}
}

// Subscription is the cancellation handle returned by Subscribe. Stop
// detaches the handler and, for streaming variants, cancels the
// background reader and waits for it to exit. Stop is idempotent.
type Subscription struct {
	subject string
	once    sync.Once
	cancel  func()
	done    <-chan struct{}
}

func newSubscription(subject string, cancel func(), done <-chan struct{}) *Subscription {
	return &Subscription{subject: subject, cancel: cancel, done: done}
}

// Subject returns the subject (or pattern) this subscription binds.
func (s *Subscription) Subject() string {
	return s.subject
}

// Stop cancels the subscription.
func (s *Subscription) Stop() {
	s.once.Do(func() {
		s.cancel()
		if s.done != nil {
			<-s.done
		}
	})
}
