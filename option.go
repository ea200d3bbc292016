package ae

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/invictus-insights/aegnix-platform-sdk-ae/session"
	"github.com/invictus-insights/aegnix-platform-sdk-ae/transport"
)

// Option configures a Client via the functional options pattern.
type Option func(*clientOptions)

// clientOptions holds all configurable fields set via Option functions.
type clientOptions struct {
	brokerURL      string
	transport      transport.Transport
	transportKind  transport.Kind
	projectID      string
	brokers        []string
	groupID        string
	publishes      []string
	subscribes     []string
	store          session.Store
	storePath      string
	autoRefresh    bool
	autoPersist    bool
	httpClient     *http.Client
	logger         *slog.Logger
	requestTimeout time.Duration
	accessLeeway   time.Duration
	schemas        map[string]any
	capabilityMeta map[string]any
	now            func() time.Time
}

// applyDefaults fills in zero-value fields.
func (o *clientOptions) applyDefaults() {
	if o.brokerURL == "" {
		o.brokerURL = DefaultBrokerURL
	}
	if o.requestTimeout == 0 {
		o.requestTimeout = DefaultRequestTimeout
	}
	if o.accessLeeway == 0 {
		o.accessLeeway = DefaultAccessLeeway
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: o.requestTimeout}
	}
	if o.now == nil {
		o.now = time.Now
	}
}

// resolveOptions applies all option functions and fills defaults.
// Automatic refresh and persistence are on unless disabled explicitly.
func resolveOptions(opts []Option) clientOptions {
	o := clientOptions{
		autoRefresh: true,
		autoPersist: true,
	}
	for _, fn := range opts {
		fn(&o)
	}
	o.applyDefaults()
	return o
}

// --- Broker & transport ---

// WithBrokerURL sets the ABI base URL.
func WithBrokerURL(url string) Option {
	return func(o *clientOptions) { o.brokerURL = url }
}

// WithTransport injects a pre-built transport, bypassing the factory.
func WithTransport(t transport.Transport) Option {
	return func(o *clientOptions) { o.transport = t }
}

// WithTransportKind selects a transport variant to build at client
// construction. The broker URL, project id and broker list options feed
// the factory.
func WithTransportKind(kind transport.Kind) Option {
	return func(o *clientOptions) { o.transportKind = kind }
}

// WithPubSubProject sets the managed pub/sub project id.
func WithPubSubProject(projectID string) Option {
	return func(o *clientOptions) { o.projectID = projectID }
}

// WithKafkaBrokers sets the log-broker bootstrap addresses.
func WithKafkaBrokers(brokers ...string) Option {
	return func(o *clientOptions) { o.brokers = brokers }
}

// WithKafkaGroupID sets the consumer group for log-broker subscriptions.
func WithKafkaGroupID(groupID string) Option {
	return func(o *clientOptions) { o.groupID = groupID }
}

// WithHTTPClient overrides the HTTP client used for broker requests.
func WithHTTPClient(client *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = client }
}

// WithRequestTimeout bounds every outbound broker request.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(o *clientOptions) { o.requestTimeout = timeout }
}

// --- Capabilities ---

// WithPublishes declares the subjects this agent will emit. Declared at
// registration time via the capability endpoint.
func WithPublishes(subjects ...string) Option {
	return func(o *clientOptions) { o.publishes = subjects }
}

// WithSubscribes declares the subjects this agent will consume.
func WithSubscribes(subjects ...string) Option {
	return func(o *clientOptions) { o.subscribes = subjects }
}

// WithPayloadSchema attaches a JSON schema, reflected from sample, to
// the capability declaration's meta under "schemas", keyed by subject.
// Consumers can validate payloads for that subject against it.
func WithPayloadSchema(subject string, sample any) Option {
	return func(o *clientOptions) {
		if o.schemas == nil {
			o.schemas = make(map[string]any)
		}
		o.schemas[subject] = sample
	}
}

// WithCapabilityMeta sets free-form metadata sent with the capability
// declaration.
func WithCapabilityMeta(meta map[string]any) Option {
	return func(o *clientOptions) { o.capabilityMeta = meta }
}

// --- Session ---

// WithSessionStore injects a session store, bypassing the default file
// store.
func WithSessionStore(store session.Store) Option {
	return func(o *clientOptions) { o.store = store }
}

// WithSessionStorePath overrides the default per-user session record
// path (~/.aegnix/sessions/<name>.json).
func WithSessionStorePath(path string) Option {
	return func(o *clientOptions) { o.storePath = path }
}

// WithAutoRefresh toggles lazy access-token refresh on emit/listen.
// When disabled, an expiring token makes those calls fail with
// *SessionError and the caller must invoke RefreshSession itself.
func WithAutoRefresh(enabled bool) Option {
	return func(o *clientOptions) { o.autoRefresh = enabled }
}

// WithAutoPersist toggles saving the session to the store after
// registration and refresh.
func WithAutoPersist(enabled bool) Option {
	return func(o *clientOptions) { o.autoPersist = enabled }
}

// WithAccessLeeway sets how close to expiry an access token may get
// before emit/listen consider it expired.
func WithAccessLeeway(leeway time.Duration) Option {
	return func(o *clientOptions) { o.accessLeeway = leeway }
}

// --- Observability ---

// WithLogger sets the structured logger. Best-effort failures
// (persistence, capability declaration during registration) are
// reported here and swallowed.
func WithLogger(logger *slog.Logger) Option {
	return func(o *clientOptions) { o.logger = logger }
}

// WithClock overrides the time source for expiry checks. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(o *clientOptions) { o.now = now }
}
