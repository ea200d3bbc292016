package ae

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/invopop/jsonschema"

	"github.com/invictus-insights/aegnix-platform-sdk-ae/session"
	"github.com/invictus-insights/aegnix-platform-sdk-ae/transport"
)

// Client is the protocol orchestrator for one agent. It owns the key
// material, the current session, a transport, and the handler registry,
// and drives the challenge-response registration, session refresh, and
// the emit/listen operations.
//
// Registration, refresh and emit run synchronously on the calling
// goroutine; streaming transports deliver subscribed messages on
// background goroutines.
type Client struct {
	name      string
	keys      *KeyMaterial
	broker    *brokerClient
	registry  *Registry
	transport transport.Transport
	store     session.Store
	opts      clientOptions
	now       func() time.Time

	// mu guards the session pointer and subscription list. The session
	// is replaced wholesale on refresh, never mutated in place, so a
	// concurrent reader sees either the old or the new complete state.
	mu      sync.Mutex
	session *session.State
	subs    []*transport.Subscription
}

// NewClient creates a client for the named agent. The key material is
// required: every emitted envelope is signed with it.
func NewClient(name string, keys *KeyMaterial, opts ...Option) (*Client, error) {
	if name == "" {
		return nil, fmt.Errorf("ae: agent name is required")
	}
	if keys == nil {
		return nil, fmt.Errorf("ae: key material is required")
	}
	resolved := resolveOptions(opts)

	c := &Client{
		name:     name,
		keys:     keys,
		registry: NewRegistry(),
		opts:     resolved,
		now:      resolved.now,
		broker: &brokerClient{
			baseURL:    resolved.brokerURL,
			httpClient: resolved.httpClient,
			logger:     resolved.logger,
		},
	}

	if resolved.transport != nil {
		c.transport = resolved.transport
	} else {
		t, err := transport.New(context.Background(), transport.Config{
			Kind:           resolved.transportKind,
			BrokerURL:      resolved.brokerURL,
			PublishTimeout: resolved.requestTimeout,
			ProjectID:      resolved.projectID,
			Brokers:        resolved.brokers,
			GroupID:        resolved.groupID,
			Logger:         resolved.logger,
		})
		if err != nil {
			return nil, err
		}
		c.transport = t
	}

	if resolved.store != nil {
		c.store = resolved.store
	} else if resolved.autoPersist {
		path := resolved.storePath
		if path == "" {
			p, err := session.DefaultPath(name)
			if err != nil {
				return nil, err
			}
			path = p
		}
		store, err := session.NewFileStore(path, resolved.logger)
		if err != nil {
			return nil, err
		}
		c.store = store
	}

	return c, nil
}

// Register runs the full challenge-response registration: request a
// nonce for the agent id, sign it, submit the signature, and build a
// fresh session from the broker's grant. On success the new access
// token is propagated to the transport; if publish/subscribe subjects
// were declared at construction, capabilities are advertised
// best-effort (a declaration failure is logged, never fails an
// otherwise successful registration).
func (c *Client) Register(ctx context.Context) error {
	c.opts.logger.Info("registering with broker", "agent", c.name, "broker", c.opts.brokerURL)

	nonce, err := c.broker.challenge(ctx, c.name)
	if err != nil {
		return c.registrationError("challenge", err)
	}

	signedNonce := base64.StdEncoding.EncodeToString(c.keys.Sign(nonce))

	resp, err := c.broker.verify(ctx, c.name, signedNonce)
	if err != nil {
		return c.registrationError("verify", err)
	}
	if !resp.Verified {
		return &RegistrationError{
			AgentID:   c.name,
			BrokerURL: c.opts.brokerURL,
			Op:        "verify",
			Err:       errors.New("broker did not verify agent"),
		}
	}

	state := session.FromGrant(c.name, resp.SessionID, resp.Grant, c.now())
	c.setSession(state)
	c.persistSession(ctx, state)
	c.opts.logger.Info("agent verified", "agent", c.name, "session", state.SessionID)

	if len(c.opts.publishes) > 0 || len(c.opts.subscribes) > 0 {
		if err := c.DeclareCapabilities(ctx, c.opts.publishes, c.opts.subscribes, nil); err != nil {
			c.opts.logger.Error("capability declaration failed", "agent", c.name, "error", err)
		}
	}
	return nil
}

// ResumeOrRegister loads a stored session and tries to bring it live
// with a refresh. Any obstacle (no stored record, an expired refresh
// token, a failed refresh call) falls back to full registration, so
// the client always ends Active or with a raised *RegistrationError,
// never silently broken.
func (c *Client) ResumeOrRegister(ctx context.Context) error {
	if c.store == nil {
		return c.Register(ctx)
	}

	state, ok := c.store.Load(ctx)
	if !ok {
		c.opts.logger.Info("no stored session, registering fresh", "agent", c.name)
		return c.Register(ctx)
	}

	c.opts.logger.Info("resuming session",
		"agent", c.name,
		"session", state.SessionID,
		"access_expired", state.AccessExpiredAt(c.now(), 0),
		"refresh_expired", state.RefreshExpiredAt(c.now(), 0))

	if state.RefreshExpiredAt(c.now(), refreshLeeway) {
		c.opts.logger.Info("stored refresh token expired, registering fresh", "agent", c.name)
		return c.Register(ctx)
	}

	c.setSession(state)
	if err := c.RefreshSession(ctx); err != nil {
		c.opts.logger.Warn("session refresh failed, re-registering", "agent", c.name, "error", err)
		return c.Register(ctx)
	}
	return nil
}

// RefreshSession exchanges the refresh token for a new grant. The new
// session keeps its session id but replaces both tokens and expiries;
// the new access token is propagated to the transport and the session
// persisted if persistence is enabled.
//
// This is the manual control path for agents running with automatic
// refresh disabled.
func (c *Client) RefreshSession(ctx context.Context) error {
	current := c.currentSession()
	if current == nil {
		return &SessionError{AgentID: c.name, Err: ErrNoSession}
	}
	if current.RefreshExpiredAt(c.now(), 0) {
		return &SessionError{AgentID: c.name, Err: ErrRefreshExpired}
	}

	grant, err := c.broker.refresh(ctx, current.SessionID, current.RefreshToken)
	if err != nil {
		status, body := statusOf(err)
		return &SessionError{AgentID: c.name, Status: status, Body: body, Err: err}
	}

	state := session.FromGrant(c.name, current.SessionID, *grant, c.now())
	c.setSession(state)
	c.persistSession(ctx, state)
	c.opts.logger.Info("session refreshed", "agent", c.name, "session", state.SessionID)
	return nil
}

// ensureAccessToken gates every emit/listen call. A token within leeway
// of expiry triggers a refresh when automatic refresh is enabled, and a
// *SessionError otherwise so the caller controls refresh timing.
func (c *Client) ensureAccessToken(ctx context.Context, leeway time.Duration) error {
	current := c.currentSession()
	if current == nil {
		return &SessionError{AgentID: c.name, Err: ErrNoSession}
	}
	if !current.AccessExpiredAt(c.now(), leeway) {
		return nil
	}
	if !c.opts.autoRefresh {
		return &SessionError{AgentID: c.name, Err: ErrAccessExpired}
	}
	c.opts.logger.Info("access token expiring, refreshing", "agent", c.name)
	return c.RefreshSession(ctx)
}

// Emit signs and publishes a payload on a subject. The envelope carries
// the agent name as producer and the encoded public key as key id; it
// is fully signed before the transport sees it. Delivery confirmation
// beyond the returned receipt is transport-specific.
func (c *Client) Emit(ctx context.Context, subject string, payload any, labels ...string) (*transport.Receipt, error) {
	if err := c.ensureAccessToken(ctx, c.opts.accessLeeway); err != nil {
		return nil, err
	}

	env, err := NewEnvelope(c.name, subject, payload, labels, c.keys.PublicKeyBase64())
	if err != nil {
		return nil, err
	}
	if err := env.Sign(c.keys); err != nil {
		return nil, err
	}
	data, err := env.Encode()
	if err != nil {
		return nil, err
	}

	receipt, err := c.transport.Publish(ctx, subject, data)
	if err != nil {
		return nil, err
	}
	c.opts.logger.Debug("emitted", "agent", c.name, "subject", subject, "labels", env.Labels)
	return receipt, nil
}

// Listen binds every registered handler to the transport. Streaming
// transports spawn one background reader per subject; handlers run on
// whichever goroutine delivered the message. Re-invoking Listen after
// registering more handlers subscribes everything again; the client
// does not deduplicate.
func (c *Client) Listen(ctx context.Context) error {
	if err := c.ensureAccessToken(ctx, c.opts.accessLeeway); err != nil {
		return err
	}

	handlers := c.registry.Handlers()
	subjects := make([]string, 0, len(handlers))
	for subject, fn := range handlers {
		sub, err := c.transport.Subscribe(ctx, subject, c.deliver(subject, fn))
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.subs = append(c.subs, sub)
		c.mu.Unlock()
		subjects = append(subjects, subject)
	}
	c.opts.logger.Info("listening", "agent", c.name, "subjects", subjects)
	return nil
}

// deliver decodes a transport delivery into an envelope before handing
// it to the user handler, so every backend presents the same shape.
func (c *Client) deliver(subject string, fn Handler) transport.Handler {
	return func(data []byte) {
		env, err := DecodeEnvelope(data)
		if err != nil {
			c.opts.logger.Warn("dropping undecodable delivery", "subject", subject, "error", err)
			return
		}
		fn(env)
	}
}

// DeclareCapabilities advertises the agent's publish/subscribe subject
// sets and metadata to the broker under the current access token.
// Payload schemas configured via WithPayloadSchema are merged into the
// metadata under "schemas".
func (c *Client) DeclareCapabilities(ctx context.Context, publishes, subscribes []string, meta map[string]any) error {
	if c.currentSession() == nil {
		return &SessionError{AgentID: c.name, Err: ErrNoSession}
	}
	if err := c.ensureAccessToken(ctx, c.opts.accessLeeway); err != nil {
		return err
	}

	merged := c.capabilityMeta(meta)
	token := c.currentSession().AccessToken
	if err := c.broker.declareCapabilities(ctx, token, publishes, subscribes, merged); err != nil {
		status, body := statusOf(err)
		return &CapabilityError{
			AgentID:   c.name,
			BrokerURL: c.opts.brokerURL,
			Status:    status,
			Body:      body,
			Err:       err,
		}
	}
	c.opts.logger.Info("capabilities declared",
		"agent", c.name, "publishes", publishes, "subscribes", subscribes)
	return nil
}

// capabilityMeta merges construction-time metadata, reflected payload
// schemas, and per-call metadata (highest precedence).
func (c *Client) capabilityMeta(extra map[string]any) map[string]any {
	merged := make(map[string]any, len(c.opts.capabilityMeta)+len(extra)+1)
	for k, v := range c.opts.capabilityMeta {
		merged[k] = v
	}
	if len(c.opts.schemas) > 0 {
		schemas := make(map[string]*jsonschema.Schema, len(c.opts.schemas))
		for subject, sample := range c.opts.schemas {
			schemas[subject] = jsonschema.Reflect(sample)
		}
		merged["schemas"] = schemas
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}

// Handle binds a handler to a subject, replacing any prior handler for
// it. Registration happens before Listen; the registry itself is not
// synchronized.
func (c *Client) Handle(subject string, fn Handler) {
	c.registry.Register(subject, fn)
}

// On returns a binder for the subject:
//
//	client.On("hello.world")(func(msg *ae.Envelope) { ... })
func (c *Client) On(subject string) func(Handler) {
	return c.registry.On(subject)
}

// Session returns the current session state, or nil before
// registration. The returned state is immutable.
func (c *Client) Session() *session.State {
	return c.currentSession()
}

// ClearSession drops the in-memory session and removes the persisted
// record.
func (c *Client) ClearSession(ctx context.Context) error {
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	if c.store == nil {
		return nil
	}
	return c.store.Clear(ctx)
}

// Close stops every active subscription, persists the session if
// persistence is enabled, and shuts the transport down.
func (c *Client) Close() error {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	state := c.session
	c.mu.Unlock()

	for _, sub := range subs {
		sub.Stop()
	}
	if state != nil {
		c.persistSession(context.Background(), state)
	}
	return c.transport.Close()
}

// setSession atomically replaces the session and pushes the new access
// token into the transport.
func (c *Client) setSession(state *session.State) {
	c.mu.Lock()
	c.session = state
	c.mu.Unlock()
	c.transport.SetCredential(state.AccessToken)
}

func (c *Client) currentSession() *session.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// persistSession saves best-effort: a store failure is logged and
// swallowed because the broker remains the source of truth.
func (c *Client) persistSession(ctx context.Context, state *session.State) {
	if !c.opts.autoPersist || c.store == nil {
		return
	}
	if err := c.store.Save(ctx, state); err != nil {
		c.opts.logger.Error("session persist failed", "agent", c.name, "error", err)
	}
}

func (c *Client) registrationError(op string, err error) error {
	status, body := statusOf(err)
	return &RegistrationError{
		AgentID:   c.name,
		BrokerURL: c.opts.brokerURL,
		Op:        op,
		Status:    status,
		Body:      body,
		Err:       err,
	}
}

// statusOf extracts the HTTP status and body from a broker rejection,
// or zero values for network-level failures.
func statusOf(err error) (int, string) {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status, statusErr.Body
	}
	return 0, ""
}
