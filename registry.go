package ae

// Handler consumes a delivered envelope. Handlers run on whichever
// goroutine delivered the message (the publisher's for the in-process
// transport, a background stream reader otherwise) and must be safe to
// run concurrently with handlers for other subjects.
type Handler func(msg *Envelope)

// Registry maps subject names to handlers. Registering a subject twice
// replaces the prior handler. Agents configure their handlers once at
// startup, so last write wins.
//
// Subjects may be doublestar glob patterns ("jobs.*"); pattern matching
// is applied by transports that dispatch locally.
//
// Registry has no locking of its own: registration happens before
// Listen is called.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds a handler to a subject, replacing any prior handler.
func (r *Registry) Register(subject string, fn Handler) {
	r.handlers[subject] = fn
}

// On returns a binder for the subject, the registration form mirroring
// decorator-style usage:
//
//	client.On("hello.world")(func(msg *ae.Envelope) { ... })
func (r *Registry) On(subject string) func(Handler) {
	return func(fn Handler) {
		r.Register(subject, fn)
	}
}

// Handlers returns a copy of the current subject-to-handler mapping.
func (r *Registry) Handlers() map[string]Handler {
	out := make(map[string]Handler, len(r.handlers))
	for subject, fn := range r.handlers {
		out[subject] = fn
	}
	return out
}

// Len reports the number of registered subjects.
func (r *Registry) Len() int {
	return len(r.handlers)
}
