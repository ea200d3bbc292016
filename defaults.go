package ae

import "time"

// Defaults applied by resolveOptions when the caller leaves a field unset.
const (
	// DefaultBrokerURL is the ABI base URL used when none is configured.
	DefaultBrokerURL = "http://localhost:8080"

	// DefaultRequestTimeout bounds every outbound broker request
	// (challenge, verify, refresh, capability declaration). Streaming
	// subscription reads are long-lived and exempt.
	DefaultRequestTimeout = 10 * time.Second

	// DefaultAccessLeeway is how close to expiry an access token may get
	// before emit/listen refresh it (or fail, in manual mode).
	DefaultAccessLeeway = 5 * time.Second

	// refreshLeeway pads refresh-token expiry checks during resume so a
	// token that expires mid-flight falls back to full registration
	// instead of a doomed refresh.
	refreshLeeway = 5 * time.Second
)
