// Package transport provides the delivery backends an agent client can
// publish and subscribe through: an in-process bus, HTTP publish with
// SSE subscription streams, a managed pub/sub service, and a Kafka log
// broker.
//
// Transports deal only in the serialized form of signed envelopes. The
// client layer signs before publishing and decodes before invoking user
// handlers, so every backend presents the same contract.
package transport
