// Package infra contains technical adapters: ranking sources, the key
// store, the Redis limiter, the responder HTTP client, metrics sinks and
// the NATS event publisher. These packages should depend only on the
// interfaces defined in the core packages.
package infra
