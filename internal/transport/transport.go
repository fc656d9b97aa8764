// Package transport defines the interface for the daemon's network listeners.
//
// The HTTP transport carries the service contracts, the session API and the
// state stream; the gRPC transport carries the standard health service. main
// starts every enabled transport with the same lifecycle.
package transport

import "context"

// Transport is the interface that every transport adapter must implement.
type Transport interface {
	// Name returns the transport identifier (e.g., "grpc", "http").
	Name() string

	// Listen starts serving. It blocks until the context is cancelled.
	Listen(ctx context.Context) error

	// Close gracefully shuts down the transport, draining in-flight work.
	Close() error
}
