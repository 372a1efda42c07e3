package ports

import "context"

// Server is a network transport in front of the engine
type Server interface {
	// Start begins serving and returns once the listener is up
	Start() error

	// Stop drains in-flight work until ctx expires
	Stop(ctx context.Context) error
}
