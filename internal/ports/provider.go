package ports

import "github.com/mikey/ai-cost-optimizer/internal/core"

// Provider is an upstream AI client selected by configuration
type Provider interface {
	core.Upstream

	// Name identifies the provider in logs
	Name() string

	// Close releases any connections held by the client
	Close() error
}
