package ports

import "github.com/mikey/ai-cost-optimizer/internal/core"

// ManagedCache is a cache repository owning background work that must be stopped on shutdown
type ManagedCache interface {
	core.CacheRepository

	// Stop ends background cleanup. Safe to call more than once.
	Stop()
}
