package tokens

import (
	"context"
	"fmt"
)

// DecimalsSource answers decimals for coins outside the registry, usually the
// Sui RPC client.
type DecimalsSource interface {
	GetDecimals(ctx context.Context, coinType string) (int, error)
}

// Metadata serves decimals from the registry first and only asks the chain
// for coins it doesn't know.
type Metadata struct {
	registry *Registry
	fallback DecimalsSource
}

// NewMetadata combines a registry with a chain lookup. Either may be nil.
func NewMetadata(registry *Registry, fallback DecimalsSource) *Metadata {
	return &Metadata{registry: registry, fallback: fallback}
}

// GetDecimals implements the orchestrator metadata service.
func (m *Metadata) GetDecimals(ctx context.Context, coinType string) (int, error) {
	if m.registry != nil {
		if t, ok := m.registry.Lookup(coinType); ok {
			return t.Decimals, nil
		}
	}
	if m.fallback == nil {
		return 0, fmt.Errorf("no metadata source for %s", coinType)
	}
	return m.fallback.GetDecimals(ctx, coinType)
}
