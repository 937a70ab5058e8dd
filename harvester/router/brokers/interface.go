// Package brokers defines the swap routing capability shared by every provider
// the harvester can swap through. Each provider (the 7k aggregator, Cetus
// pools) implements SwapRouter with its own request shapes behind it.
package brokers

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Cogwheel-Validator/spectra-harvest/harvester/models"
)

// Provider names a routing provider the user can select.
type Provider string

const (
	// ProviderSevenK is the 7k aggregator (quote + build)
	ProviderSevenK Provider = "7k"
	// ProviderCetus is Cetus CLMM (pool discovery + preview + build)
	ProviderCetus Provider = "cetus"
)

// ParseProvider accepts the provider names used in config and the API.
func ParseProvider(s string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "7k", "sevenk", "a":
		return ProviderSevenK, nil
	case "cetus", "b":
		return ProviderCetus, nil
	default:
		return "", fmt.Errorf("unknown swap provider %q", s)
	}
}

// SwapRouter is the capability the orchestrator drives. It must not depend on
// anything provider specific beyond this interface.
type SwapRouter interface {
	// Quote prices converting rawAmountIn of tokenIn into tokenOut.
	// A nil plan with a nil error means there is no route for the pair.
	Quote(ctx context.Context, tokenIn, tokenOut, rawAmountIn string) (*QuotePlan, error)

	// BuildSwapTransaction turns a plan into an unsigned transaction for account.
	// slippage is a fraction, 0.01 is 1%. It does not submit anything.
	BuildSwapTransaction(ctx context.Context, plan *QuotePlan, account string, slippage decimal.Decimal) (models.Transaction, error)

	// GetBrokerType returns the provider identifier
	GetBrokerType() Provider

	// WaitsForClaimConfirmation tells the session to wait for the claim
	// transaction to be confirmed before the first quote.
	WaitsForClaimConfirmation() bool

	// Close cleans up resources used by the router
	Close()
}

// QuotePlan is the result of a routing query. It is only valid for the token
// pair and raw input amount it was requested for and is never reused.
type QuotePlan struct {
	TokenIn  string
	TokenOut string
	AmountIn string
	// AmountOut is the expected raw output, empty when the provider gave no estimate
	AmountOut   string
	PriceImpact string
	// RouteData is provider specific and opaque to the orchestrator
	RouteData RouteData
}

// RouteData is provider specific routing metadata carried from quote to build.
type RouteData interface {
	// GetSwapVenueName returns the venue identifier (e.g., "cetus-clmm")
	GetSwapVenueName() string
}
