package orchestrator

import (
	"errors"
	"fmt"

	"github.com/Cogwheel-Validator/spectra-harvest/harvester/claim"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/lending"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/units"
)

var (
	// ErrNoRouteFound means the provider had no quote for the pair
	ErrNoRouteFound = errors.New("no route found")
	// ErrNoPendingSwaps means the staged set is empty
	ErrNoPendingSwaps = errors.New("no pending swaps")
)

// SwapFailedError is an entry that failed both its primary and fallback attempt.
type SwapFailedError struct {
	TokenID  string
	Primary  error
	Fallback error
}

func (e *SwapFailedError) Error() string {
	return fmt.Sprintf("swap of %s failed: %v", e.TokenID, e.Fallback)
}

// Unwrap exposes the last cause.
func (e *SwapFailedError) Unwrap() error {
	return e.Fallback
}

// ErrorKind is the name of an error class as shown to users.
type ErrorKind string

const (
	KindInvalidAmount  ErrorKind = "InvalidAmount"
	KindDiscovery      ErrorKind = "DiscoveryError"
	KindClaimFailed    ErrorKind = "ClaimFailed"
	KindNoRouteFound   ErrorKind = "NoRouteFound"
	KindSwapFailed     ErrorKind = "SwapFailed"
	KindNoPendingSwaps ErrorKind = "NoPendingSwaps"
	KindUnknown        ErrorKind = "Unknown"
)

// KindOf classifies err. nil has no kind.
func KindOf(err error) ErrorKind {
	var swapErr *SwapFailedError
	var claimErr *claim.FailedError
	var discoveryErr *lending.DiscoveryError

	switch {
	case err == nil:
		return ""
	case errors.As(err, &swapErr):
		return KindSwapFailed
	case errors.As(err, &claimErr):
		return KindClaimFailed
	case errors.As(err, &discoveryErr):
		return KindDiscovery
	case errors.Is(err, ErrNoRouteFound):
		return KindNoRouteFound
	case errors.Is(err, ErrNoPendingSwaps):
		return KindNoPendingSwaps
	case errors.Is(err, units.ErrInvalidAmount):
		return KindInvalidAmount
	default:
		return KindUnknown
	}
}
