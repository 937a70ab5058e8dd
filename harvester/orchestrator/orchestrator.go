// Package orchestrator drives staged reward amounts through a swap router:
// quote, build, sign and submit, with exactly one fallback retry per entry.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Cogwheel-Validator/spectra-harvest/harvester/models"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/notify"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/router/brokers"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/sui"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/units"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "orchestrator").Logger()
}

// SetLogger replaces the package logger, keeping the component field.
func SetLogger(l zerolog.Logger) {
	log = l.With().Str("component", "orchestrator").Logger()
}

var tracer = otel.Tracer("github.com/Cogwheel-Validator/spectra-harvest/harvester/orchestrator")

// DefaultDecimals is used when a token's metadata can't be read.
const DefaultDecimals = 9

// FallbackSlippage replaces the batch slippage on the retry attempt.
var FallbackSlippage = decimal.RequireFromString("0.01")

// MetadataService reports token precision.
type MetadataService interface {
	GetDecimals(ctx context.Context, coinType string) (int, error)
}

// Signer signs and submits one transaction and returns once it has an outcome.
type Signer interface {
	SignAndExecute(ctx context.Context, tx models.Transaction) (string, error)
}

// BatchConfig is the per run configuration.
type BatchConfig struct {
	Provider    brokers.Provider
	TargetToken string
	// Slippage is a fraction, 0.005 is 0.5%
	Slippage decimal.Decimal
}

// Validate checks the config before any entry is touched.
func (c BatchConfig) Validate() error {
	if c.TargetToken == "" {
		return errors.New("target token is required")
	}
	if c.Slippage.IsNegative() || c.Slippage.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("slippage must be in [0, 1), got %s", c.Slippage)
	}
	return nil
}

// Orchestrator runs staged swap batches. It holds no batch state between runs,
// the caller owns the staged set and replaces it with the returned remainder.
type Orchestrator struct {
	routers     map[brokers.Provider]brokers.SwapRouter
	metadata    MetadataService
	signer      Signer
	notifier    notify.Notifier
	explorerURL func(digest string) string
}

// New creates an orchestrator over the given routers.
func New(routers []brokers.SwapRouter, metadata MetadataService, signer Signer, notifier notify.Notifier) *Orchestrator {
	byProvider := make(map[brokers.Provider]brokers.SwapRouter, len(routers))
	for _, r := range routers {
		byProvider[r.GetBrokerType()] = r
	}
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &Orchestrator{
		routers:  byProvider,
		metadata: metadata,
		signer:   signer,
		notifier: notifier,
	}
}

// WithExplorer makes success messages carry a link built from the digest.
func (o *Orchestrator) WithExplorer(fn func(digest string) string) *Orchestrator {
	o.explorerURL = fn
	return o
}

// Router returns the router registered for provider.
func (o *Orchestrator) Router(provider brokers.Provider) (brokers.SwapRouter, error) {
	r, ok := o.routers[provider]
	if !ok {
		return nil, fmt.Errorf("swap provider %q is not configured", provider)
	}
	return r, nil
}

// Providers lists the configured providers.
func (o *Orchestrator) Providers() []brokers.Provider {
	out := make([]brokers.Provider, 0, len(o.routers))
	for _, p := range []brokers.Provider{brokers.ProviderSevenK, brokers.ProviderCetus} {
		if _, ok := o.routers[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// batch is the state of one run
type batch struct {
	id       string
	account  string
	cfg      BatchConfig
	router   brokers.SwapRouter
	decimals map[string]int
	summary  models.BatchSummary
}

/*
Run swaps every staged entry into cfg.TargetToken, one entry at a time in order.

Entries that succeed (first try or fallback) leave the set, entries whose raw
amount is zero are dropped, everything else is returned unchanged in
summary.Remaining. Cancelling ctx stops the run between entries, the entry in
flight always finishes and unprocessed entries stay in Remaining.

Parameters:
  - ctx: cancels the run between entries
  - account: the address swaps are built for
  - staged: the current staged swap set, it is not modified
  - cfg: provider, target token and slippage for this run

Returns:
  - models.BatchSummary: counts, per entry outcomes and the remaining set
  - error: ErrNoPendingSwaps for an empty set, or a config error; per entry
    failures are never returned here
*/
func (o *Orchestrator) Run(ctx context.Context, account string, staged models.StagedSwapSet, cfg BatchConfig) (models.BatchSummary, error) {
	if len(staged) == 0 {
		o.notifier.Info("No pending swaps")
		return models.BatchSummary{Remaining: models.StagedSwapSet{}}, ErrNoPendingSwaps
	}
	if err := cfg.Validate(); err != nil {
		return models.BatchSummary{}, err
	}
	router, err := o.Router(cfg.Provider)
	if err != nil {
		return models.BatchSummary{}, err
	}

	b := &batch{
		id:       uuid.NewString(),
		account:  account,
		cfg:      cfg,
		router:   router,
		decimals: make(map[string]int),
		summary: models.BatchSummary{
			Provider:  string(cfg.Provider),
			Outcomes:  make([]models.SwapAttemptOutcome, 0, len(staged)),
			Remaining: models.StagedSwapSet{},
		},
	}
	b.summary.RunID = b.id

	ctx, span := tracer.Start(ctx, "swap-batch")
	defer span.End()
	span.SetAttributes(
		attribute.String("run_id", b.id),
		attribute.String("provider", string(cfg.Provider)),
		attribute.Int("entries", len(staged)),
	)

	log.Info().
		Str("run", b.id).
		Str("provider", string(cfg.Provider)).
		Str("target", cfg.TargetToken).
		Str("slippage", cfg.Slippage.String()).
		Int("entries", len(staged)).
		Msg("Swap batch started")

	for i, entry := range staged {
		if ctx.Err() != nil {
			b.summary.Cancelled = true
			b.summary.Remaining = append(b.summary.Remaining, staged[i:]...)
			break
		}
		// the entry in flight is not interrupted, cancellation applies between entries
		o.processEntry(context.WithoutCancel(ctx), b, entry)
	}

	o.report(b)
	span.SetAttributes(
		attribute.Int("success", b.summary.SuccessCount),
		attribute.Int("remaining", len(b.summary.Remaining)),
	)
	if b.summary.HasRemaining() {
		span.SetStatus(codes.Error, "entries remain staged")
	}
	return b.summary, nil
}

// processEntry drives one entry to success, drop or retention
func (o *Orchestrator) processEntry(ctx context.Context, b *batch, entry models.StagedEntry) {
	ctx, span := tracer.Start(ctx, "swap-entry")
	defer span.End()
	span.SetAttributes(attribute.String("token", entry.TokenID))

	provider := string(b.cfg.Provider)
	symbol := units.SymbolFromType(entry.TokenID)

	// rewards paid in the target token need no swap
	if sui.SameCoinType(entry.TokenID, b.cfg.TargetToken) {
		b.summary.AlreadyTarget++
		swapEntries.WithLabelValues(provider, "already_target").Inc()
		log.Debug().Str("token", entry.TokenID).Str("amount", entry.DecimalAmount).Msg("Entry is already the target token, unstaging")
		return
	}

	decimals := o.decimalsFor(ctx, b, entry.TokenID)

	raw, err := units.ToRawUnitsInt(entry.DecimalAmount, decimals)
	if err != nil {
		o.keep(b, entry, err)
		swapEntries.WithLabelValues(provider, "invalid").Inc()
		notify.Errorf(o.notifier, "Invalid amount %q for %s", entry.DecimalAmount, symbol)
		return
	}
	if raw.Sign() <= 0 {
		b.summary.Dropped++
		swapEntries.WithLabelValues(provider, "dropped").Inc()
		log.Debug().Str("token", entry.TokenID).Str("amount", entry.DecimalAmount).Msg("Amount rounds to zero, dropping entry")
		return
	}
	b.summary.TotalAttempted++

	digest, primaryErr := o.attempt(ctx, b, entry.TokenID, raw, b.cfg.Slippage, "primary")
	if primaryErr == nil {
		o.succeed(b, entry, digest, false)
		return
	}
	if errors.Is(primaryErr, ErrNoRouteFound) {
		o.keep(b, entry, primaryErr)
		swapEntries.WithLabelValues(provider, "no_route").Inc()
		notify.Errorf(o.notifier, "No route for %s", symbol)
		return
	}

	log.Warn().Err(primaryErr).Str("token", entry.TokenID).Msg("Primary swap failed, retrying with fallback")

	fallbackAmount := new(big.Int).Sub(raw, big.NewInt(1))
	var fallbackErr error
	if fallbackAmount.Sign() <= 0 {
		fallbackErr = fmt.Errorf("amount %s is too small for a fallback attempt: %w", raw, primaryErr)
	} else {
		digest, fallbackErr = o.attempt(ctx, b, entry.TokenID, fallbackAmount, FallbackSlippage, "fallback")
	}
	if fallbackErr == nil {
		o.succeed(b, entry, digest, true)
		return
	}

	swapErr := &SwapFailedError{TokenID: entry.TokenID, Primary: primaryErr, Fallback: fallbackErr}
	o.keep(b, entry, swapErr)
	swapEntries.WithLabelValues(provider, "failed").Inc()
	span.RecordError(swapErr)
	notify.Errorf(o.notifier, "Swap failed for %s: %v", symbol, fallbackErr)
}

// attempt is one quote, build, sign round
func (o *Orchestrator) attempt(
	ctx context.Context,
	b *batch,
	tokenID string,
	amount *big.Int,
	slippage decimal.Decimal,
	label string,
) (string, error) {
	provider := string(b.cfg.Provider)
	result := "failed"
	defer func() {
		swapAttempts.WithLabelValues(provider, label, result).Inc()
	}()

	plan, err := b.router.Quote(ctx, tokenID, b.cfg.TargetToken, amount.String())
	if err != nil {
		return "", fmt.Errorf("quote: %w", err)
	}
	if plan == nil {
		result = "no_route"
		return "", ErrNoRouteFound
	}

	tx, err := b.router.BuildSwapTransaction(ctx, plan, b.account, slippage)
	if err != nil {
		return "", fmt.Errorf("build: %w", err)
	}

	digest, err := o.signer.SignAndExecute(ctx, tx)
	if err != nil {
		return "", fmt.Errorf("submit: %w", err)
	}

	result = "success"
	log.Info().
		Str("run", b.id).
		Str("token", tokenID).
		Str("attempt", label).
		Str("amountIn", amount.String()).
		Str("expectedOut", plan.AmountOut).
		Str("digest", digest).
		Msg("Swap submitted")
	return digest, nil
}

func (o *Orchestrator) succeed(b *batch, entry models.StagedEntry, digest string, fallback bool) {
	b.summary.SuccessCount++
	b.summary.Outcomes = append(b.summary.Outcomes, models.SwapAttemptOutcome{
		TokenID:  entry.TokenID,
		Success:  true,
		TxDigest: digest,
		Fallback: fallback,
	})
	swapEntries.WithLabelValues(string(b.cfg.Provider), "success").Inc()

	msg := fmt.Sprintf("Swapped %s: %s", units.SymbolFromType(entry.TokenID), digest)
	if o.explorerURL != nil {
		msg += " " + o.explorerURL(digest)
	}
	o.notifier.Success(msg)
}

// keep records a failure and puts the entry back unchanged
func (o *Orchestrator) keep(b *batch, entry models.StagedEntry, err error) {
	b.summary.Remaining = append(b.summary.Remaining, entry)
	b.summary.Outcomes = append(b.summary.Outcomes, models.SwapAttemptOutcome{
		TokenID: entry.TokenID,
		Error:   string(KindOf(err)),
		Reason:  err.Error(),
	})
}

// decimalsFor reads precision once per token per run
func (o *Orchestrator) decimalsFor(ctx context.Context, b *batch, tokenID string) int {
	if d, ok := b.decimals[tokenID]; ok {
		return d
	}
	d := DefaultDecimals
	if o.metadata != nil {
		got, err := o.metadata.GetDecimals(ctx, tokenID)
		if err != nil {
			log.Warn().Err(err).Str("token", tokenID).Int("default", DefaultDecimals).Msg("Decimals lookup failed, using default")
		} else {
			d = got
		}
	}
	b.decimals[tokenID] = d
	return d
}

func (o *Orchestrator) report(b *batch) {
	s := b.summary
	log.Info().
		Str("run", b.id).
		Int("success", s.SuccessCount).
		Int("attempted", s.TotalAttempted).
		Int("dropped", s.Dropped).
		Int("alreadyTarget", s.AlreadyTarget).
		Int("remaining", len(s.Remaining)).
		Bool("cancelled", s.Cancelled).
		Msg("Swap batch finished")

	if s.Cancelled {
		notify.Infof(o.notifier, "Swap batch stopped, %d left staged", len(s.Remaining))
		if s.TotalAttempted == 0 {
			return
		}
	}
	if s.TotalAttempted == 0 && !s.HasRemaining() {
		o.notifier.Info("Nothing to swap, staged amounts are zero or already the target token")
		return
	}

	msg := fmt.Sprintf("Swapped %d/%d reward tokens", s.SuccessCount, s.TotalAttempted)
	switch {
	case !s.HasRemaining():
		o.notifier.Success(msg)
	case s.SuccessCount == 0:
		notify.Errorf(o.notifier, "%s, %d still staged", msg, len(s.Remaining))
	default:
		notify.Infof(o.notifier, "%s, %d still staged", msg, len(s.Remaining))
	}
}
