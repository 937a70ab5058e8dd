// Package claim submits reward claims and hands the claimed amounts over to
// the swap stage.
package claim

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Cogwheel-Validator/spectra-harvest/harvester/models"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/units"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "claim").Logger()
}

// SetLogger replaces the package logger.
func SetLogger(l zerolog.Logger) {
	log = l.With().Str("component", "claim").Logger()
}

var tracer = otel.Tracer("github.com/Cogwheel-Validator/spectra-harvest/harvester/claim")

// FailedError is a rejected or errored claim. No staged set exists after it.
type FailedError struct {
	Err error
}

func (e *FailedError) Error() string {
	return "claim failed: " + e.Err.Error()
}

func (e *FailedError) Unwrap() error {
	return e.Err
}

// RewardSource reads the currently claimable rewards.
type RewardSource interface {
	Fetch(ctx context.Context, account string) (models.RewardSnapshot, error)
}

// TransactionBuilder builds the claim transaction for a position.
type TransactionBuilder interface {
	BuildClaimTransaction(ctx context.Context, positionID, account string) (models.Transaction, error)
}

// Signer signs and submits a transaction, returning its digest.
type Signer interface {
	SignAndExecute(ctx context.Context, tx models.Transaction) (string, error)
}

// Result is what a successful claim hands to the swap stage.
type Result struct {
	Digest   string
	Snapshot models.ClaimSnapshot
	Staged   models.StagedSwapSet
	UsdTotal string
}

// Executor runs the claim protocol.
type Executor struct {
	rewards RewardSource
	builder TransactionBuilder
	signer  Signer
	now     func() time.Time
}

// NewExecutor creates a claim executor.
func NewExecutor(rewards RewardSource, builder TransactionBuilder, signer Signer) *Executor {
	return &Executor{rewards: rewards, builder: builder, signer: signer, now: time.Now}
}

/*
Claim claims every reward of positionID for account.

The rewards are re-read right before building the transaction, and that fresh
read becomes the ClaimSnapshot once the claim is submitted. The staged set
keeps only the strictly positive lines, in snapshot order.

Parameters:
  - ctx: cancels the lookups and the submission
  - positionID: lending position capability id
  - account: the claiming account

Returns:
  - *Result: digest, frozen snapshot and staged swap set
  - error: *FailedError for anything that stops the claim
*/
func (e *Executor) Claim(ctx context.Context, positionID, account string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "claim")
	defer span.End()
	span.SetAttributes(attribute.String("account", account), attribute.String("position", positionID))

	fail := func(err error) (*Result, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		claimsTotal.WithLabelValues("failed").Inc()
		log.Error().Err(err).Str("account", account).Msg("Claim failed")
		return nil, &FailedError{Err: err}
	}

	if positionID == "" {
		return fail(fmt.Errorf("account %s has no lending position", account))
	}

	snapshot, err := e.rewards.Fetch(ctx, account)
	if err != nil {
		return fail(fmt.Errorf("reading rewards: %w", err))
	}
	takenAt := e.now()

	tx, err := e.builder.BuildClaimTransaction(ctx, positionID, account)
	if err != nil {
		return fail(err)
	}

	digest, err := e.signer.SignAndExecute(ctx, tx)
	if err != nil {
		return fail(err)
	}

	frozen := models.NewClaimSnapshot(digest, takenAt, snapshot.Lines)
	staged := StageSnapshot(frozen)

	claimsTotal.WithLabelValues("submitted").Inc()
	span.SetAttributes(attribute.String("digest", digest), attribute.Int("staged", len(staged)))
	log.Info().
		Str("account", account).
		Str("digest", digest).
		Int("lines", len(snapshot.Lines)).
		Int("staged", len(staged)).
		Msg("Claim submitted")

	return &Result{Digest: digest, Snapshot: frozen, Staged: staged, UsdTotal: snapshot.UsdTotal}, nil
}

// StageSnapshot derives the staged swap set from a claim snapshot, dropping
// lines whose amount is not strictly positive.
func StageSnapshot(snapshot models.ClaimSnapshot) models.StagedSwapSet {
	lines := snapshot.Lines()
	staged := make(models.StagedSwapSet, 0, len(lines))
	for _, l := range lines {
		if !units.IsPositive(l.DecimalAmount) {
			continue
		}
		staged = append(staged, models.StagedEntry{TokenID: l.TokenID, DecimalAmount: l.DecimalAmount})
	}
	return staged
}
