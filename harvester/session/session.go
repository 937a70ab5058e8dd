// Package session holds the claim-and-swap state of one connected account
// and sequences discovery, claims and swap batches for it.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/Cogwheel-Validator/spectra-harvest/harvester/claim"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/models"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/notify"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/orchestrator"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/router/brokers"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/sui"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/units"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "session").Logger()
}

// SetLogger replaces the package logger.
func SetLogger(l zerolog.Logger) {
	log = l.With().Str("component", "session").Logger()
}

// ErrBusy is returned when a claim or swap batch is already running.
var ErrBusy = errors.New("a claim or swap is already in progress")

type Discovery interface {
	Resolve(ctx context.Context, account string) (*string, error)
}

type RewardSource interface {
	Fetch(ctx context.Context, account string) (models.RewardSnapshot, error)
}

type Claimer interface {
	Claim(ctx context.Context, positionID, account string) (*claim.Result, error)
}

type Swapper interface {
	Run(ctx context.Context, account string, staged models.StagedSwapSet, cfg orchestrator.BatchConfig) (models.BatchSummary, error)
	Router(provider brokers.Provider) (brokers.SwapRouter, error)
}

// Confirmer waits until a transaction is visible on chain.
type Confirmer interface {
	WaitForTransaction(ctx context.Context, digest string) (*sui.TransactionResponse, error)
}

// Deps are the collaborators of a session. Confirmer and Notifier are optional.
type Deps struct {
	Discovery Discovery
	Rewards   RewardSource
	Claimer   Claimer
	Swapper   Swapper
	Confirmer Confirmer
	Notifier  notify.Notifier
}

// Config is the per session swap configuration.
type Config struct {
	Provider    brokers.Provider
	TargetToken string
	Slippage    decimal.Decimal
	// AutoSwap runs the staged set right after a successful claim
	AutoSwap bool
}

// ClaimReport is returned by Claim.
type ClaimReport struct {
	Digest      string               `json:"digest"`
	ExplorerURL string               `json:"explorer_url"`
	Staged      models.StagedSwapSet `json:"staged"`
	Summary     *models.BatchSummary `json:"summary,omitempty"`
	Confirmed   bool                 `json:"confirmed"`
}

// Session is the orchestration session of one account on one network.
// The staged swap set and claim snapshot belong to it alone.
type Session struct {
	account string
	network sui.Network
	deps    Deps
	cfg     Config

	mu         sync.Mutex
	running    bool
	positionID *string
	rewards    models.RewardSnapshot
	selection  brokers.Provider
	staged     models.StagedSwapSet
	lastClaim  *models.ClaimSnapshot
}

// New creates a session. Nothing is fetched until Connect.
func New(account string, network sui.Network, deps Deps, cfg Config) *Session {
	if deps.Notifier == nil {
		deps.Notifier = notify.Discard{}
	}
	selection := cfg.Provider
	if selection == "" {
		selection = brokers.ProviderSevenK
	}
	return &Session{
		account:   account,
		network:   network,
		deps:      deps,
		cfg:       cfg,
		rewards:   models.EmptyRewardSnapshot(),
		selection: selection,
	}
}

func (s *Session) Account() string {
	return s.account
}

func (s *Session) Network() sui.Network {
	return s.network
}

/*
Connect runs position discovery and the reward snapshot concurrently.

A failed lookup is reported and leaves the previous value in place, the other
lookup still completes.

Returns:
  - error: the joined lookup failures, nil when both succeeded
*/
func (s *Session) Connect(ctx context.Context) error {
	var (
		g          errgroup.Group
		positionID *string
		snapshot   models.RewardSnapshot
		posErr     error
		rewardsErr error
	)

	g.Go(func() error {
		positionID, posErr = s.deps.Discovery.Resolve(ctx, s.account)
		return nil
	})
	g.Go(func() error {
		snapshot, rewardsErr = s.deps.Rewards.Fetch(ctx, s.account)
		return nil
	})
	_ = g.Wait()

	s.mu.Lock()
	if posErr == nil {
		s.positionID = positionID
	}
	if rewardsErr == nil {
		s.rewards = snapshot
	}
	s.mu.Unlock()

	if posErr != nil {
		notify.Errorf(s.deps.Notifier, "Position lookup failed: %v", posErr)
	} else if positionID == nil {
		s.deps.Notifier.Info("No lending position for this account")
	}
	if rewardsErr != nil {
		notify.Errorf(s.deps.Notifier, "Rewards lookup failed: %v", rewardsErr)
	}

	log.Info().
		Str("account", s.account).
		Str("network", string(s.network)).
		Bool("hasPosition", positionID != nil).
		Int("rewardLines", len(snapshot.Lines)).
		Msg("Session connected")

	return errors.Join(posErr, rewardsErr)
}

// Position returns the resolved position id, nil when the account has none.
func (s *Session) Position() *string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.positionID == nil {
		return nil
	}
	id := *s.positionID
	return &id
}

// Rewards returns the last fetched reward snapshot.
func (s *Session) Rewards() models.RewardSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.rewards
	out.Lines = append([]models.RewardLine{}, s.rewards.Lines...)
	return out
}

// RefreshRewards fetches a new reward snapshot.
func (s *Session) RefreshRewards(ctx context.Context) (models.RewardSnapshot, error) {
	snapshot, err := s.deps.Rewards.Fetch(ctx, s.account)
	if err != nil {
		notify.Errorf(s.deps.Notifier, "Rewards lookup failed: %v", err)
		return s.Rewards(), err
	}
	s.mu.Lock()
	s.rewards = snapshot
	s.mu.Unlock()
	return snapshot, nil
}

// Staged returns a copy of the staged swap set, nil when nothing is staged.
func (s *Session) Staged() models.StagedSwapSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.staged.Clone()
}

// Stage appends entries to the staged swap set, for rewards that were claimed
// outside this session. Amounts must be strictly positive decimals.
func (s *Session) Stage(entries models.StagedSwapSet) error {
	for _, e := range entries {
		if e.TokenID == "" {
			return fmt.Errorf("staged entry without token")
		}
		if !units.IsPositive(e.DecimalAmount) {
			return fmt.Errorf("%w: %q for %s", units.ErrInvalidAmount, e.DecimalAmount, e.TokenID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrBusy
	}
	s.staged = append(s.staged.Clone(), entries...)
	return nil
}

// LastClaim returns the snapshot of the last successful claim.
func (s *Session) LastClaim() *models.ClaimSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastClaim
}

func (s *Session) Selection() brokers.Provider {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection
}

// SelectRouter changes the provider used by following swap batches.
// It is refused while a batch is running.
func (s *Session) SelectRouter(provider brokers.Provider) error {
	if _, err := s.deps.Swapper.Router(provider); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrBusy
	}
	s.selection = provider
	notify.Infof(s.deps.Notifier, "Swap provider set to %s", provider)
	return nil
}

func (s *Session) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrBusy
	}
	s.running = true
	return nil
}

func (s *Session) end() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

/*
Claim claims the rewards of the session's position.

On success the claimed lines are appended to the staged swap set. In auto swap
mode the staged set is swapped right away, after waiting for the claim to be
confirmed when the selected router needs it.

Returns:
  - *ClaimReport: digest, explorer link, staged set and the batch summary when
    an auto swap ran
  - error: *claim.FailedError when the claim did not go through, ErrBusy
*/
func (s *Session) Claim(ctx context.Context) (*ClaimReport, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.end()

	positionID := ""
	if p := s.Position(); p != nil {
		positionID = *p
	}

	res, err := s.deps.Claimer.Claim(ctx, positionID, s.account)
	if err != nil {
		var failed *claim.FailedError
		if errors.As(err, &failed) {
			notify.Errorf(s.deps.Notifier, "Claim failed: %v", failed.Err)
		} else {
			notify.Errorf(s.deps.Notifier, "Claim failed: %v", err)
		}
		return nil, err
	}

	report := &ClaimReport{
		Digest:      res.Digest,
		ExplorerURL: sui.ExplorerTxURL(res.Digest, s.network),
	}

	s.mu.Lock()
	snapshot := res.Snapshot
	s.lastClaim = &snapshot
	if len(res.Staged) > 0 {
		s.staged = append(s.staged.Clone(), res.Staged...)
	}
	report.Staged = s.staged.Clone()
	selection := s.selection
	s.mu.Unlock()

	notify.Successf(s.deps.Notifier, "Claim submitted: %s %s", res.Digest, report.ExplorerURL)

	if !s.cfg.AutoSwap || len(report.Staged) == 0 {
		return report, nil
	}

	router, err := s.deps.Swapper.Router(selection)
	if err != nil {
		notify.Errorf(s.deps.Notifier, "Auto swap skipped: %v", err)
		return report, nil
	}
	if router.WaitsForClaimConfirmation() && s.deps.Confirmer != nil {
		if _, err := s.deps.Confirmer.WaitForTransaction(ctx, res.Digest); err != nil {
			notify.Errorf(s.deps.Notifier, "Claim not confirmed, swap later: %v", err)
			return report, nil
		}
		report.Confirmed = true
	}

	summary, err := s.runSwap(ctx)
	if err == nil {
		report.Summary = &summary
		report.Staged = s.Staged()
	}
	return report, nil
}

// SwapPending runs one swap batch over the staged set with the current
// router selection. The staged set is replaced by what remains.
func (s *Session) SwapPending(ctx context.Context) (models.BatchSummary, error) {
	if err := s.begin(); err != nil {
		return models.BatchSummary{}, err
	}
	defer s.end()
	return s.runSwap(ctx)
}

func (s *Session) runSwap(ctx context.Context) (models.BatchSummary, error) {
	s.mu.Lock()
	staged := s.staged.Clone()
	cfg := orchestrator.BatchConfig{
		Provider:    s.selection,
		TargetToken: s.cfg.TargetToken,
		Slippage:    s.cfg.Slippage,
	}
	s.mu.Unlock()

	summary, err := s.deps.Swapper.Run(ctx, s.account, staged, cfg)
	if err != nil {
		if !errors.Is(err, orchestrator.ErrNoPendingSwaps) {
			notify.Errorf(s.deps.Notifier, "Swap not started: %v", err)
		}
		return summary, err
	}

	s.mu.Lock()
	if len(summary.Remaining) == 0 {
		s.staged = nil
	} else {
		s.staged = summary.Remaining.Clone()
	}
	s.mu.Unlock()

	return summary, nil
}
