package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/cenkalti/backoff/v5"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Cogwheel-Validator/spectra-harvest/harvester/models"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/orchestrator"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/rpc"
)

var swapAfterClaim bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the harvester API server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "Print the address of the configured key",
	Args:  cobra.NoArgs,
	RunE:  runAddress,
}

var positionCmd = &cobra.Command{
	Use:   "position",
	Short: "Show the lending position of the account",
	Args:  cobra.NoArgs,
	RunE:  runPosition,
}

var rewardsCmd = &cobra.Command{
	Use:   "rewards",
	Short: "Show the claimable rewards of the account",
	Args:  cobra.NoArgs,
	RunE:  runRewards,
}

var claimCmd = &cobra.Command{
	Use:   "claim",
	Short: "Claim all rewards, optionally swapping them right away",
	Args:  cobra.NoArgs,
	RunE:  runClaim,
}

var swapCmd = &cobra.Command{
	Use:   "swap TOKEN=AMOUNT...",
	Short: "Swap the given reward amounts into the target token",
	Long: `Stages the given amounts and runs one swap batch over them. TOKEN is a
symbol from the token registry or a full coin type, AMOUNT is a decimal amount
in whole tokens.

Example:
  harvester swap USDC=1.5 0x2::sui::SUI=3`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSwap,
}

func init() {
	claimCmd.Flags().BoolVar(&swapAfterClaim, "swap", false, "swap the claimed rewards right after the claim")
}

// withApp loads config, builds the app and hands it a context cancelled on SIGINT/SIGTERM
func withApp(console bool, fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if swapAfterClaim {
		cfg.AutoSwap = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, console)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func startSpinner(suffix string) *spinner.Spinner {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " " + suffix
	s.Start()
	return s
}

func runServe(cmd *cobra.Command, args []string) error {
	return withApp(false, func(ctx context.Context, a *app) error {
		var connected atomic.Bool
		go connectWithRetry(ctx, a, &connected)

		ready := func(ctx context.Context) error {
			if !connected.Load() {
				return errors.New("session is not connected yet")
			}
			return nil
		}

		server, err := rpc.NewServer(ctx, buildServerConfig(a.cfg), rpc.NewHarvesterServer(a.session, a.feed), ready)
		if err != nil {
			return fmt.Errorf("failed to create RPC server: %w", err)
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start()
		}()

		select {
		case <-ctx.Done():
			log.Info().Msg("Received shutdown signal")
		case err := <-errCh:
			if err != nil {
				log.Error().Err(err).Msg("Server error")
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
}

// connectWithRetry keeps trying the initial discovery until it fully succeeds
func connectWithRetry(ctx context.Context, a *app, connected *atomic.Bool) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 2 * time.Second
	policy.MaxInterval = time.Minute

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, a.session.Connect(ctx)
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn().Err(err).Dur("retryIn", next).Msg("Session connect failed")
		}),
	)
	if err != nil {
		return
	}
	connected.Store(true)
}

func runAddress(cmd *cobra.Command, args []string) error {
	return withApp(true, func(ctx context.Context, a *app) error {
		if err := a.requireSigner(); err != nil {
			return err
		}
		fmt.Println(a.signer.Address())
		return nil
	})
}

func runPosition(cmd *cobra.Command, args []string) error {
	return withApp(true, func(ctx context.Context, a *app) error {
		s := startSpinner("Looking up position...")
		err := a.session.Connect(ctx)
		s.Stop()
		if err != nil {
			return err
		}

		bold := color.New(color.Bold)
		_, _ = bold.Print("Account:  ")
		fmt.Println(a.session.Account())
		_, _ = bold.Print("Network:  ")
		fmt.Println(a.session.Network())
		_, _ = bold.Print("Position: ")
		if id := a.session.Position(); id != nil {
			fmt.Println(*id)
		} else {
			fmt.Println("none")
		}
		return nil
	})
}

func runRewards(cmd *cobra.Command, args []string) error {
	return withApp(true, func(ctx context.Context, a *app) error {
		s := startSpinner("Fetching rewards...")
		rewards, err := a.session.RefreshRewards(ctx)
		s.Stop()
		if err != nil {
			return err
		}

		if len(rewards.Lines) == 0 {
			fmt.Println("No claimable rewards")
			return nil
		}
		for _, line := range rewards.Lines {
			fmt.Printf("  %-12s %s\n", a.symbol(line.TokenID), line.DecimalAmount)
		}
		_, _ = color.New(color.Bold).Printf("  %-12s $%s\n", "Total", rewards.UsdTotal)
		return nil
	})
}

func runClaim(cmd *cobra.Command, args []string) error {
	return withApp(true, func(ctx context.Context, a *app) error {
		if err := a.requireSigner(); err != nil {
			return err
		}
		if err := a.session.Connect(ctx); err != nil {
			return err
		}

		s := startSpinner("Claiming rewards...")
		report, err := a.session.Claim(ctx)
		s.Stop()
		if err != nil {
			return err
		}

		if report.Summary != nil {
			printSummary(a, *report.Summary)
		} else if len(report.Staged) > 0 {
			fmt.Println("\nClaimed, not swapped yet:")
			printStaged(a, report.Staged)
		}
		return nil
	})
}

func runSwap(cmd *cobra.Command, args []string) error {
	return withApp(true, func(ctx context.Context, a *app) error {
		if err := a.requireSigner(); err != nil {
			return err
		}

		entries, err := parseEntries(a, args)
		if err != nil {
			return err
		}
		if err := a.session.Stage(entries); err != nil {
			return err
		}

		s := startSpinner("Swapping...")
		summary, err := a.session.SwapPending(ctx)
		s.Stop()
		if err != nil {
			if errors.Is(err, orchestrator.ErrNoPendingSwaps) {
				return nil
			}
			return err
		}
		printSummary(a, summary)
		return nil
	})
}

// parseEntries reads TOKEN=AMOUNT arguments
func parseEntries(a *app, args []string) (models.StagedSwapSet, error) {
	entries := make(models.StagedSwapSet, 0, len(args))
	for _, arg := range args {
		token, amount, ok := strings.Cut(arg, "=")
		if !ok || token == "" || amount == "" {
			return nil, fmt.Errorf("expected TOKEN=AMOUNT, got %q", arg)
		}
		coinType, err := a.registry.Resolve(token)
		if err != nil {
			return nil, err
		}
		entries = append(entries, models.StagedEntry{TokenID: coinType, DecimalAmount: amount})
	}
	return entries, nil
}

func printSummary(a *app, summary models.BatchSummary) {
	fmt.Printf("\nRun %s via %s: %d/%d swapped", summary.RunID, summary.Provider, summary.SuccessCount, summary.TotalAttempted)
	if summary.Dropped > 0 {
		fmt.Printf(", %d dropped (rounds to zero)", summary.Dropped)
	}
	if summary.AlreadyTarget > 0 {
		fmt.Printf(", %d already in the target token", summary.AlreadyTarget)
	}
	fmt.Println()
	if summary.HasRemaining() {
		_, _ = color.New(color.FgYellow).Println("Still staged:")
		printStaged(a, summary.Remaining)
	}
}

func printStaged(a *app, staged models.StagedSwapSet) {
	for _, e := range staged {
		fmt.Printf("  %-12s %s\n", a.symbol(e.TokenID), e.DecimalAmount)
	}
}
