package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Cogwheel-Validator/spectra-harvest/harvester/claim"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/config"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/httpquery"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/lending"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/orchestrator"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/router/brokers/cetus"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/router/brokers/sevenk"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/rpc"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/session"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/sui"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/tokens"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Logger()

	// Share the logger with the RPC package
	rpc.SetLogger(log)
}

var (
	configPath string
	account    string
	provider   string
)

var rootCmd = &cobra.Command{
	Use:   "harvester",
	Short: "Claim lending rewards on Sui and swap them into one token",
	Long: `harvester claims the rewards of a lending position and swaps every
claimed token into a target token through the 7k aggregator or Cetus pools.

Configuration comes from a TOML file (--config) or HARVESTER_* environment
variables.

Examples:
  harvester rewards
  harvester claim --swap
  harvester swap USDC=1.5 ALPHA=50 --provider cetus
  harvester serve --config ./harvester.toml`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML config file, env variables are used when empty")
	rootCmd.PersistentFlags().StringVar(&account, "account", "", "account to inspect when no private key is configured")
	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "", "swap provider (7k or cetus), overrides default_provider")

	rootCmd.AddCommand(serveCmd, addressCmd, positionCmd, rewardsCmd, claimCmd, swapCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\nError: %v\n\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config and applies the logging settings
func loadConfig() (*config.HarvesterConfig, error) {
	var path *string
	if configPath != "" {
		path = &configPath
	}
	cfg, err := config.LoadHarvesterConfig(path)
	if err != nil {
		return nil, err
	}
	if provider != "" {
		cfg.DefaultProvider = provider
	}
	setupLogging(cfg)
	return cfg, nil
}

// setupLogging sets the global level and adds a rotating file next to the console
func setupLogging(cfg *config.HarvesterConfig) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogFile == "" {
		return
	}

	var out io.Writer = zerolog.MultiLevelWriter(
		zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339},
		&lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		},
	)
	log = zerolog.New(out).With().Timestamp().Logger()
	shareLogger(log)
	log.Info().Str("file", cfg.LogFile).Msg("Logging to file")
}

// shareLogger hands the command logger to every package that logs
func shareLogger(l zerolog.Logger) {
	rpc.SetLogger(l)
	httpquery.SetLogger(l)
	sui.SetLogger(l)
	lending.SetLogger(l)
	tokens.SetLogger(l)
	sevenk.SetLogger(l)
	cetus.SetLogger(l)
	claim.SetLogger(l)
	orchestrator.SetLogger(l)
	session.SetLogger(l)
}

// buildServerConfig converts the loaded HarvesterConfig to rpc.ServerConfig
func buildServerConfig(cfg *config.HarvesterConfig) *rpc.ServerConfig {
	serverConfig := rpc.DefaultServerConfig()
	serverConfig.Address = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	serverConfig.AllowedOrigins = cfg.AllowedOrigins
	serverConfig.EnableMetrics = cfg.EnableMetrics || cfg.UsePrometheus
	serverConfig.RequestTimeout = cfg.ConfirmTimeout + 4*time.Minute

	if cfg.RatePerMinute > 0 {
		serverConfig.RatePerMinute = &cfg.RatePerMinute
	}
	if cfg.MaxConcurrentRequests > 0 {
		serverConfig.MaxConcurrentRequests = &cfg.MaxConcurrentRequests
	}

	serverConfig.OTelConfig = &rpc.OTelConfig{
		ServiceName:     defaultString(cfg.ServiceName, "spectra-harvest"),
		ServiceVersion:  defaultString(cfg.ServiceVersion, "1.0.0"),
		Environment:     defaultString(cfg.Environment, "development"),
		EnableTracing:   cfg.EnableTracing,
		UseOTLPTraces:   cfg.UseOTLPTraces,
		OTLPTracesURL:   cfg.OTLPTracesURL,
		EnableMetrics:   cfg.EnableMetrics,
		UsePrometheus:   cfg.UsePrometheus,
		UseOTLPMetrics:  cfg.UseOTLPMetrics,
		OTLPMetricsURL:  cfg.OTLPMetricsURL,
		EnableLogs:      cfg.EnableLogs,
		UseOTLPLogs:     cfg.UseOTLPLogs,
		OTLPLogsURL:     cfg.OTLPLogsURL,
		InsecureOTLP:    cfg.InsecureOTLP,
		DevelopmentMode: cfg.DevelopmentMode,
	}

	return serverConfig
}

// defaultString returns the default value if s is empty
func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
