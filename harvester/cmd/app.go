package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/Cogwheel-Validator/spectra-harvest/harvester/claim"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/config"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/httpquery"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/lending"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/models"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/notify"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/orchestrator"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/router/brokers"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/router/brokers/cetus"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/router/brokers/sevenk"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/session"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/sui"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/tokens"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/units"
)

var errNoSigner = errors.New("private_key is not configured, this command signs transactions")

// app is everything one harvester process needs, wired from config
type app struct {
	cfg      *config.HarvesterConfig
	network  sui.Network
	sui      *sui.Client
	signer   *sui.Signer
	lending  *lending.Client
	routers  []brokers.SwapRouter
	registry *tokens.Registry
	feed     *notify.Feed
	session  *session.Session
}

// newApp builds the clients and the session. console adds colored output of
// notifications on stdout, the API feed always receives them.
func newApp(ctx context.Context, cfg *config.HarvesterConfig, console bool) (*app, error) {
	network, err := sui.ParseNetwork(cfg.Network)
	if err != nil {
		return nil, err
	}
	// a custom network pointed at a public fullnode still gets that network's explorer links
	if network == sui.Custom && len(cfg.SuiRPCURLs) > 0 {
		network = sui.NetworkFromURL(cfg.SuiRPCURLs[0])
	}
	a := &app{cfg: cfg, network: network, feed: notify.NewFeed(200)}

	failover := httpquery.DefaultFailoverConfig()
	failover.RequestsPerSecond = cfg.ProviderRPS

	a.sui, err = sui.NewClient(sui.ClientConfig{
		Network:        network,
		RPCURLs:        cfg.SuiRPCURLs,
		ConfirmTimeout: cfg.ConfirmTimeout,
		Failover:       failover,
	})
	if err != nil {
		return nil, fmt.Errorf("sui client: %w", err)
	}

	a.lending, err = lending.NewClient(cfg.LendingAPIURLs, network, failover)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("lending client: %w", err)
	}

	if len(cfg.SevenKAPIURLs) > 0 {
		broker, err := sevenk.NewBroker(cfg.SevenKAPIURLs, failover)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("7k broker: %w", err)
		}
		broker.WithSources(cfg.SevenKSources...).WithPartner(cfg.SevenKPartner)
		a.routers = append(a.routers, broker)
		log.Info().Str("primary", cfg.SevenKAPIURLs[0]).Int("backups", len(cfg.SevenKAPIURLs)-1).Msg("7k broker initialized")
	}
	if len(cfg.CetusAPIURLs) > 0 {
		broker, err := cetus.NewBroker(cfg.CetusAPIURLs, failover)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("cetus broker: %w", err)
		}
		a.routers = append(a.routers, broker)
		log.Info().Str("primary", cfg.CetusAPIURLs[0]).Int("backups", len(cfg.CetusAPIURLs)-1).Msg("Cetus broker initialized")
	}

	a.registry, err = tokens.LoadRegistry(ctx, cfg.TokenRegistry)
	if err != nil {
		a.Close()
		return nil, err
	}
	target, err := a.registry.Resolve(cfg.TargetToken)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("target_token: %w", err)
	}

	address := account
	if cfg.PrivateKey != "" {
		keypair, err := sui.KeypairFromBech32(cfg.PrivateKey)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("private_key: %w", err)
		}
		a.signer = sui.NewSigner(keypair, a.sui)
		address = keypair.Address()
	}
	if address == "" {
		a.Close()
		return nil, errors.New("no account: configure private_key or pass --account")
	}

	var notifier notify.Notifier = notify.Multi{a.feed, notify.NewLog(log)}
	if console {
		notifier = notify.Multi{a.feed, notify.NewConsole(os.Stdout)}
	}

	selection, err := brokers.ParseProvider(cfg.DefaultProvider)
	if err != nil {
		a.Close()
		return nil, err
	}

	// a nil *sui.Signer must not end up inside the interfaces
	var txSigner orchestrator.Signer = noSigner{}
	if a.signer != nil {
		txSigner = a.signer
	}

	metadata := tokens.NewMetadata(a.registry, a.sui)
	orch := orchestrator.New(a.routers, metadata, txSigner, notifier).
		WithExplorer(func(digest string) string { return sui.ExplorerTxURL(digest, network) })

	a.session = session.New(address, network, session.Deps{
		Discovery: a.lending,
		Rewards:   a.lending,
		Claimer:   claim.NewExecutor(a.lending, a.lending, txSigner),
		Swapper:   orch,
		Confirmer: a.sui,
		Notifier:  notifier,
	}, session.Config{
		Provider:    selection,
		TargetToken: target,
		Slippage:    cfg.SlippageDecimal(),
		AutoSwap:    cfg.AutoSwap,
	})

	log.Info().
		Str("account", address).
		Str("network", string(network)).
		Str("provider", string(selection)).
		Str("target", target).
		Int("knownTokens", a.registry.Len()).
		Bool("canSign", a.signer != nil).
		Msg("Harvester ready")

	return a, nil
}

func (a *app) requireSigner() error {
	if a.signer == nil {
		return errNoSigner
	}
	return nil
}

// symbol names a coin type for display, registry first
func (a *app) symbol(coinType string) string {
	if t, ok := a.registry.Lookup(coinType); ok {
		return t.Symbol
	}
	return units.SymbolFromType(coinType)
}

func (a *app) Close() {
	for _, r := range a.routers {
		r.Close()
		log.Debug().Str("broker", string(r.GetBrokerType())).Msg("Closed broker client")
	}
	if a.lending != nil {
		a.lending.Close()
	}
	if a.sui != nil {
		a.sui.Close()
	}
}

// noSigner stands in when the process runs without a key
type noSigner struct{}

func (noSigner) SignAndExecute(ctx context.Context, tx models.Transaction) (string, error) {
	return "", errNoSigner
}
