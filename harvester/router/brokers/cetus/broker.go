// Package cetus adapts Cetus CLMM pools to brokers.SwapRouter. Unlike an
// aggregator it has to discover a pool for the pair before it can quote.
package cetus

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Cogwheel-Validator/spectra-harvest/harvester/httpquery"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/models"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/router/brokers"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/sui"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "cetus-broker").Logger()
}

// SetLogger replaces the broker logger.
func SetLogger(l zerolog.Logger) {
	log = l.With().Str("component", "cetus-broker").Logger()
}

// Broker implements brokers.SwapRouter for Cetus
type Broker struct {
	client *httpquery.Client
}

// NewBroker creates a Cetus broker against the given API endpoints.
func NewBroker(apiURLs []string, config httpquery.FailoverConfig) (*Broker, error) {
	config.HealthPath = "/health"
	client, err := httpquery.NewClient("cetus", apiURLs, config)
	if err != nil {
		return nil, err
	}
	return &Broker{client: client}, nil
}

// FindPools lists the pools trading tokenIn against tokenOut in either order.
func (b *Broker) FindPools(ctx context.Context, tokenIn, tokenOut string) ([]Pool, error) {
	q := url.Values{}
	q.Add("coin_type", sui.NormalizeCoinType(tokenIn))
	q.Add("coin_type", sui.NormalizeCoinType(tokenOut))

	var resp PoolsResponse
	if err := b.client.GetJSON(ctx, "/pools?"+q.Encode(), &resp); err != nil {
		if httpquery.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("cetus pool lookup failed: %w", err)
	}
	return matchingPools(resp.Pools, tokenIn, tokenOut), nil
}

// Preview asks the pool for an estimated output. It is advisory only.
func (b *Broker) Preview(ctx context.Context, pool Pool, a2b bool, amount string) (*PreSwapResponse, error) {
	req := PreSwapRequest{
		PoolAddress: pool.PoolAddress,
		CoinTypeA:   pool.CoinTypeA,
		CoinTypeB:   pool.CoinTypeB,
		A2B:         a2b,
		ByAmountIn:  true,
		Amount:      amount,
	}
	var resp PreSwapResponse
	if err := b.client.PostJSON(ctx, "/preswap", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Quote implements brokers.SwapRouter. Missing pools mean no route.
func (b *Broker) Quote(ctx context.Context, tokenIn, tokenOut, rawAmountIn string) (*brokers.QuotePlan, error) {
	pools, err := b.FindPools(ctx, tokenIn, tokenOut)
	if err != nil {
		log.Error().Err(err).Str("tokenIn", tokenIn).Str("tokenOut", tokenOut).Msg("Pool discovery failed")
		return nil, err
	}
	pool, ok := SelectPool(pools)
	if !ok {
		log.Info().Str("tokenIn", tokenIn).Str("tokenOut", tokenOut).Msg("No cetus pool for pair")
		return nil, nil
	}
	a2b := sui.SameCoinType(pool.CoinTypeA, tokenIn)

	log.Debug().
		Str("pool", pool.PoolAddress).
		Str("liquidity", pool.Liquidity).
		Bool("a2b", a2b).
		Int("candidates", len(pools)).
		Msg("Selected cetus pool")

	plan := &brokers.QuotePlan{
		TokenIn:   tokenIn,
		TokenOut:  tokenOut,
		AmountIn:  rawAmountIn,
		RouteData: &RouteData{Pool: pool, A2B: a2b},
	}

	// failures here are ignored, the swap is still built without an estimate
	preview, err := b.Preview(ctx, pool, a2b, rawAmountIn)
	switch {
	case err != nil:
		log.Warn().Err(err).Str("pool", pool.PoolAddress).Msg("Preswap preview failed")
	case preview.IsExceed:
		log.Warn().Str("pool", pool.PoolAddress).Msg("Preswap reports amount exceeds pool liquidity")
	default:
		plan.AmountOut = preview.EstimatedAmountOut
	}
	return plan, nil
}

// BuildSwapTransaction implements brokers.SwapRouter
func (b *Broker) BuildSwapTransaction(
	ctx context.Context,
	plan *brokers.QuotePlan,
	account string,
	slippage decimal.Decimal,
) (models.Transaction, error) {
	if plan == nil {
		return models.Transaction{}, errors.New("nil quote plan")
	}
	route, ok := plan.RouteData.(*RouteData)
	if !ok {
		return models.Transaction{}, fmt.Errorf("quote plan is not from cetus (%T)", plan.RouteData)
	}

	if slippage.IsNegative() || slippage.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return models.Transaction{}, fmt.Errorf("slippage must be in [0, 1), got %s", slippage)
	}

	amountLimit := "0"
	if plan.AmountOut != "" {
		minOut, err := brokers.CalculateMinOutput(plan.AmountOut, slippage)
		if err != nil {
			return models.Transaction{}, err
		}
		amountLimit = minOut
	} else {
		log.Warn().
			Str("pool", route.Pool.PoolAddress).
			Str("slippage", slippage.String()).
			Msg("No output estimate, the builder derives the minimum output from slippage")
	}

	req := SwapBuildRequest{
		PoolAddress: route.Pool.PoolAddress,
		CoinTypeA:   route.Pool.CoinTypeA,
		CoinTypeB:   route.Pool.CoinTypeB,
		A2B:         route.A2B,
		ByAmountIn:  true,
		Amount:      plan.AmountIn,
		AmountLimit: amountLimit,
		SlippageBps: brokers.SlippageToBps(slippage),
		Sender:      account,
	}
	var resp SwapBuildResponse
	if err := b.client.PostJSON(ctx, "/swap/build", req, &resp); err != nil {
		return models.Transaction{}, fmt.Errorf("cetus build failed: %w", err)
	}
	txBytes, err := base64.StdEncoding.DecodeString(resp.TxBytes)
	if err != nil || len(txBytes) == 0 {
		return models.Transaction{}, fmt.Errorf("cetus build returned invalid transaction bytes")
	}
	return models.Transaction{Kind: "swap", Bytes: txBytes}, nil
}

// GetBrokerType returns the broker type identifier
func (b *Broker) GetBrokerType() brokers.Provider {
	return brokers.ProviderCetus
}

// WaitsForClaimConfirmation implements brokers.SwapRouter. Pool swaps spend
// the claimed coin objects so the claim has to be confirmed first.
func (b *Broker) WaitsForClaimConfirmation() bool {
	return true
}

// Close cleans up resources used by the broker client
func (b *Broker) Close() {
	if b.client != nil {
		b.client.Close()
	}
}
