// Package sevenk adapts the 7k swap aggregator to brokers.SwapRouter.
package sevenk

import (
	"context"
	"encoding/base64"
	"encoding/json"
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
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "7k-broker").Logger()
}

// SetLogger replaces the broker logger.
func SetLogger(l zerolog.Logger) {
	log = l.With().Str("component", "7k-broker").Logger()
}

// Broker implements brokers.SwapRouter for the 7k aggregator
type Broker struct {
	client  *httpquery.Client
	sources []string
	partner string
}

// NewBroker creates a 7k broker against the given API endpoints.
func NewBroker(apiURLs []string, config httpquery.FailoverConfig) (*Broker, error) {
	config.HealthPath = "/health"
	client, err := httpquery.NewClient("7k", apiURLs, config)
	if err != nil {
		return nil, err
	}
	return &Broker{client: client}, nil
}

// WithSources limits the aggregator to the given liquidity sources.
func (b *Broker) WithSources(sources ...string) *Broker {
	b.sources = sources
	return b
}

// WithPartner sets the commission partner address sent with build requests.
func (b *Broker) WithPartner(partner string) *Broker {
	b.partner = partner
	return b
}

// Quote implements brokers.SwapRouter
func (b *Broker) Quote(ctx context.Context, tokenIn, tokenOut, rawAmountIn string) (*brokers.QuotePlan, error) {
	log.Debug().
		Str("tokenIn", tokenIn).
		Str("amount", rawAmountIn).
		Str("tokenOut", tokenOut).
		Msg("Querying 7k for swap route")

	q := url.Values{}
	q.Set("amount", rawAmountIn)
	q.Set("from", tokenIn)
	q.Set("to", tokenOut)
	for _, s := range b.sources {
		q.Add("sources", s)
	}

	var raw json.RawMessage
	if err := b.client.GetJSON(ctx, "/quote?"+q.Encode(), &raw); err != nil {
		if httpquery.IsNotFound(err) {
			return nil, nil
		}
		log.Error().Err(err).Str("tokenIn", tokenIn).Str("tokenOut", tokenOut).Msg("7k quote failed")
		return nil, err
	}

	var quote QuoteResponse
	if err := json.Unmarshal(raw, &quote); err != nil {
		return nil, fmt.Errorf("failed to parse 7k quote: %w", err)
	}
	if !quote.hasRoute() {
		log.Info().Str("tokenIn", tokenIn).Str("tokenOut", tokenOut).Msg("7k found no route")
		return nil, nil
	}

	log.Debug().
		Str("amountIn", quote.SwapAmount).
		Str("amountOut", quote.ReturnAmount).
		Str("priceImpact", quote.PriceImpact.String()).
		Msg("7k quote successful")

	return &brokers.QuotePlan{
		TokenIn:     tokenIn,
		TokenOut:    tokenOut,
		AmountIn:    rawAmountIn,
		AmountOut:   quote.ReturnAmount,
		PriceImpact: quote.PriceImpact.String(),
		RouteData:   &RouteData{raw: raw},
	}, nil
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
		return models.Transaction{}, fmt.Errorf("quote plan is not from 7k (%T)", plan.RouteData)
	}

	req := BuildRequest{
		Quote:          route.raw,
		AccountAddress: account,
		Slippage:       slippage.String(),
		Commission:     Commission{Partner: b.partner},
	}
	if req.Commission.Partner == "" {
		req.Commission.Partner = account
	}

	var resp BuildResponse
	if err := b.client.PostJSON(ctx, "/build", req, &resp); err != nil {
		return models.Transaction{}, fmt.Errorf("7k build failed: %w", err)
	}
	txBytes, err := base64.StdEncoding.DecodeString(resp.TxBytes)
	if err != nil || len(txBytes) == 0 {
		return models.Transaction{}, fmt.Errorf("7k build returned invalid transaction bytes")
	}
	return models.Transaction{Kind: "swap", Bytes: txBytes}, nil
}

// GetBrokerType returns the broker type identifier
func (b *Broker) GetBrokerType() brokers.Provider {
	return brokers.ProviderSevenK
}

// WaitsForClaimConfirmation implements brokers.SwapRouter
func (b *Broker) WaitsForClaimConfirmation() bool {
	return false
}

// Close cleans up resources used by the broker client
func (b *Broker) Close() {
	if b.client != nil {
		b.client.Close()
	}
}
