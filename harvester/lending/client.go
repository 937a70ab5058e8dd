// Package lending reads positions and claimable rewards from the lending
// protocol API and builds reward claim transactions.
package lending

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/Cogwheel-Validator/spectra-harvest/harvester/httpquery"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/models"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/sui"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "lending").Logger()
}

// SetLogger replaces the package logger.
func SetLogger(l zerolog.Logger) {
	log = l.With().Str("component", "lending").Logger()
}

// Client talks to the lending protocol API for one network.
type Client struct {
	api     *httpquery.Client
	network sui.Network
}

// NewClient creates a lending API client.
func NewClient(apiURLs []string, network sui.Network, config httpquery.FailoverConfig) (*Client, error) {
	config.HealthPath = "/health"
	api, err := httpquery.NewClient("lending", apiURLs, config)
	if err != nil {
		return nil, err
	}
	return &Client{api: api, network: network}, nil
}

// Network the client resolves positions on.
func (c *Client) Network() sui.Network {
	return c.network
}

// Close stops the endpoint health checker.
func (c *Client) Close() {
	c.api.Close()
}

// Resolve finds the position capability id for account. An account without a
// position yields nil and no error.
func (c *Client) Resolve(ctx context.Context, account string) (*string, error) {
	path := fmt.Sprintf("/v1/positions/%s/cap?network=%s", url.PathEscape(account), url.QueryEscape(string(c.network)))

	var resp positionCapResponse
	if err := c.api.GetJSON(ctx, path, &resp); err != nil {
		if httpquery.IsNotFound(err) {
			return nil, nil
		}
		return nil, &DiscoveryError{Op: "position", Account: account, Err: err}
	}
	if resp.PositionCapID == nil || *resp.PositionCapID == "" {
		return nil, nil
	}
	log.Debug().Str("account", account).Str("position", *resp.PositionCapID).Msg("Position resolved")
	return resp.PositionCapID, nil
}

// Fetch reads the claimable rewards of the account's first portfolio record.
// No record gives an empty snapshot with a "0" usd total.
func (c *Client) Fetch(ctx context.Context, account string) (models.RewardSnapshot, error) {
	path := fmt.Sprintf("/v1/portfolio/%s?network=%s", url.PathEscape(account), url.QueryEscape(string(c.network)))

	var records []portfolioRecord
	if err := c.api.GetJSON(ctx, path, &records); err != nil {
		if httpquery.IsNotFound(err) {
			return models.EmptyRewardSnapshot(), nil
		}
		return models.RewardSnapshot{}, &DiscoveryError{Op: "portfolio", Account: account, Err: err}
	}
	if len(records) == 0 {
		return models.EmptyRewardSnapshot(), nil
	}

	first := records[0]
	snapshot := models.RewardSnapshot{
		UsdTotal: first.RewardsToClaimUsd.String(),
		Lines:    make([]models.RewardLine, 0, len(first.RewardsToClaim)),
	}
	for _, r := range first.RewardsToClaim {
		snapshot.Lines = append(snapshot.Lines, models.RewardLine{
			TokenID:       r.CoinType,
			DecimalAmount: r.RewardAmount.String(),
		})
	}
	return snapshot, nil
}

// BuildClaimTransaction builds the unsigned transaction claiming every reward
// of positionID into account's wallet.
func (c *Client) BuildClaimTransaction(ctx context.Context, positionID, account string) (models.Transaction, error) {
	if positionID == "" {
		return models.Transaction{}, errors.New("position id is required")
	}
	req := claimRequest{PositionCapID: positionID, Address: account}

	var resp claimResponse
	if err := c.api.PostJSON(ctx, "/v1/claim", req, &resp); err != nil {
		return models.Transaction{}, fmt.Errorf("claim build failed: %w", err)
	}
	txBytes, err := base64.StdEncoding.DecodeString(resp.TxBytes)
	if err != nil || len(txBytes) == 0 {
		return models.Transaction{}, errors.New("claim build returned invalid transaction bytes")
	}
	return models.Transaction{Kind: "claim", Bytes: txBytes}, nil
}
