// Package sui talks to Sui fullnodes over JSON-RPC and signs transactions with
// a local ed25519 key.
package sui

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/Cogwheel-Validator/spectra-harvest/harvester/httpquery"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "sui").Logger()
}

// SetLogger replaces the package logger, keeping the component field.
func SetLogger(l zerolog.Logger) {
	log = l.With().Str("component", "sui").Logger()
}

// DefaultDecimals is assumed when a coin has no readable metadata.
const DefaultDecimals = 9

// ErrTransactionNotFound is returned while a digest is not yet indexed by the node.
var ErrTransactionNotFound = errors.New("transaction not found")

// RPCError is an error object returned in a JSON-RPC response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// CoinMetadata is the subset of suix_getCoinMetadata the harvester uses.
type CoinMetadata struct {
	Decimals int    `json:"decimals"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
}

// ExecutionStatus is the effects status of an executed transaction.
type ExecutionStatus struct {
	Status string `json:"status"` // "success" or "failure"
	Error  string `json:"error,omitempty"`
}

// TransactionResponse is the subset of a transaction block response we read.
type TransactionResponse struct {
	Digest  string `json:"digest"`
	Effects *struct {
		Status ExecutionStatus `json:"status"`
	} `json:"effects,omitempty"`
}

// Succeeded reports whether effects are present and successful.
func (r *TransactionResponse) Succeeded() bool {
	return r.Effects != nil && r.Effects.Status.Status == "success"
}

// Client is a Sui JSON-RPC client.
type Client struct {
	rpc            *httpquery.Client
	network        Network
	nextID         atomic.Uint64
	confirmTimeout time.Duration
}

// ClientConfig configures a Client
type ClientConfig struct {
	Network Network
	// RPCURLs overrides the preset fullnode, first url is primary
	RPCURLs        []string
	ConfirmTimeout time.Duration
	Failover       httpquery.FailoverConfig
}

// NewClient creates a Sui client. With no RPC urls the network preset is used.
func NewClient(cfg ClientConfig) (*Client, error) {
	urls := cfg.RPCURLs
	if len(urls) == 0 {
		if cfg.Network.FullnodeURL() == "" {
			return nil, fmt.Errorf("network %q requires explicit rpc urls", cfg.Network)
		}
		urls = []string{cfg.Network.FullnodeURL()}
	}

	failover := cfg.Failover
	failover.HealthPath = ""
	failover.HealthMethod = "POST"
	failover.HealthBody = []byte(`{"jsonrpc":"2.0","id":0,"method":"sui_getChainIdentifier","params":[]}`)

	rpc, err := httpquery.NewClient("sui-rpc", urls, failover)
	if err != nil {
		return nil, err
	}

	timeout := cfg.ConfirmTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{rpc: rpc, network: cfg.Network, confirmTimeout: timeout}, nil
}

// Network returns the network the client was built for.
func (c *Client) Network() Network {
	return c.network
}

// Close stops the endpoint health checker.
func (c *Client) Close() {
	c.rpc.Close()
}

func (c *Client) call(ctx context.Context, method string, out any, params ...any) error {
	if params == nil {
		params = []any{}
	}
	req := rpcRequest{JSONRPC: "2.0", ID: c.nextID.Add(1), Method: method, Params: params}

	var resp rpcResponse
	if err := c.rpc.PostJSON(ctx, "", req, &resp); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	if resp.Error != nil {
		return fmt.Errorf("%s: %w", method, resp.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("%s: failed to decode result: %w", method, err)
	}
	return nil
}

// GetCoinMetadata returns coin metadata, nil when the chain has none.
func (c *Client) GetCoinMetadata(ctx context.Context, coinType string) (*CoinMetadata, error) {
	var meta *CoinMetadata
	if err := c.call(ctx, "suix_getCoinMetadata", &meta, coinType); err != nil {
		return nil, err
	}
	return meta, nil
}

// GetDecimals returns the coin precision. Missing metadata is an error so the
// caller decides on the default.
func (c *Client) GetDecimals(ctx context.Context, coinType string) (int, error) {
	meta, err := c.GetCoinMetadata(ctx, coinType)
	if err != nil {
		return 0, err
	}
	if meta == nil {
		return 0, fmt.Errorf("no metadata for %s", coinType)
	}
	return meta.Decimals, nil
}

// ExecuteTransactionBlock submits signed transaction bytes and waits for local execution.
func (c *Client) ExecuteTransactionBlock(ctx context.Context, txBytes []byte, signature string) (*TransactionResponse, error) {
	var resp TransactionResponse
	err := c.call(ctx, "sui_executeTransactionBlock", &resp,
		base64.StdEncoding.EncodeToString(txBytes),
		[]string{signature},
		map[string]bool{"showEffects": true},
		"WaitForLocalExecution",
	)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetTransactionBlock fetches a transaction by digest.
func (c *Client) GetTransactionBlock(ctx context.Context, digest string) (*TransactionResponse, error) {
	var resp *TransactionResponse
	err := c.call(ctx, "sui_getTransactionBlock", &resp, digest, map[string]bool{"showEffects": true})
	if err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) {
			return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, digest)
		}
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, digest)
	}
	return resp, nil
}

// WaitForTransaction polls the node until digest is known or the confirm
// timeout runs out. A transaction that executed with a failure status is an error.
func (c *Client) WaitForTransaction(ctx context.Context, digest string) (*TransactionResponse, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 5 * time.Second

	operation := func() (*TransactionResponse, error) {
		resp, err := c.GetTransactionBlock(ctx, digest)
		if err != nil {
			return nil, err
		}
		if resp.Effects != nil && !resp.Succeeded() {
			return nil, backoff.Permanent(fmt.Errorf("transaction %s failed: %s", digest, resp.Effects.Status.Error))
		}
		return resp, nil
	}
	notify := func(err error, wait time.Duration) {
		log.Debug().Err(err).Str("digest", digest).Dur("backoff", wait).Msg("Transaction not confirmed yet")
	}

	resp, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxElapsedTime(c.confirmTimeout),
		backoff.WithNotify(notify),
	)
	if err != nil {
		return nil, fmt.Errorf("waiting for %s: %w", digest, err)
	}
	log.Info().Str("digest", digest).Msg("Transaction confirmed")
	return resp, nil
}
