// Package httpquery is the JSON over HTTP client shared by every external API
// the harvester talks to (lending protocol, swap providers, Sui fullnodes).
// It keeps a primary endpoint plus optional backups and fails over between them.
package httpquery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "httpquery").Logger()
}

// SetLogger lets the command route client logs to its own writers.
func SetLogger(l zerolog.Logger) {
	log = l.With().Str("component", "httpquery").Logger()
}

// StatusError is returned when an endpoint answers with a non 2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// IsNotFound reports whether err is a 404 answer from the endpoint.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// FailoverConfig controls failover behavior
type FailoverConfig struct {
	// MaxRetries is the number of times to retry a failed request on the current endpoint
	MaxRetries int
	// RetryDelay is the initial delay between retries (doubles with each retry)
	RetryDelay time.Duration
	// HealthCheckInterval is how often to check if the primary endpoint is back up
	HealthCheckInterval time.Duration
	// HealthPath is requested with GET to decide if an endpoint is alive
	HealthPath string
	// HealthMethod overrides GET for endpoints that only accept POST (JSON-RPC)
	HealthMethod string
	// HealthBody is sent with a POST health check
	HealthBody []byte
	// Timeout is the HTTP request timeout
	Timeout time.Duration
	// RequestsPerSecond caps outgoing requests, 0 disables the limiter
	RequestsPerSecond float64
}

// DefaultFailoverConfig returns sensible defaults for failover behavior
func DefaultFailoverConfig() FailoverConfig {
	return FailoverConfig{
		MaxRetries:          2,
		RetryDelay:          500 * time.Millisecond,
		HealthCheckInterval: 30 * time.Second,
		HealthPath:          "/",
		Timeout:             10 * time.Second,
	}
}

// Client provides access to a JSON API with failover support.
type Client struct {
	name           string
	httpClient     *http.Client
	primaryURL     string
	backupURLs     []string
	currentURL     string
	mu             sync.RWMutex
	limiter        *rate.Limiter
	healthChecker  *healthChecker
	failoverConfig FailoverConfig
}

// healthChecker periodically checks if the primary endpoint is healthy
type healthChecker struct {
	client    *Client
	stopCh    chan struct{}
	stoppedCh chan struct{}
	isRunning bool
	mu        sync.Mutex
}

// NewClient creates a client for the given endpoints. The first url is the
// primary, the rest are backups tried in order when the primary fails.
func NewClient(name string, urls []string, config FailoverConfig) (*Client, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("%s: at least one endpoint is required", name)
	}
	if _, err := url.ParseRequestURI(urls[0]); err != nil {
		return nil, fmt.Errorf("%s: invalid primary url %q: %w", name, urls[0], err)
	}

	validBackups := make([]string, 0, len(urls)-1)
	for _, u := range urls[1:] {
		if _, err := url.ParseRequestURI(u); err != nil {
			log.Warn().Err(err).Str("client", name).Str("url", u).Msg("Invalid backup URL, skipping")
			continue
		}
		validBackups = append(validBackups, u)
	}

	client := &Client{
		name: name,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		primaryURL:     urls[0],
		backupURLs:     validBackups,
		currentURL:     urls[0],
		failoverConfig: config,
	}
	if config.RequestsPerSecond > 0 {
		burst := int(config.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		client.limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	}

	// only worth watching the primary when there is something to fail over to
	if len(validBackups) > 0 && config.HealthCheckInterval > 0 {
		client.startHealthChecker()
	}

	log.Info().
		Str("client", name).
		Str("primary", urls[0]).
		Int("backups", len(validBackups)).
		Msg("HTTP client initialized")
	return client, nil
}

// Name returns the label the client was created with.
func (c *Client) Name() string {
	return c.name
}

func (c *Client) startHealthChecker() {
	c.healthChecker = &healthChecker{
		client:    c,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
	c.healthChecker.start()
}

func (h *healthChecker) start() {
	h.mu.Lock()
	if h.isRunning {
		h.mu.Unlock()
		return
	}
	h.isRunning = true
	h.mu.Unlock()

	go func() {
		defer close(h.stoppedCh)
		ticker := time.NewTicker(h.client.failoverConfig.HealthCheckInterval)
		defer ticker.Stop()

		for {
			select {
			case <-h.stopCh:
				return
			case <-ticker.C:
				h.checkAndRestore()
			}
		}
	}()
}

func (h *healthChecker) stop() {
	h.mu.Lock()
	if !h.isRunning {
		h.mu.Unlock()
		return
	}
	h.isRunning = false
	h.mu.Unlock()

	close(h.stopCh)
	<-h.stoppedCh
}

// checkAndRestore moves back to the primary endpoint once it answers again
func (h *healthChecker) checkAndRestore() {
	h.client.mu.RLock()
	currentURL := h.client.currentURL
	primaryURL := h.client.primaryURL
	h.client.mu.RUnlock()

	if currentURL == primaryURL {
		return
	}

	if h.client.isEndpointHealthy(primaryURL) {
		h.client.mu.Lock()
		h.client.currentURL = primaryURL
		h.client.mu.Unlock()
		log.Info().Str("client", h.client.name).Str("url", primaryURL).Msg("Restored primary endpoint")
	}
}

func (c *Client) isEndpointHealthy(endpoint string) bool {
	method := c.failoverConfig.HealthMethod
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if len(c.failoverConfig.HealthBody) > 0 {
		body = bytes.NewReader(c.failoverConfig.HealthBody)
	}

	healthURL := endpoint + c.failoverConfig.HealthPath
	req, err := http.NewRequest(method, healthURL, body)
	if err != nil {
		return false
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("url", healthURL).Msg("Health check failed")
		return false
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	log.Debug().Str("url", healthURL).Int("status", resp.StatusCode).Msg("Health check response")
	return resp.StatusCode == http.StatusOK
}

// CurrentURL returns the endpoint requests currently go to
func (c *Client) CurrentURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentURL
}

// failover switches to the next healthy endpoint
func (c *Client) failover() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	allURLs := append([]string{c.primaryURL}, c.backupURLs...)
	currentIdx := -1
	for i, u := range allURLs {
		if u == c.currentURL {
			currentIdx = i
			break
		}
	}

	for i := 1; i <= len(allURLs); i++ {
		nextURL := allURLs[(currentIdx+i)%len(allURLs)]
		if nextURL == c.currentURL {
			continue
		}
		if c.isEndpointHealthy(nextURL) {
			c.currentURL = nextURL
			log.Info().Str("client", c.name).Str("url", nextURL).Msg("Failover to endpoint")
			return true
		}
	}

	log.Warn().Str("client", c.name).Str("url", c.currentURL).Msg("All endpoints unhealthy, staying on current")
	return false
}

// Close stops the health checker and cleans up resources
func (c *Client) Close() {
	if c.healthChecker != nil {
		c.healthChecker.stop()
	}
}

// GetJSON performs a GET on path and decodes the JSON answer into out.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	body, err := c.doRequestWithFailover(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: failed to parse response: %w", c.name, err)
	}
	return nil
}

// PostJSON sends in as a JSON body to path and decodes the answer into out.
// out may be nil when the caller doesn't care about the body.
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: failed to encode request: %w", c.name, err)
	}
	body, err := c.doRequestWithFailover(ctx, http.MethodPost, path, payload)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: failed to parse response: %w", c.name, err)
	}
	return nil
}

// doRequestWithFailover performs a request with retry and failover logic.
// 4xx answers are returned right away, they won't get better on a retry.
func (c *Client) doRequestWithFailover(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var lastErr error
	retryDelay := c.failoverConfig.RetryDelay

	for attempt := 0; attempt <= c.failoverConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
			retryDelay *= 2
		}

		body, err := c.do(ctx, method, c.CurrentURL()+path, payload)
		if err == nil {
			return body, nil
		}
		if isClientError(err) || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
	}

	if len(c.backupURLs) > 0 && c.failover() {
		body, err := c.do(ctx, method, c.CurrentURL()+path, payload)
		if err != nil {
			return nil, fmt.Errorf("%s: failover request failed: %w (original: %w)", c.name, err, lastErr)
		}
		return body, nil
	}

	return nil, fmt.Errorf("%s: request failed after %d retries: %w", c.name, c.failoverConfig.MaxRetries+1, lastErr)
}

func (c *Client) do(ctx context.Context, method, fullURL string, payload []byte) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func isClientError(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code >= 400 && se.Code < 500 && se.Code != http.StatusTooManyRequests
}
