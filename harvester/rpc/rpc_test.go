package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/zeebo/assert"

	"github.com/Cogwheel-Validator/spectra-harvest/harvester/claim"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/models"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/notify"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/orchestrator"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/router/brokers"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/session"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/sui"
)

type fakeSession struct {
	position  *string
	rewards   models.RewardSnapshot
	staged    models.StagedSwapSet
	selection brokers.Provider
	claimErr  error
	swapErr   error
	summary   models.BatchSummary
}

func (f *fakeSession) Account() string                { return "0xme" }
func (f *fakeSession) Network() sui.Network           { return sui.Testnet }
func (f *fakeSession) Position() *string              { return f.position }
func (f *fakeSession) Rewards() models.RewardSnapshot { return f.rewards }
func (f *fakeSession) Staged() models.StagedSwapSet   { return f.staged }
func (f *fakeSession) Selection() brokers.Provider    { return f.selection }

func (f *fakeSession) RefreshRewards(ctx context.Context) (models.RewardSnapshot, error) {
	return f.rewards, nil
}

func (f *fakeSession) Claim(ctx context.Context) (*session.ClaimReport, error) {
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	return &session.ClaimReport{
		Digest:      "DIGEST",
		ExplorerURL: sui.ExplorerTxURL("DIGEST", sui.Testnet),
		Staged:      models.StagedSwapSet{{TokenID: "0x2::sui::SUI", DecimalAmount: "1.5"}},
	}, nil
}

func (f *fakeSession) SwapPending(ctx context.Context) (models.BatchSummary, error) {
	return f.summary, f.swapErr
}

func (f *fakeSession) SelectRouter(provider brokers.Provider) error {
	f.selection = provider
	return nil
}

func newTestServer(t *testing.T, fake *fakeSession, feed *notify.Feed) *httptest.Server {
	t.Helper()
	cfg := DefaultServerConfig()
	cfg.OTelConfig = nil
	srv, err := NewServer(context.Background(), cfg, NewHarvesterServer(fake, feed), nil)
	assert.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func call(t *testing.T, ts *httptest.Server, procedure, body string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Post(ts.URL+procedure, "application/json", strings.NewReader(body))
	assert.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	assert.NoError(t, err)

	out := map[string]any{}
	assert.NoError(t, json.Unmarshal(data, &out))
	return resp.StatusCode, out
}

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t, &fakeSession{}, notify.NewFeed(10))

	resp, err := http.Get(ts.URL + "/server/health")
	assert.NoError(t, err)
	assert.Equal(t, resp.StatusCode, http.StatusOK)
	_ = resp.Body.Close()

	resp, err = http.Get(ts.URL + "/server/ready")
	assert.NoError(t, err)
	assert.Equal(t, resp.StatusCode, http.StatusOK)
	_ = resp.Body.Close()
}

func TestReadinessFailure(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.OTelConfig = nil
	srv, err := NewServer(context.Background(), cfg, NewHarvesterServer(&fakeSession{}, notify.NewFeed(1)),
		func(ctx context.Context) error { return errors.New("rpc down") })
	assert.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/server/ready", nil))
	assert.Equal(t, rec.Code, http.StatusServiceUnavailable)
	assert.True(t, strings.Contains(rec.Body.String(), "rpc down"))
}

func TestGetPosition(t *testing.T) {
	id := "0xcap"
	ts := newTestServer(t, &fakeSession{position: &id}, notify.NewFeed(10))

	status, body := call(t, ts, GetPositionProcedure, `{}`)
	assert.Equal(t, status, http.StatusOK)
	assert.Equal(t, body["account"], "0xme")
	assert.Equal(t, body["network"], "testnet")
	assert.Equal(t, body["position_id"], "0xcap")
}

func TestClaim(t *testing.T) {
	ts := newTestServer(t, &fakeSession{}, notify.NewFeed(10))

	status, body := call(t, ts, ClaimProcedure, `{}`)
	assert.Equal(t, status, http.StatusOK)
	assert.Equal(t, body["digest"], "DIGEST")
	assert.Equal(t, body["explorer_url"], "https://suivision.xyz/txblock/DIGEST?network=testnet")
	assert.Equal(t, len(body["staged"].([]any)), 1)
}

func TestClaimFailureIsFailedPrecondition(t *testing.T) {
	fake := &fakeSession{claimErr: &claim.FailedError{Err: errors.New("user rejected")}}
	ts := newTestServer(t, fake, notify.NewFeed(10))

	status, body := call(t, ts, ClaimProcedure, `{}`)
	assert.Equal(t, status, http.StatusBadRequest)
	assert.Equal(t, body["code"], "failed_precondition")
	assert.True(t, strings.Contains(body["message"].(string), "user rejected"))
}

func TestSwapPendingErrors(t *testing.T) {
	fake := &fakeSession{swapErr: orchestrator.ErrNoPendingSwaps}
	ts := newTestServer(t, fake, notify.NewFeed(10))

	_, body := call(t, ts, SwapPendingProcedure, `{}`)
	assert.Equal(t, body["code"], "failed_precondition")

	fake.swapErr = session.ErrBusy
	_, body = call(t, ts, SwapPendingProcedure, `{}`)
	assert.Equal(t, body["code"], "unavailable")
}

func TestSwapPendingSummary(t *testing.T) {
	fake := &fakeSession{summary: models.BatchSummary{
		RunID:          "run",
		Provider:       "7k",
		SuccessCount:   1,
		TotalAttempted: 2,
		Remaining:      models.StagedSwapSet{{TokenID: "0x2::sui::SUI", DecimalAmount: "2"}},
	}}
	ts := newTestServer(t, fake, notify.NewFeed(10))

	status, body := call(t, ts, SwapPendingProcedure, `{}`)
	assert.Equal(t, status, http.StatusOK)
	summary := body["summary"].(map[string]any)
	assert.Equal(t, summary["success_count"], float64(1))
	assert.Equal(t, summary["total_attempted"], float64(2))
}

func TestGetStagedNeverNull(t *testing.T) {
	ts := newTestServer(t, &fakeSession{selection: brokers.ProviderCetus}, notify.NewFeed(10))

	_, body := call(t, ts, GetStagedProcedure, `{}`)
	assert.Equal(t, body["provider"], "cetus")
	assert.Equal(t, len(body["staged"].([]any)), 0)
}

func TestSelectRouter(t *testing.T) {
	fake := &fakeSession{selection: brokers.ProviderSevenK}
	ts := newTestServer(t, fake, notify.NewFeed(10))

	status, body := call(t, ts, SelectRouterProcedure, `{"provider":"b"}`)
	assert.Equal(t, status, http.StatusOK)
	assert.Equal(t, body["provider"], "cetus")
	assert.Equal(t, fake.selection, brokers.ProviderCetus)

	_, body = call(t, ts, SelectRouterProcedure, `{"provider":"uniswap"}`)
	assert.Equal(t, body["code"], "invalid_argument")
}

func TestListNotifications(t *testing.T) {
	feed := notify.NewFeed(10)
	feed.Success("Claim submitted: DIGEST")
	feed.Error("No route for USDC")
	ts := newTestServer(t, &fakeSession{}, feed)

	_, body := call(t, ts, ListNotificationsProcedure, `{"after_id":1}`)
	items := body["notifications"].([]any)
	assert.Equal(t, len(items), 1)
	first := items[0].(map[string]any)
	assert.Equal(t, first["level"], "error")
	assert.Equal(t, first["message"], "No route for USDC")
}

func TestToConnectErrorUnknown(t *testing.T) {
	err := toConnectError(errors.New("boom"))
	assert.True(t, strings.Contains(err.Error(), "internal"))
}
