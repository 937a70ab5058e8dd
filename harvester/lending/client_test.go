package lending

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/zeebo/assert"

	"github.com/Cogwheel-Validator/spectra-harvest/harvester/httpquery"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/sui"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(h)
	cfg := httpquery.DefaultFailoverConfig()
	cfg.RetryDelay = time.Millisecond
	cfg.MaxRetries = 0
	c, err := NewClient([]string{srv.URL}, sui.Testnet, cfg)
	assert.NoError(t, err)
	return c, srv
}

func TestResolve(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, r.URL.Query().Get("network"), "testnet")
		switch r.URL.Path {
		case "/v1/positions/0xwith/cap":
			_, _ = w.Write([]byte(`{"position_cap_id":"0xcap"}`))
		case "/v1/positions/0xnull/cap":
			_, _ = w.Write([]byte(`{"position_cap_id":null}`))
		case "/v1/positions/0xbroken/cap":
			w.WriteHeader(http.StatusBadGateway)
		default:
			http.NotFound(w, r)
		}
	})
	defer srv.Close()

	id, err := c.Resolve(context.Background(), "0xwith")
	assert.NoError(t, err)
	assert.Equal(t, *id, "0xcap")

	id, err = c.Resolve(context.Background(), "0xnull")
	assert.NoError(t, err)
	assert.True(t, id == nil)

	id, err = c.Resolve(context.Background(), "0xunknown")
	assert.NoError(t, err)
	assert.True(t, id == nil)

	_, err = c.Resolve(context.Background(), "0xbroken")
	var de *DiscoveryError
	assert.True(t, errors.As(err, &de))
	assert.Equal(t, de.Op, "position")
}

func TestFetch(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"position_id":"0xpos","rewards_to_claim_usd":"12.50","rewards_to_claim":[
				{"coin_type":"0x5::usdc::USDC","reward_amount":"1"},
				{"coin_type":"0xa1::alpha::ALPHA","reward_amount":50.25},
				{"coin_type":"0x2::sui::SUI","reward_amount":"0"}
			]},
			{"position_id":"0xother","rewards_to_claim_usd":"99","rewards_to_claim":[]}
		]`))
	})
	defer srv.Close()

	snap, err := c.Fetch(context.Background(), "0xme")
	assert.NoError(t, err)
	assert.Equal(t, snap.UsdTotal, "12.5")
	assert.Equal(t, len(snap.Lines), 3)
	assert.Equal(t, snap.Lines[0].TokenID, "0x5::usdc::USDC")
	assert.Equal(t, snap.Lines[0].DecimalAmount, "1")
	assert.Equal(t, snap.Lines[1].DecimalAmount, "50.25")
	assert.Equal(t, snap.Lines[2].DecimalAmount, "0")
}

func TestFetch_NoPortfolioIsEmpty(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	defer srv.Close()

	snap, err := c.Fetch(context.Background(), "0xme")
	assert.NoError(t, err)
	assert.Equal(t, snap.UsdTotal, "0")
	assert.Equal(t, len(snap.Lines), 0)
	assert.NotNil(t, snap.Lines)
}

func TestFetch_ErrorIsDiscoveryError(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer srv.Close()

	_, err := c.Fetch(context.Background(), "0xme")
	var de *DiscoveryError
	assert.True(t, errors.As(err, &de))
	assert.Equal(t, de.Op, "portfolio")
}

func TestBuildClaimTransaction(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, r.URL.Path, "/v1/claim")
		var req claimRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, req.PositionCapID, "0xcap")
		assert.Equal(t, req.Address, "0xme")
		assert.False(t, req.ClaimAndDepositAll)
		_ = json.NewEncoder(w).Encode(claimResponse{TxBytes: base64.StdEncoding.EncodeToString([]byte("claim"))})
	})
	defer srv.Close()

	tx, err := c.BuildClaimTransaction(context.Background(), "0xcap", "0xme")
	assert.NoError(t, err)
	assert.Equal(t, tx.Kind, "claim")
	assert.Equal(t, string(tx.Bytes), "claim")

	_, err = c.BuildClaimTransaction(context.Background(), "", "0xme")
	assert.Error(t, err)
}
