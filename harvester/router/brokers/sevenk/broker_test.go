package sevenk

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeebo/assert"

	"github.com/Cogwheel-Validator/spectra-harvest/harvester/httpquery"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/router/brokers"
)

const (
	sui  = "0x2::sui::SUI"
	usdc = "0x5::usdc::USDC"
)

func newTestBroker(t *testing.T, handler http.HandlerFunc) (*Broker, *httptest.Server) {
	srv := httptest.NewServer(handler)
	cfg := httpquery.DefaultFailoverConfig()
	cfg.RetryDelay = time.Millisecond
	b, err := NewBroker([]string{srv.URL}, cfg)
	assert.NoError(t, err)
	return b, srv
}

func TestQuote_ReturnsPlan(t *testing.T) {
	b, srv := newTestBroker(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, r.URL.Path, "/quote")
		assert.Equal(t, r.URL.Query().Get("from"), sui)
		assert.Equal(t, r.URL.Query().Get("to"), usdc)
		assert.Equal(t, r.URL.Query().Get("amount"), "1000000000")
		_, _ = w.Write([]byte(`{"swapAmount":"1000000000","returnAmount":"3512345","priceImpact":0.0012,"routes":[{"hops":[]}]}`))
	})
	defer srv.Close()

	plan, err := b.Quote(context.Background(), sui, usdc, "1000000000")
	assert.NoError(t, err)
	assert.NotNil(t, plan)
	assert.Equal(t, plan.AmountOut, "3512345")
	assert.Equal(t, plan.AmountIn, "1000000000")
	assert.Equal(t, plan.RouteData.GetSwapVenueName(), "7k-aggregator")
}

func TestQuote_NoRouteIsNil(t *testing.T) {
	b, srv := newTestBroker(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"swapAmount":"5","returnAmount":"0","routes":[]}`))
	})
	defer srv.Close()

	plan, err := b.Quote(context.Background(), sui, usdc, "5")
	assert.NoError(t, err)
	assert.True(t, plan == nil)
}

func TestQuote_ServerErrorIsError(t *testing.T) {
	b, srv := newTestBroker(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer srv.Close()

	_, err := b.Quote(context.Background(), sui, usdc, "5")
	assert.Error(t, err)
}

func TestBuildSwapTransaction(t *testing.T) {
	txBytes := []byte{1, 2, 3, 4}
	b, srv := newTestBroker(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/quote":
			_, _ = w.Write([]byte(`{"swapAmount":"10","returnAmount":"20","routes":[{"id":1}]}`))
		case "/build":
			var req BuildRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, req.AccountAddress, "0xabc")
			assert.Equal(t, req.Slippage, "0.01")
			assert.Equal(t, req.Commission.Partner, "0xabc")

			var echoed QuoteResponse
			assert.NoError(t, json.Unmarshal(req.Quote, &echoed))
			assert.Equal(t, echoed.ReturnAmount, "20")

			_ = json.NewEncoder(w).Encode(BuildResponse{TxBytes: base64.StdEncoding.EncodeToString(txBytes)})
		}
	})
	defer srv.Close()

	plan, err := b.Quote(context.Background(), sui, usdc, "10")
	assert.NoError(t, err)

	tx, err := b.BuildSwapTransaction(context.Background(), plan, "0xabc", decimal.RequireFromString("0.01"))
	assert.NoError(t, err)
	assert.Equal(t, tx.Kind, "swap")
	assert.DeepEqual(t, tx.Bytes, txBytes)
}

func TestSourcesAndPartner(t *testing.T) {
	b, srv := newTestBroker(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/quote":
			assert.DeepEqual(t, r.URL.Query()["sources"], []string{"cetus", "bluefin"})
			_, _ = w.Write([]byte(`{"swapAmount":"10","returnAmount":"20","routes":[{"id":1}]}`))
		case "/build":
			var req BuildRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, req.Commission.Partner, "0xpartner")
			_ = json.NewEncoder(w).Encode(BuildResponse{TxBytes: base64.StdEncoding.EncodeToString([]byte{9})})
		}
	})
	defer srv.Close()
	b.WithSources("cetus", "bluefin").WithPartner("0xpartner")

	plan, err := b.Quote(context.Background(), sui, usdc, "10")
	assert.NoError(t, err)
	_, err = b.BuildSwapTransaction(context.Background(), plan, "0xabc", decimal.RequireFromString("0.01"))
	assert.NoError(t, err)
}

type foreignRoute struct{}

func (foreignRoute) GetSwapVenueName() string { return "other" }

func TestBuildSwapTransaction_RejectsForeignPlan(t *testing.T) {
	b, srv := newTestBroker(t, func(w http.ResponseWriter, r *http.Request) {})
	defer srv.Close()

	_, err := b.BuildSwapTransaction(context.Background(), &brokers.QuotePlan{RouteData: foreignRoute{}}, "0xabc", decimal.Zero)
	assert.Error(t, err)

	_, err = b.BuildSwapTransaction(context.Background(), nil, "0xabc", decimal.Zero)
	assert.Error(t, err)
}

func TestBrokerIdentity(t *testing.T) {
	b, srv := newTestBroker(t, func(w http.ResponseWriter, r *http.Request) {})
	defer srv.Close()
	assert.Equal(t, b.GetBrokerType(), brokers.ProviderSevenK)
	assert.False(t, b.WaitsForClaimConfirmation())
}
