package sevenk

import "encoding/json"

// QuoteResponse is the aggregator answer to GET /quote
type QuoteResponse struct {
	TokenIn      string          `json:"tokenIn"`
	TokenOut     string          `json:"tokenOut"`
	SwapAmount   string          `json:"swapAmount"`
	ReturnAmount string          `json:"returnAmount"`
	PriceImpact  json.Number     `json:"priceImpact"`
	Routes       json.RawMessage `json:"routes"`
	Swaps        json.RawMessage `json:"swaps"`
}

// hasRoute reports whether the aggregator actually found a path
func (q *QuoteResponse) hasRoute() bool {
	if len(q.Routes) == 0 || string(q.Routes) == "null" || string(q.Routes) == "[]" {
		return false
	}
	return q.ReturnAmount != "" && q.ReturnAmount != "0"
}

// BuildRequest is the POST /build body. The quote is echoed back verbatim.
type BuildRequest struct {
	Quote          json.RawMessage `json:"quoteResponse"`
	AccountAddress string          `json:"accountAddress"`
	Slippage       string          `json:"slippage"`
	Commission     Commission      `json:"commission"`
}

// Commission is the partner fee, zero bps when unused.
type Commission struct {
	Partner       string `json:"partner"`
	CommissionBps uint32 `json:"commissionBps"`
}

// BuildResponse carries the unsigned transaction.
type BuildResponse struct {
	TxBytes string `json:"txBytes"`
}

// RouteData keeps the raw aggregator quote between Quote and Build.
type RouteData struct {
	raw json.RawMessage
}

// GetSwapVenueName implements brokers.RouteData
func (r *RouteData) GetSwapVenueName() string {
	return "7k-aggregator"
}
