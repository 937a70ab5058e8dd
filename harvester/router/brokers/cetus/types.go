package cetus

// Pool is a CLMM pool as returned by the pools endpoint
type Pool struct {
	PoolAddress string `json:"pool_address"`
	CoinTypeA   string `json:"coin_type_a"`
	CoinTypeB   string `json:"coin_type_b"`
	Liquidity   string `json:"liquidity"`
	FeeRate     string `json:"fee_rate,omitempty"`
}

// PoolsResponse is the GET /pools answer
type PoolsResponse struct {
	Pools []Pool `json:"pools"`
}

// PreSwapRequest asks for a swap preview on one pool
type PreSwapRequest struct {
	PoolAddress string `json:"pool_address"`
	CoinTypeA   string `json:"coin_type_a"`
	CoinTypeB   string `json:"coin_type_b"`
	A2B         bool   `json:"a2b"`
	ByAmountIn  bool   `json:"by_amount_in"`
	Amount      string `json:"amount"`
}

// PreSwapResponse is the advisory preview
type PreSwapResponse struct {
	EstimatedAmountIn  string `json:"estimated_amount_in"`
	EstimatedAmountOut string `json:"estimated_amount_out"`
	EstimatedFeeAmount string `json:"estimated_fee_amount"`
	IsExceed           bool   `json:"is_exceed"`
}

// SwapBuildRequest asks for an unsigned swap transaction
type SwapBuildRequest struct {
	PoolAddress string `json:"pool_address"`
	CoinTypeA   string `json:"coin_type_a"`
	CoinTypeB   string `json:"coin_type_b"`
	A2B         bool   `json:"a2b"`
	ByAmountIn  bool   `json:"by_amount_in"`
	Amount      string `json:"amount"`
	// AmountLimit is the minimum output accepted, "0" lets the builder
	// derive it from SlippageBps
	AmountLimit string `json:"amount_limit"`
	SlippageBps uint32 `json:"slippage_bps"`
	Sender      string `json:"sender"`
}

// SwapBuildResponse carries the unsigned transaction
type SwapBuildResponse struct {
	TxBytes string `json:"tx_bytes"`
}

// RouteData is the pool and direction chosen at quote time
type RouteData struct {
	Pool Pool
	A2B  bool
}

// GetSwapVenueName implements brokers.RouteData
func (r *RouteData) GetSwapVenueName() string {
	return "cetus-clmm"
}
