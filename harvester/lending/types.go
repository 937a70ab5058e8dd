package lending

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DiscoveryError wraps a failed lookup against the lending API. It is never
// fatal, callers keep their previous value and report it.
type DiscoveryError struct {
	Op      string // "position" or "portfolio"
	Account string
	Err     error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("%s lookup for %s failed: %v", e.Op, e.Account, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

type positionCapResponse struct {
	PositionCapID *string `json:"position_cap_id"`
}

type rewardToClaim struct {
	CoinType     string          `json:"coin_type"`
	RewardAmount decimal.Decimal `json:"reward_amount"`
}

type portfolioRecord struct {
	PositionID        string          `json:"position_id"`
	RewardsToClaimUsd decimal.Decimal `json:"rewards_to_claim_usd"`
	RewardsToClaim    []rewardToClaim `json:"rewards_to_claim"`
}

type claimRequest struct {
	PositionCapID string `json:"position_cap_id"`
	Address       string `json:"address"`
	// both false claims rewards to the wallet instead of redepositing them
	ClaimAndDepositAlpha bool `json:"claim_and_deposit_alpha"`
	ClaimAndDepositAll   bool `json:"claim_and_deposit_all"`
}

type claimResponse struct {
	TxBytes string `json:"tx_bytes"`
}
