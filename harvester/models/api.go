package models

// Request and response messages of the harvester API. They travel as JSON
// over the Connect protocol.

type GetPositionRequest struct{}

type GetPositionResponse struct {
	Account    string  `json:"account"`
	Network    string  `json:"network"`
	PositionID *string `json:"position_id"`
}

type GetRewardsRequest struct {
	// Refresh re-reads the portfolio instead of returning the cached snapshot
	Refresh bool `json:"refresh,omitempty"`
}

type GetRewardsResponse struct {
	Rewards RewardSnapshot `json:"rewards"`
}

type ClaimRequest struct{}

type ClaimResponse struct {
	Digest      string        `json:"digest"`
	ExplorerURL string        `json:"explorer_url"`
	Staged      StagedSwapSet `json:"staged"`
	Confirmed   bool          `json:"confirmed"`
	Summary     *BatchSummary `json:"summary,omitempty"`
}

type SwapPendingRequest struct{}

type SwapPendingResponse struct {
	Summary BatchSummary `json:"summary"`
}

type GetStagedRequest struct{}

type GetStagedResponse struct {
	Provider string        `json:"provider"`
	Staged   StagedSwapSet `json:"staged"`
}

type SelectRouterRequest struct {
	Provider string `json:"provider"`
}

type SelectRouterResponse struct {
	Provider string `json:"provider"`
}

type ListNotificationsRequest struct {
	AfterID uint64 `json:"after_id,omitempty"`
}

// NotificationMessage mirrors notify.Notification on the wire.
type NotificationMessage struct {
	ID      uint64 `json:"id"`
	Level   string `json:"level"`
	Message string `json:"message"`
	Time    string `json:"time"`
}

type ListNotificationsResponse struct {
	Notifications []NotificationMessage `json:"notifications"`
}
