package models

import "time"

// RewardLine is a claimable reward for one token in human decimal form.
type RewardLine struct {
	TokenID       string `json:"token_id"`       // coin type, e.g. "0x2::sui::SUI"
	DecimalAmount string `json:"decimal_amount"` // e.g. "1.25"
}

// RewardSnapshot is the portfolio view of claimable rewards.
type RewardSnapshot struct {
	UsdTotal string       `json:"usd_total"`
	Lines    []RewardLine `json:"lines"`
}

// EmptyRewardSnapshot is returned for accounts without a portfolio record.
func EmptyRewardSnapshot() RewardSnapshot {
	return RewardSnapshot{UsdTotal: "0", Lines: []RewardLine{}}
}

// ClaimSnapshot is the set of reward lines that were claimable when the claim
// was submitted. It is never mutated after creation, use Lines to get a copy.
type ClaimSnapshot struct {
	digest  string
	takenAt time.Time
	lines   []RewardLine
}

// NewClaimSnapshot freezes a copy of lines.
func NewClaimSnapshot(digest string, takenAt time.Time, lines []RewardLine) ClaimSnapshot {
	frozen := make([]RewardLine, len(lines))
	copy(frozen, lines)
	return ClaimSnapshot{digest: digest, takenAt: takenAt, lines: frozen}
}

// Digest is the claim transaction digest.
func (s ClaimSnapshot) Digest() string { return s.digest }

// TakenAt is when the rewards were read.
func (s ClaimSnapshot) TakenAt() time.Time { return s.takenAt }

// Lines returns a copy of the frozen reward lines.
func (s ClaimSnapshot) Lines() []RewardLine {
	out := make([]RewardLine, len(s.lines))
	copy(out, s.lines)
	return out
}

// StagedEntry is one reward amount waiting to be swapped.
type StagedEntry struct {
	TokenID       string `json:"token_id"`
	DecimalAmount string `json:"decimal_amount"`
}

// StagedSwapSet is the ordered queue of entries awaiting conversion.
type StagedSwapSet []StagedEntry

// Clone returns an independent copy.
func (s StagedSwapSet) Clone() StagedSwapSet {
	if s == nil {
		return nil
	}
	out := make(StagedSwapSet, len(s))
	copy(out, s)
	return out
}

// SwapAttemptOutcome is the result of driving one staged entry through the router.
type SwapAttemptOutcome struct {
	TokenID  string `json:"token_id"`
	Success  bool   `json:"success"`
	TxDigest string `json:"tx_digest,omitempty"`
	// Fallback is true when the entry only went through on the second attempt
	Fallback bool   `json:"fallback,omitempty"`
	Error    string `json:"error,omitempty"`  // taxonomy name, e.g. "NoRouteFound"
	Reason   string `json:"reason,omitempty"` // underlying error text
}

// BatchSummary aggregates one orchestrator run.
type BatchSummary struct {
	RunID          string               `json:"run_id"`
	Provider       string               `json:"provider"`
	SuccessCount   int                  `json:"success_count"`
	TotalAttempted int                  `json:"total_attempted"`
	Dropped        int                  `json:"dropped"`
	AlreadyTarget  int                  `json:"already_target"`
	Cancelled      bool                 `json:"cancelled,omitempty"`
	Outcomes       []SwapAttemptOutcome `json:"outcomes"`
	Remaining      StagedSwapSet        `json:"remaining"`
}

// HasRemaining reports whether some entries are still staged after the run.
func (b BatchSummary) HasRemaining() bool {
	return len(b.Remaining) > 0
}

// Transaction is an unsigned transaction ready to be signed, as BCS bytes.
type Transaction struct {
	// Kind is a short label for logs ("claim", "swap")
	Kind  string
	Bytes []byte
}
