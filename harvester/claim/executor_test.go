package claim

import (
	"context"
	"errors"
	"testing"

	"github.com/zeebo/assert"

	"github.com/Cogwheel-Validator/spectra-harvest/harvester/models"
)

type mockRewards struct {
	snapshot models.RewardSnapshot
	err      error
	calls    int
}

func (m *mockRewards) Fetch(ctx context.Context, account string) (models.RewardSnapshot, error) {
	m.calls++
	return m.snapshot, m.err
}

type mockBuilder struct {
	err error
}

func (m *mockBuilder) BuildClaimTransaction(ctx context.Context, positionID, account string) (models.Transaction, error) {
	if m.err != nil {
		return models.Transaction{}, m.err
	}
	return models.Transaction{Kind: "claim", Bytes: []byte(positionID)}, nil
}

type mockSigner struct {
	err   error
	calls int
}

func (m *mockSigner) SignAndExecute(ctx context.Context, tx models.Transaction) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return "CLAIM_DIGEST", nil
}

func TestClaim_StagesPositiveLines(t *testing.T) {
	rewards := &mockRewards{snapshot: models.RewardSnapshot{
		UsdTotal: "3.2",
		Lines: []models.RewardLine{
			{TokenID: "USDC", DecimalAmount: "1"},
			{TokenID: "SUI", DecimalAmount: "0"},
			{TokenID: "ALPHA", DecimalAmount: "50"},
			{TokenID: "BAD", DecimalAmount: "??"},
		},
	}}
	signer := &mockSigner{}
	exec := NewExecutor(rewards, &mockBuilder{}, signer)

	res, err := exec.Claim(context.Background(), "0xcap", "0xme")
	assert.NoError(t, err)
	assert.Equal(t, res.Digest, "CLAIM_DIGEST")
	assert.Equal(t, res.Snapshot.Digest(), "CLAIM_DIGEST")
	assert.Equal(t, len(res.Snapshot.Lines()), 4)
	assert.DeepEqual(t, res.Staged, models.StagedSwapSet{
		{TokenID: "USDC", DecimalAmount: "1"},
		{TokenID: "ALPHA", DecimalAmount: "50"},
	})
	assert.Equal(t, rewards.calls, 1)
	assert.Equal(t, signer.calls, 1)
}

func TestClaim_SnapshotIsFrozen(t *testing.T) {
	lines := []models.RewardLine{{TokenID: "USDC", DecimalAmount: "1"}}
	exec := NewExecutor(&mockRewards{snapshot: models.RewardSnapshot{Lines: lines}}, &mockBuilder{}, &mockSigner{})

	res, err := exec.Claim(context.Background(), "0xcap", "0xme")
	assert.NoError(t, err)

	lines[0].DecimalAmount = "999"
	got := res.Snapshot.Lines()
	got[0].DecimalAmount = "777"
	assert.Equal(t, res.Snapshot.Lines()[0].DecimalAmount, "1")
}

func TestClaim_SignFailureCreatesNothing(t *testing.T) {
	exec := NewExecutor(
		&mockRewards{snapshot: models.RewardSnapshot{Lines: []models.RewardLine{{TokenID: "USDC", DecimalAmount: "1"}}}},
		&mockBuilder{},
		&mockSigner{err: errors.New("user rejected")},
	)

	res, err := exec.Claim(context.Background(), "0xcap", "0xme")
	assert.True(t, res == nil)
	var fe *FailedError
	assert.True(t, errors.As(err, &fe))
	assert.Equal(t, err.Error(), "claim failed: user rejected")
}

func TestClaim_BuildAndLookupFailures(t *testing.T) {
	signer := &mockSigner{}
	exec := NewExecutor(&mockRewards{}, &mockBuilder{err: errors.New("rpc")}, signer)
	_, err := exec.Claim(context.Background(), "0xcap", "0xme")
	assert.Error(t, err)
	assert.Equal(t, signer.calls, 0)

	exec = NewExecutor(&mockRewards{err: errors.New("down")}, &mockBuilder{}, signer)
	_, err = exec.Claim(context.Background(), "0xcap", "0xme")
	assert.Error(t, err)
	assert.Equal(t, signer.calls, 0)

	_, err = exec.Claim(context.Background(), "", "0xme")
	var fe *FailedError
	assert.True(t, errors.As(err, &fe))
}
