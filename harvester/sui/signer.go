package sui

import (
	"context"
	"errors"
	"fmt"

	"github.com/Cogwheel-Validator/spectra-harvest/harvester/models"
)

// Executor submits signed transactions.
type Executor interface {
	ExecuteTransactionBlock(ctx context.Context, txBytes []byte, signature string) (*TransactionResponse, error)
}

// Signer signs transactions locally and submits them. Only one submission is
// in flight at a time, later callers wait for the slot or their context.
type Signer struct {
	keypair  *Keypair
	executor Executor
	slot     chan struct{}
}

// NewSigner creates a signer for keypair that submits through executor.
func NewSigner(keypair *Keypair, executor Executor) *Signer {
	return &Signer{
		keypair:  keypair,
		executor: executor,
		slot:     make(chan struct{}, 1),
	}
}

// Address is the account that signs.
func (s *Signer) Address() string {
	return s.keypair.Address()
}

// SignAndExecute signs tx, submits it and returns the digest once the node
// reports the execution result.
func (s *Signer) SignAndExecute(ctx context.Context, tx models.Transaction) (string, error) {
	if len(tx.Bytes) == 0 {
		return "", errors.New("empty transaction")
	}

	select {
	case s.slot <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-s.slot }()

	signature := s.keypair.SignTransaction(tx.Bytes)
	resp, err := s.executor.ExecuteTransactionBlock(ctx, tx.Bytes, signature)
	if err != nil {
		return "", fmt.Errorf("submit %s transaction: %w", tx.Kind, err)
	}
	if resp.Effects != nil && !resp.Succeeded() {
		return resp.Digest, fmt.Errorf("%s transaction %s failed: %s", tx.Kind, resp.Digest, resp.Effects.Status.Error)
	}

	log.Info().Str("kind", tx.Kind).Str("digest", resp.Digest).Msg("Transaction executed")
	return resp.Digest, nil
}
