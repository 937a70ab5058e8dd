package sui

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
	"golang.org/x/crypto/blake2b"
)

const (
	// PrivateKeyPrefix is the bech32 hrp of exported Sui private keys
	PrivateKeyPrefix = "suiprivkey"
	// ed25519Flag is the signature scheme flag for ed25519
	ed25519Flag byte = 0x00
)

// intent scope TransactionData, version V0, app id Sui
var transactionIntent = []byte{0, 0, 0}

// Keypair is an ed25519 Sui keypair.
type Keypair struct {
	private ed25519.PrivateKey
	public  ed25519.PublicKey
}

// KeypairFromSeed builds a keypair from a 32 byte ed25519 seed.
func KeypairFromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Keypair{private: priv, public: priv.Public().(ed25519.PublicKey)}, nil
}

/*
KeypairFromBech32 decodes a `suiprivkey1...` string as exported by Sui wallets.

Parameters:
  - encoded: the bech32 private key

Returns:
  - *Keypair: the keypair
  - error: if the string isn't a valid ed25519 Sui private key
*/
func KeypairFromBech32(encoded string) (*Keypair, error) {
	hrp, data, err := bech32.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	if hrp != PrivateKeyPrefix {
		return nil, fmt.Errorf("unexpected key prefix %q", hrp)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, fmt.Errorf("failed to convert key bits: %w", err)
	}
	if len(raw) != 1+ed25519.SeedSize {
		return nil, fmt.Errorf("unexpected key length %d", len(raw))
	}
	if raw[0] != ed25519Flag {
		return nil, fmt.Errorf("unsupported key scheme flag 0x%02x, only ed25519 is supported", raw[0])
	}
	return KeypairFromSeed(raw[1:])
}

// Bech32 exports the keypair in the `suiprivkey` format.
func (k *Keypair) Bech32() (string, error) {
	raw := append([]byte{ed25519Flag}, k.private.Seed()...)
	conv, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(PrivateKeyPrefix, conv)
}

// PublicKey returns the raw 32 byte public key.
func (k *Keypair) PublicKey() []byte {
	out := make([]byte, len(k.public))
	copy(out, k.public)
	return out
}

// Address returns the 0x prefixed Sui address of the keypair.
func (k *Keypair) Address() string {
	sum := blake2b.Sum256(append([]byte{ed25519Flag}, k.public...))
	return "0x" + hex.EncodeToString(sum[:])
}

// SignTransaction signs BCS transaction bytes and returns the serialized
// signature (flag || signature || public key) in base64.
func (k *Keypair) SignTransaction(txBytes []byte) string {
	msg := make([]byte, 0, len(transactionIntent)+len(txBytes))
	msg = append(msg, transactionIntent...)
	msg = append(msg, txBytes...)
	digest := blake2b.Sum256(msg)

	sig := ed25519.Sign(k.private, digest[:])

	serialized := make([]byte, 0, 1+len(sig)+len(k.public))
	serialized = append(serialized, ed25519Flag)
	serialized = append(serialized, sig...)
	serialized = append(serialized, k.public...)
	return base64.StdEncoding.EncodeToString(serialized)
}
