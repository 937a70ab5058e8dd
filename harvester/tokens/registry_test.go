package tokens

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/zeebo/assert"
)

const registryTOML = `
[[tokens]]
symbol = "USDC"
coin_type = "0xdba34672e30cb065b1f93e3ab55318768fd6fef66c15942c9f7cb846e2f900e7::usdc::USDC"
decimals = 6

[[tokens]]
symbol = "SUI"
coin_type = "0x2::sui::SUI"
decimals = 9
`

func TestParseRegistry(t *testing.T) {
	r, err := ParseRegistry([]byte(registryTOML))
	assert.NoError(t, err)
	assert.Equal(t, r.Len(), 2)

	coinType, err := r.Resolve("usdc")
	assert.NoError(t, err)
	assert.Equal(t, coinType, "0xdba34672e30cb065b1f93e3ab55318768fd6fef66c15942c9f7cb846e2f900e7::usdc::USDC")

	passthrough, err := r.Resolve("0x9::x::X")
	assert.NoError(t, err)
	assert.Equal(t, passthrough, "0x9::x::X")

	_, err = r.Resolve("DOGE")
	assert.Error(t, err)

	tok, ok := r.Lookup("0x0000000000000000000000000000000000000000000000000000000000000002::sui::SUI")
	assert.True(t, ok)
	assert.Equal(t, tok.Decimals, 9)
}

func TestParseRegistry_Invalid(t *testing.T) {
	_, err := ParseRegistry([]byte(`[[tokens]]
symbol = "BAD"
coin_type = "nope"
decimals = 6
`))
	assert.Error(t, err)

	_, err = ParseRegistry([]byte(`not toml = = =`))
	assert.Error(t, err)
}

func TestLoadRegistry_LocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.toml")
	assert.NoError(t, os.WriteFile(path, []byte(registryTOML), 0o600))

	r, err := LoadRegistry(context.Background(), path)
	assert.NoError(t, err)
	assert.Equal(t, r.Len(), 2)
}

func TestLoadRegistry_Empty(t *testing.T) {
	r, err := LoadRegistry(context.Background(), "")
	assert.NoError(t, err)
	assert.Equal(t, r.Len(), 0)
}

type stubDecimals struct {
	calls int
	err   error
}

func (s *stubDecimals) GetDecimals(ctx context.Context, coinType string) (int, error) {
	s.calls++
	return 8, s.err
}

func TestMetadata_RegistryFirst(t *testing.T) {
	r, err := ParseRegistry([]byte(registryTOML))
	assert.NoError(t, err)
	chain := &stubDecimals{}
	m := NewMetadata(r, chain)

	d, err := m.GetDecimals(context.Background(), "0x2::sui::SUI")
	assert.NoError(t, err)
	assert.Equal(t, d, 9)
	assert.Equal(t, chain.calls, 0)

	d, err = m.GetDecimals(context.Background(), "0x7::wal::WAL")
	assert.NoError(t, err)
	assert.Equal(t, d, 8)
	assert.Equal(t, chain.calls, 1)

	chain.err = errors.New("rpc down")
	_, err = m.GetDecimals(context.Background(), "0x7::wal::WAL")
	assert.Error(t, err)

	_, err = NewMetadata(nil, nil).GetDecimals(context.Background(), "0x7::wal::WAL")
	assert.Error(t, err)
}
