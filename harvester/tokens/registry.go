// Package tokens keeps the list of known coins (symbol, coin type, decimals)
// so config and API callers can say "USDC" instead of a full coin type.
package tokens

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	getter "github.com/hashicorp/go-getter"
	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"

	"github.com/Cogwheel-Validator/spectra-harvest/harvester/sui"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "tokens").Logger()
}

// SetLogger replaces the package logger.
func SetLogger(l zerolog.Logger) {
	log = l.With().Str("component", "tokens").Logger()
}

// Token is one registry entry
type Token struct {
	Symbol   string `toml:"symbol"`
	CoinType string `toml:"coin_type"`
	Decimals int    `toml:"decimals"`
}

// RegistryFile is the TOML document layout
type RegistryFile struct {
	Tokens []Token `toml:"tokens"`
}

// Registry indexes tokens by symbol and normalized coin type.
type Registry struct {
	mu       sync.RWMutex
	bySymbol map[string]Token
	byType   map[string]Token
}

// NewRegistry builds a registry from a token list. Later entries win.
func NewRegistry(tokens []Token) (*Registry, error) {
	r := &Registry{
		bySymbol: make(map[string]Token),
		byType:   make(map[string]Token),
	}
	for _, t := range tokens {
		if err := r.Add(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add validates and indexes one token.
func (r *Registry) Add(t Token) error {
	if t.CoinType == "" || strings.Count(t.CoinType, "::") < 2 {
		return fmt.Errorf("token %q: invalid coin type %q", t.Symbol, t.CoinType)
	}
	if t.Decimals < 0 || t.Decimals > 38 {
		return fmt.Errorf("token %q: decimals out of range", t.Symbol)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.Symbol != "" {
		r.bySymbol[strings.ToUpper(t.Symbol)] = t
	}
	r.byType[sui.NormalizeCoinType(t.CoinType)] = t
	return nil
}

// Len returns the number of distinct coin types.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byType)
}

// Resolve turns a symbol into its coin type. Coin types pass through untouched.
func (r *Registry) Resolve(symbolOrType string) (string, error) {
	if strings.Contains(symbolOrType, "::") {
		return symbolOrType, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.bySymbol[strings.ToUpper(symbolOrType)]
	if !ok {
		return "", fmt.Errorf("unknown token symbol %q", symbolOrType)
	}
	return t.CoinType, nil
}

// Lookup returns the registry entry for a coin type.
func (r *Registry) Lookup(coinType string) (Token, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byType[sui.NormalizeCoinType(coinType)]
	return t, ok
}

// ParseRegistry decodes a TOML registry document.
func ParseRegistry(data []byte) (*Registry, error) {
	var file RegistryFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse token registry: %w", err)
	}
	return NewRegistry(file.Tokens)
}

/*
LoadRegistry fetches a token registry and parses it.

Parameters:
  - ctx: bounds the download
  - src: any go-getter source, a local path, an https url, a git file, etc.

Returns:
  - *Registry: the parsed registry, empty when src is empty
  - error: if the file can't be fetched or parsed
*/
func LoadRegistry(ctx context.Context, src string) (*Registry, error) {
	if src == "" {
		return NewRegistry(nil)
	}

	dir, err := os.MkdirTemp("", "harvester-tokens-")
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = os.RemoveAll(dir)
	}()
	dst := filepath.Join(dir, "tokens.toml")

	pwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	client := getter.Client{
		Ctx:  ctx,
		Src:  src,
		Dst:  dst,
		Pwd:  pwd,
		Mode: getter.ClientModeFile,
	}
	if err := client.Get(); err != nil {
		return nil, fmt.Errorf("failed to fetch token registry from %s: %w", src, err)
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		return nil, fmt.Errorf("failed to read token registry: %w", err)
	}
	registry, err := ParseRegistry(data)
	if err != nil {
		return nil, err
	}
	log.Info().Str("source", src).Int("tokens", registry.Len()).Msg("Token registry loaded")
	return registry, nil
}
