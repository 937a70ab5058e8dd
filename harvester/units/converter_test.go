package units

import (
	"errors"
	"math/big"
	"math/rand"
	"testing"

	"github.com/zeebo/assert"
)

func TestToRawUnits(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		decimals int
		want     string
	}{
		{"fraction padded", "1.5", 6, "1500000"},
		{"whole number scaled", "5", 9, "5000000000"},
		{"fraction truncated", "0.1234567", 6, "123456"},
		{"leading dot", ".25", 2, "25"},
		{"trailing dot", "3.", 2, "300"},
		{"zero decimals", "42.9", 0, "42"},
		{"tiny amount rounds to zero", "0.0000001", 6, "0"},
		{"negative", "-1.5", 6, "-1500000"},
		{"large amount", "123456789012345678901234567890.123456789", 9, "123456789012345678901234567890123456789"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToRawUnits(tt.amount, tt.decimals)
			assert.NoError(t, err)
			assert.Equal(t, got, tt.want)
		})
	}
}

func TestToRawUnits_InvalidAmount(t *testing.T) {
	for _, in := range []string{"", "abc", "1.2.3", "1e5", "0x10", ".", "-", "1,5"} {
		_, err := ToRawUnits(in, 6)
		assert.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidAmount))
	}

	_, err := ToRawUnits("1", -1)
	assert.True(t, errors.Is(err, ErrInvalidAmount))
}

func TestFromRawUnits(t *testing.T) {
	assert.Equal(t, FromRawUnits(big.NewInt(1500000), 6), "1.5")
	assert.Equal(t, FromRawUnits(big.NewInt(0), 9), "0")
	assert.Equal(t, FromRawUnits(big.NewInt(123456789), 6), "123.456789")
	assert.Equal(t, FromRawUnits(big.NewInt(2000000), 6), "2")
	assert.Equal(t, FromRawUnits(big.NewInt(5), 9), "0.000000005")
	assert.Equal(t, FromRawUnits(big.NewInt(-1500000), 6), "-1.5")
	assert.Equal(t, FromRawUnits(big.NewInt(77), 0), "77")
	assert.Equal(t, FromRawUnits(nil, 6), "0")
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		v := new(big.Int).Rand(rng, new(big.Int).Exp(big.NewInt(10), big.NewInt(30), nil))
		d := rng.Intn(19)

		back, err := ToRawUnits(FromRawUnits(v, d), d)
		assert.NoError(t, err)
		assert.Equal(t, back, v.String())
	}

	// edge values
	for _, d := range []int{0, 1, 6, 9, 18} {
		for _, v := range []int64{0, 1, 10, 1000000000} {
			back, err := ToRawUnits(FromRawUnits(big.NewInt(v), d), d)
			assert.NoError(t, err)
			assert.Equal(t, back, big.NewInt(v).String())
		}
	}
}

func TestIsPositive(t *testing.T) {
	assert.True(t, IsPositive("0.0001"))
	assert.True(t, IsPositive("50"))
	assert.False(t, IsPositive("0"))
	assert.False(t, IsPositive("0.000"))
	assert.False(t, IsPositive("-1"))
	assert.False(t, IsPositive("nope"))
}

func TestSymbolFromType(t *testing.T) {
	assert.Equal(t, SymbolFromType("0x2::sui::SUI"), "SUI")
	assert.Equal(t, SymbolFromType("0x5d4b::coin::COIN"), "COIN")
	assert.Equal(t, SymbolFromType("0x1::lp::LP<0x2::sui::SUI, 0x3::usdc::USDC>"), "LP")
	assert.Equal(t, SymbolFromType("weird"), "weird")
	assert.Equal(t, SymbolFromType("0x2::sui::"), "0x2::sui::")
}
