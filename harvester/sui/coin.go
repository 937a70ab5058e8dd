package sui

import "strings"

// NormalizeCoinType left pads the address part of a coin type to 64 hex
// digits so "0x2::sui::SUI" and the long form compare equal.
func NormalizeCoinType(coinType string) string {
	addr, rest, ok := strings.Cut(coinType, "::")
	if !ok {
		return coinType
	}
	return NormalizeAddress(addr) + "::" + rest
}

// NormalizeAddress lower cases an address and pads it to 32 bytes.
func NormalizeAddress(addr string) string {
	hex := strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(addr, "0x"), "0X"))
	if len(hex) < 64 {
		hex = strings.Repeat("0", 64-len(hex)) + hex
	}
	return "0x" + hex
}

// SameCoinType compares coin types ignoring address padding.
func SameCoinType(a, b string) bool {
	return NormalizeCoinType(a) == NormalizeCoinType(b)
}
