package units

import "strings"

// SymbolFromType extracts the struct name from a Move coin type, so
// "0x2::sui::SUI" becomes "SUI". Anything that isn't address::module::name
// is returned as is.
func SymbolFromType(coinType string) string {
	parts := strings.Split(coinType, "::")
	if len(parts) < 3 || parts[2] == "" {
		return coinType
	}
	// generic coin types like 0x..::lp::LP<0x2::sui::SUI, ...>
	name, _, _ := strings.Cut(parts[2], "<")
	if name == "" {
		return coinType
	}
	return name
}
