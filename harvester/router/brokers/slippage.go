package brokers

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CalculateMinOutput applies a slippage fraction to an expected raw output.
// minOutput = floor(expected * (1 - slippage))
func CalculateMinOutput(expectedOutput string, slippage decimal.Decimal) (string, error) {
	expected, err := decimal.NewFromString(expectedOutput)
	if err != nil {
		return "", fmt.Errorf("failed to parse expected output: %w", err)
	}
	if slippage.IsNegative() || slippage.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return "", fmt.Errorf("slippage must be in [0, 1), got %s", slippage)
	}

	minOutput := expected.Mul(decimal.NewFromInt(1).Sub(slippage)).Floor()
	return minOutput.String(), nil
}

// SlippageToBps converts a fraction into basis points, 0.005 becomes 50.
func SlippageToBps(slippage decimal.Decimal) uint32 {
	return uint32(slippage.Mul(decimal.NewFromInt(10000)).Round(0).IntPart())
}
