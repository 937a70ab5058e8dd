package cetus

import (
	"github.com/shopspring/decimal"

	"github.com/Cogwheel-Validator/spectra-harvest/harvester/sui"
)

// SelectPool picks the pool with the greatest liquidity. When any liquidity
// value can't be parsed the pools can't be ordered and the first one is used.
// Equal liquidity keeps the earlier pool.
func SelectPool(pools []Pool) (Pool, bool) {
	if len(pools) == 0 {
		return Pool{}, false
	}

	best := 0
	var bestLiquidity decimal.Decimal
	for i, p := range pools {
		liq, err := decimal.NewFromString(p.Liquidity)
		if err != nil {
			log.Debug().Str("pool", p.PoolAddress).Str("liquidity", p.Liquidity).Msg("Unorderable liquidity, using first pool")
			return pools[0], true
		}
		if i == 0 || liq.GreaterThan(bestLiquidity) {
			best = i
			bestLiquidity = liq
		}
	}
	return pools[best], true
}

// matchingPools keeps the pools that trade exactly tokenIn against tokenOut
func matchingPools(pools []Pool, tokenIn, tokenOut string) []Pool {
	out := make([]Pool, 0, len(pools))
	for _, p := range pools {
		forward := sui.SameCoinType(p.CoinTypeA, tokenIn) && sui.SameCoinType(p.CoinTypeB, tokenOut)
		backward := sui.SameCoinType(p.CoinTypeA, tokenOut) && sui.SameCoinType(p.CoinTypeB, tokenIn)
		if forward || backward {
			out = append(out, p)
		}
	}
	return out
}
