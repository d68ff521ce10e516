package simulation

import "github.com/shopspring/decimal"

// shares of the prize pool for positions 1..4
var prizeShares = []decimal.Decimal{
	decimal.New(40, -2),
	decimal.New(30, -2),
	decimal.New(20, -2),
	decimal.New(10, -2),
}

const prizeDecimals = 2

// PrizedPositions is the number of positions receiving a prize
func PrizedPositions() int {
	return len(prizeShares)
}

// PrizeTable splits the pool into the prizes for positions 1..4.
// Each share is truncated to cents, the residue is added to the winner,
// so the entries always sum up to the pool.
func PrizeTable(pool decimal.Decimal) []decimal.Decimal {
	ret := make([]decimal.Decimal, len(prizeShares))
	sum := decimal.Zero
	for i, share := range prizeShares {
		ret[i] = pool.Mul(share).Truncate(prizeDecimals)
		sum = sum.Add(ret[i])
	}
	ret[0] = ret[0].Add(pool.Sub(sum))
	return ret
}

// Prize returns the prize for a 1-based position
func Prize(pool decimal.Decimal, position int) decimal.Decimal {
	if position < 1 || position > len(prizeShares) {
		return decimal.Zero
	}
	return PrizeTable(pool)[position-1]
}
