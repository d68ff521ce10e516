package simulation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPrizeTable(t *testing.T) {
	tests := []struct {
		name string
		pool string
		want []string
	}{
		{name: "round pool", pool: "5000", want: []string{"2000", "1500", "1000", "500"}},
		{name: "zero pool", pool: "0", want: []string{"0", "0", "0", "0"}},
		{name: "cents", pool: "100.10", want: []string{"40.04", "30.03", "20.02", "10.01"}},
		{name: "residue to winner", pool: "0.05", want: []string{"0.03", "0.01", "0.01", "0"}},
		{name: "odd pool", pool: "333.33", want: []string{"133.35", "99.99", "66.66", "33.33"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := decimal.RequireFromString(tt.pool)
			got := PrizeTable(pool)
			assert.Len(t, got, PrizedPositions())
			sum := decimal.Zero
			for i, w := range tt.want {
				assert.True(t, decimal.RequireFromString(w).Equal(got[i]),
					"position %d: want %s got %s", i+1, w, got[i])
				sum = sum.Add(got[i])
			}
			assert.True(t, pool.Equal(sum))
		})
	}
}

func TestPrize(t *testing.T) {
	pool := decimal.NewFromInt(10000)
	assert.True(t, decimal.NewFromInt(4000).Equal(Prize(pool, 1)))
	assert.True(t, decimal.NewFromInt(1000).Equal(Prize(pool, 4)))
	assert.True(t, Prize(pool, 5).IsZero())
	assert.True(t, Prize(pool, 0).IsZero())
}
