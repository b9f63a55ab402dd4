package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsBranchVariant(t *testing.T) {
	parent := Product{ID: 1}
	assert.False(t, parent.IsBranchVariant())

	parentID := uint64(1)
	child := Product{ID: 2, ParentID: &parentID}
	assert.True(t, child.IsBranchVariant())
}

func TestClampQuantityBounds(t *testing.T) {
	p := Product{MinQty: 5, MaxQty: 2_000_000}
	p.ClampQuantityBounds()
	assert.Equal(t, 5, p.MinQty)
	assert.Equal(t, MaxQuantityBound, p.MaxQty)

	p = Product{MinQty: 3_000_000, MaxQty: 3_000_000}
	p.ClampQuantityBounds()
	assert.Equal(t, MaxQuantityBound, p.MinQty)
	assert.Equal(t, MaxQuantityBound, p.MaxQty)
}

func TestCanonicalStock(t *testing.T) {
	parentStockID := uint64(11)
	agg := ProductAggregate{
		Stocks: []StockAggregate{
			{Stock: Stock{ID: 12, ParentID: &parentStockID}},
			{Stock: Stock{ID: 11}},
		},
	}

	canonical := agg.CanonicalStock()
	assert.NotNil(t, canonical)
	assert.Equal(t, uint64(11), canonical.Stock.ID)

	empty := ProductAggregate{}
	assert.Nil(t, empty.CanonicalStock())
}

func TestTransactionStatusIsTerminal(t *testing.T) {
	assert.True(t, TransactionStatusPaid.IsTerminal())
	assert.True(t, TransactionStatusCanceled.IsTerminal())
	assert.False(t, TransactionStatusProgress.IsTerminal())
}
