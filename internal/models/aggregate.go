package models

// AddonDepth bounds how many addon levels the replication routine follows.
// Addons of addons are never walked.
const AddonDepth = 1

// ProductAggregate is the in-memory aggregate root the replication routine
// clones. It is loaded explicitly up front; nothing is lazy-loaded during a
// clone pass.
type ProductAggregate struct {
	Product      Product
	Translations []ProductTranslation
	Properties   []ProductProperty
	MetaTags     []MetaTag
	Galleries    []Gallery
	Tags         []Tag
	DiscountIDs  []uint64
	Stocks       []StockAggregate
}

// StockAggregate carries one stock together with its extras and the addon
// products referenced by it. Addons is empty past the configured depth.
type StockAggregate struct {
	Stock    Stock
	ExtraIDs []uint64
	Addons   []ProductAggregate
}

// CanonicalStock returns the first top-level stock of the aggregate, nil when
// the product has none. Stocks that are themselves clones never qualify.
func (a *ProductAggregate) CanonicalStock() *StockAggregate {
	for i := range a.Stocks {
		if a.Stocks[i].Stock.ParentID == nil {
			return &a.Stocks[i]
		}
	}
	return nil
}
