package repository

// Natural upsert keys used by the replication routine. Matching by these
// tuples instead of surrogate ids is what makes repeated sync runs converge
// on the same rows.

// ProductCloneKey identifies a branch variant: one clone of a parent product
// per shop
type ProductCloneKey struct {
	ParentID uint64
	ShopID   uint64
}

// TranslationKey identifies a product translation
type TranslationKey struct {
	ProductID uint64
	Locale    string
}

// PropertyKey identifies a product property
type PropertyKey struct {
	ProductID uint64
	Locale    string
	Key       string
}

// StockCloneKey identifies a cloned stock within a child product
type StockCloneKey struct {
	CountableType string
	CountableID   uint64
	ParentStockID uint64
}

// DiscountLinkKey identifies a discount/product join row
type DiscountLinkKey struct {
	DiscountID uint64
	ProductID  uint64
}

// ProcessKey identifies a checkout attempt: one live PaymentProcess per
// (user, order) pair. OrderID is nil for wallet top-ups.
type ProcessKey struct {
	UserID  uint64
	OrderID *uint64
}
