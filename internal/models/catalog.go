package models

import (
	"time"

	"gorm.io/gorm"
)

// MaxQuantityBound caps min_qty/max_qty on products. Values above the bound
// are clamped, never rejected.
const MaxQuantityBound = 1_000_000

// Shop represents a seller's shop. A shop with a non-nil ParentID is a branch
// of its parent shop.
type Shop struct {
	ID        uint64         `json:"id" gorm:"primaryKey;autoIncrement"`
	UUID      string         `json:"uuid" gorm:"type:uuid;uniqueIndex;not null"`
	UserID    uint64         `json:"user_id" gorm:"index;not null"`
	ParentID  *uint64        `json:"parent_id" gorm:"index"`
	Status    string         `json:"status" gorm:"type:varchar(20);default:'new'"`
	Open      bool           `json:"open" gorm:"default:true"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// Category is a product category tree node
type Category struct {
	ID        uint64         `json:"id" gorm:"primaryKey;autoIncrement"`
	UUID      string         `json:"uuid" gorm:"type:uuid;uniqueIndex;not null"`
	ParentID  *uint64        `json:"parent_id" gorm:"index"`
	Type      string         `json:"type" gorm:"type:varchar(30);default:'main'"`
	Active    bool           `json:"active" gorm:"default:true"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// Product represents a catalog product. A product with a non-nil ParentID is a
// branch variant: a shop-scoped clone of its parent. Branch variants are never
// a source for further replication.
type Product struct {
	ID         uint64         `json:"id" gorm:"primaryKey;autoIncrement"`
	UUID       string         `json:"uuid" gorm:"type:uuid;uniqueIndex;not null"`
	ShopID     uint64         `json:"shop_id" gorm:"index:idx_products_parent_shop,priority:2;index;not null"`
	CategoryID uint64         `json:"category_id" gorm:"index"`
	ParentID   *uint64        `json:"parent_id" gorm:"index:idx_products_parent_shop,priority:1"`
	Img        string         `json:"img"`
	Tax        float64        `json:"tax" gorm:"default:0"`
	MinQty     int            `json:"min_qty" gorm:"default:1"`
	MaxQty     int            `json:"max_qty" gorm:"default:1"`
	Active     bool           `json:"active" gorm:"default:true;index"`
	Addon      bool           `json:"addon" gorm:"default:false;index"`
	Visibility bool           `json:"visibility" gorm:"default:true"`
	Interval   float64        `json:"interval" gorm:"default:1"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Translations []ProductTranslation `json:"translations,omitempty" gorm:"foreignKey:ProductID"`
	Properties   []ProductProperty    `json:"properties,omitempty" gorm:"foreignKey:ProductID"`
	MetaTags     []MetaTag            `json:"meta_tags,omitempty" gorm:"polymorphic:Model;polymorphicValue:product"`
	Galleries    []Gallery            `json:"galleries,omitempty" gorm:"polymorphic:Loadable;polymorphicValue:product"`
	Tags         []Tag                `json:"tags,omitempty" gorm:"foreignKey:ProductID"`
	Discounts    []Discount           `json:"discounts,omitempty" gorm:"many2many:product_discounts"`
	Stocks       []Stock              `json:"stocks,omitempty" gorm:"polymorphic:Countable;polymorphicValue:product"`
}

// IsBranchVariant reports whether the product is a shop-scoped clone
func (p *Product) IsBranchVariant() bool {
	return p.ParentID != nil
}

// ClampQuantityBounds enforces the 1,000,000 cap on quantity bounds
func (p *Product) ClampQuantityBounds() {
	if p.MinQty > MaxQuantityBound {
		p.MinQty = MaxQuantityBound
	}
	if p.MaxQty > MaxQuantityBound {
		p.MaxQty = MaxQuantityBound
	}
}

// ProductTranslation holds per-locale title/description, unique per
// (product_id, locale)
type ProductTranslation struct {
	ID          uint64         `json:"id" gorm:"primaryKey;autoIncrement"`
	ProductID   uint64         `json:"product_id" gorm:"uniqueIndex:idx_product_translations_locale,priority:1;not null"`
	Locale      string         `json:"locale" gorm:"type:varchar(10);uniqueIndex:idx_product_translations_locale,priority:2;not null"`
	Title       string         `json:"title" gorm:"not null"`
	Description string         `json:"description"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

// ProductProperty is a per-locale key/value attribute of a product
type ProductProperty struct {
	ID        uint64 `json:"id" gorm:"primaryKey;autoIncrement"`
	ProductID uint64 `json:"product_id" gorm:"uniqueIndex:idx_product_properties_key,priority:1;not null"`
	Locale    string `json:"locale" gorm:"type:varchar(10);uniqueIndex:idx_product_properties_key,priority:2;not null"`
	Key       string `json:"key" gorm:"uniqueIndex:idx_product_properties_key,priority:3;not null"`
	Value     string `json:"value"`
}

// MetaTag holds SEO fields, one per owning model (polymorphic)
type MetaTag struct {
	ID          uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	ModelID     uint64    `json:"model_id" gorm:"index:idx_meta_tags_model;not null"`
	ModelType   string    `json:"model_type" gorm:"index:idx_meta_tags_model;not null"`
	Path        string    `json:"path"`
	Title       string    `json:"title"`
	Keywords    string    `json:"keywords"`
	Description string    `json:"description"`
	H1          string    `json:"h1"`
	SeoText     string    `json:"seo_text"`
	Canonical   string    `json:"canonical"`
	Robots      string    `json:"robots"`
	ChangeFreq  string    `json:"change_freq"`
	Priority    string    `json:"priority"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Gallery is a polymorphic image attachment. Galleries carry no external
// identity: replication always hard-deletes and recreates them.
type Gallery struct {
	ID           uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	Title        string    `json:"title"`
	LoadableID   uint64    `json:"loadable_id" gorm:"index:idx_galleries_loadable;not null"`
	LoadableType string    `json:"loadable_type" gorm:"index:idx_galleries_loadable;not null"`
	Type         string    `json:"type" gorm:"type:varchar(30)"`
	Path         string    `json:"path"`
	Preview      string    `json:"preview"`
	CreatedAt    time.Time `json:"created_at"`
}

// Tag is a product label with per-locale translations, one per product
type Tag struct {
	ID        uint64         `json:"id" gorm:"primaryKey;autoIncrement"`
	ProductID uint64         `json:"product_id" gorm:"index;not null"`
	Active    bool           `json:"active" gorm:"default:true"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Translations []TagTranslation `json:"translations,omitempty" gorm:"foreignKey:TagID"`
}

// TagTranslation holds per-locale tag content
type TagTranslation struct {
	ID          uint64         `json:"id" gorm:"primaryKey;autoIncrement"`
	TagID       uint64         `json:"tag_id" gorm:"uniqueIndex:idx_tag_translations_locale,priority:1;not null"`
	Locale      string         `json:"locale" gorm:"type:varchar(10);uniqueIndex:idx_tag_translations_locale,priority:2;not null"`
	Title       string         `json:"title" gorm:"not null"`
	Description string         `json:"description"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

// Discount is a date-ranged price reduction linked to products via
// product_discounts
type Discount struct {
	ID        uint64         `json:"id" gorm:"primaryKey;autoIncrement"`
	ShopID    uint64         `json:"shop_id" gorm:"index;not null"`
	Type      string         `json:"type" gorm:"type:varchar(20);default:'fix'"`
	Price     float64        `json:"price" gorm:"not null"`
	Start     time.Time      `json:"start"`
	End       time.Time      `json:"end"`
	Active    bool           `json:"active" gorm:"default:true"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// ProductDiscount is the soft-deletable link row between a discount and a
// product. Replication re-activates existing rows instead of recreating them.
type ProductDiscount struct {
	ID         uint64         `json:"id" gorm:"primaryKey;autoIncrement"`
	DiscountID uint64         `json:"discount_id" gorm:"uniqueIndex:idx_product_discounts_pair,priority:1;not null"`
	ProductID  uint64         `json:"product_id" gorm:"uniqueIndex:idx_product_discounts_pair,priority:2;not null"`
	DeletedAt  gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName keeps the join table shared with the many2many relation
func (ProductDiscount) TableName() string {
	return "product_discounts"
}

// Stock is a sellable unit of a product. A stock with a non-nil ParentID was
// cloned from another stock and never propagates further.
type Stock struct {
	ID            uint64         `json:"id" gorm:"primaryKey;autoIncrement"`
	CountableType string         `json:"countable_type" gorm:"index:idx_stocks_countable;default:'product';not null"`
	CountableID   uint64         `json:"countable_id" gorm:"index:idx_stocks_countable;not null"`
	ParentID      *uint64        `json:"parent_id" gorm:"index"`
	SKU           string         `json:"sku" gorm:"type:varchar(255)"`
	Price         float64        `json:"price" gorm:"not null"`
	Quantity      int            `json:"quantity" gorm:"default:0"`
	Addon         bool           `json:"addon" gorm:"default:false;index"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Extras []ExtraValue `json:"extras,omitempty" gorm:"many2many:stock_extras"`
	Addons []StockAddon `json:"addons,omitempty" gorm:"foreignKey:StockID"`
	Bonus  *Bonus       `json:"bonus,omitempty" gorm:"foreignKey:StockID"`
}

// ExtraValue is a selectable product option (size, color, ...)
type ExtraValue struct {
	ID           uint64 `json:"id" gorm:"primaryKey;autoIncrement"`
	ExtraGroupID uint64 `json:"extra_group_id" gorm:"index;not null"`
	Value        string `json:"value" gorm:"not null"`
	Active       bool   `json:"active" gorm:"default:true"`
}

// StockAddon links a stock to a product sellable as an add-on
type StockAddon struct {
	ID      uint64 `json:"id" gorm:"primaryKey;autoIncrement"`
	StockID uint64 `json:"stock_id" gorm:"uniqueIndex:idx_stock_addons_pair,priority:1;not null"`
	AddonID uint64 `json:"addon_id" gorm:"uniqueIndex:idx_stock_addons_pair,priority:2;not null"`

	// Addon is the product attached as an add-on
	Addon *Product `json:"addon,omitempty" gorm:"foreignKey:AddonID"`
}

// Bonus grants free quantity when a stock is purchased. A stock carrying a
// bonus can never be attached to another stock's addon list.
type Bonus struct {
	ID            uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	StockID       uint64    `json:"stock_id" gorm:"uniqueIndex;not null"`
	BonusQuantity int       `json:"bonus_quantity" gorm:"default:1"`
	Value         int       `json:"value" gorm:"default:1"`
	Type          string    `json:"type" gorm:"type:varchar(20);default:'count'"`
	Status        bool      `json:"status" gorm:"default:true"`
	ExpiredAt     time.Time `json:"expired_at"`
}
