package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"catalog-service/internal/models"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("record not found")

// CatalogRepository handles catalog reads and clone transactions
type CatalogRepository interface {
	// GetAggregate loads a product with its full dependent aggregate.
	// addonDepth bounds how many addon levels are followed.
	GetAggregate(ctx context.Context, productID uint64, addonDepth int) (*models.ProductAggregate, error)

	// GetByUUID loads a product with its aggregate by public identifier
	GetByUUID(ctx context.Context, uuid string) (*models.ProductAggregate, error)

	// GetStock loads a stock together with its owning product
	GetStock(ctx context.Context, stockID uint64) (*models.Stock, *models.Product, error)

	// GetAddonCandidate loads a product with its canonical stock and that
	// stock's bonus, for addon list validation
	GetAddonCandidate(ctx context.Context, productID uint64) (*models.ProductAggregate, error)

	// ListByIDs returns products matching ids, optionally shop-scoped
	ListByIDs(ctx context.Context, ids []uint64, shopID uint64) ([]models.Product, error)

	// ClearStockAddons removes every addon link of a stock
	ClearStockAddons(ctx context.Context, stockID uint64) error

	// AddStockAddon links a product into a stock's addon list
	AddStockAddon(ctx context.Context, stockID, addonProductID uint64) error

	// Transaction runs fn inside one database transaction
	Transaction(ctx context.Context, fn func(tx CatalogTx) error) error
}

// catalogRepository is the GORM-backed implementation
type catalogRepository struct {
	db *gorm.DB
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &catalogRepository{db: db}
}

func (r *catalogRepository) GetAggregate(ctx context.Context, productID uint64, addonDepth int) (*models.ProductAggregate, error) {
	var product models.Product

	err := r.db.WithContext(ctx).
		Preload("Translations").
		Preload("Properties").
		Preload("MetaTags").
		Preload("Galleries").
		Preload("Tags.Translations").
		Preload("Discounts").
		Preload("Stocks.Extras").
		Preload("Stocks.Bonus").
		Preload("Stocks.Addons").
		First(&product, productID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product %d: %w", productID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load product %d: %w", productID, err)
	}

	return r.buildAggregate(ctx, &product, addonDepth)
}

func (r *catalogRepository) GetByUUID(ctx context.Context, uuid string) (*models.ProductAggregate, error) {
	var product models.Product

	err := r.db.WithContext(ctx).Where("uuid = ?", uuid).First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product %s: %w", uuid, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load product %s: %w", uuid, err)
	}

	return r.GetAggregate(ctx, product.ID, models.AddonDepth)
}

// buildAggregate assembles the in-memory aggregate and walks addon products
// down to addonDepth levels
func (r *catalogRepository) buildAggregate(ctx context.Context, product *models.Product, addonDepth int) (*models.ProductAggregate, error) {
	agg := &models.ProductAggregate{
		Product:      *product,
		Translations: product.Translations,
		Properties:   product.Properties,
		MetaTags:     product.MetaTags,
		Galleries:    product.Galleries,
		Tags:         product.Tags,
	}

	for _, d := range product.Discounts {
		agg.DiscountIDs = append(agg.DiscountIDs, d.ID)
	}

	for _, stock := range product.Stocks {
		sa := models.StockAggregate{Stock: stock}
		for _, extra := range stock.Extras {
			sa.ExtraIDs = append(sa.ExtraIDs, extra.ID)
		}

		if addonDepth > 0 {
			for _, link := range stock.Addons {
				addonAgg, err := r.GetAggregate(ctx, link.AddonID, addonDepth-1)
				if err != nil {
					if errors.Is(err, ErrNotFound) {
						continue
					}
					return nil, fmt.Errorf("failed to load addon %d of stock %d: %w", link.AddonID, stock.ID, err)
				}
				sa.Addons = append(sa.Addons, *addonAgg)
			}
		}

		agg.Stocks = append(agg.Stocks, sa)
	}

	return agg, nil
}

func (r *catalogRepository) GetStock(ctx context.Context, stockID uint64) (*models.Stock, *models.Product, error) {
	var stock models.Stock
	if err := r.db.WithContext(ctx).First(&stock, stockID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("stock %d: %w", stockID, ErrNotFound)
		}
		return nil, nil, fmt.Errorf("failed to load stock %d: %w", stockID, err)
	}

	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, stock.CountableID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("product %d of stock %d: %w", stock.CountableID, stockID, ErrNotFound)
		}
		return nil, nil, fmt.Errorf("failed to load product of stock %d: %w", stockID, err)
	}

	return &stock, &product, nil
}

func (r *catalogRepository) GetAddonCandidate(ctx context.Context, productID uint64) (*models.ProductAggregate, error) {
	var product models.Product

	err := r.db.WithContext(ctx).
		Preload("Stocks.Bonus").
		First(&product, productID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product %d: %w", productID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load product %d: %w", productID, err)
	}

	agg := &models.ProductAggregate{Product: product}
	for _, stock := range product.Stocks {
		agg.Stocks = append(agg.Stocks, models.StockAggregate{Stock: stock})
	}
	return agg, nil
}

func (r *catalogRepository) ListByIDs(ctx context.Context, ids []uint64, shopID uint64) ([]models.Product, error) {
	var products []models.Product

	query := r.db.WithContext(ctx).Where("id IN ?", ids)
	if shopID != 0 {
		query = query.Where("shop_id = ?", shopID)
	}

	if err := query.Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

func (r *catalogRepository) ClearStockAddons(ctx context.Context, stockID uint64) error {
	if err := r.db.WithContext(ctx).
		Where("stock_id = ?", stockID).
		Delete(&models.StockAddon{}).Error; err != nil {
		return fmt.Errorf("failed to clear addons of stock %d: %w", stockID, err)
	}
	return nil
}

func (r *catalogRepository) AddStockAddon(ctx context.Context, stockID, addonProductID uint64) error {
	link := models.StockAddon{StockID: stockID, AddonID: addonProductID}
	if err := r.db.WithContext(ctx).Create(&link).Error; err != nil {
		return fmt.Errorf("failed to link addon %d to stock %d: %w", addonProductID, stockID, err)
	}
	return nil
}

func (r *catalogRepository) Transaction(ctx context.Context, fn func(tx CatalogTx) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&catalogTx{db: tx})
	})
}
