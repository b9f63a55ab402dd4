package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"catalog-service/internal/models"
)

// CatalogTx exposes the upsert-by-natural-key operations the replication
// routine performs inside one parent's transaction. Every upsert clears
// deleted_at on match, resurrecting previously removed rows.
type CatalogTx interface {
	UpsertProductClone(ctx context.Context, key ProductCloneKey, src *models.Product) (*models.Product, error)
	UpsertTranslation(ctx context.Context, key TranslationKey, src *models.ProductTranslation) error
	UpsertMetaTag(ctx context.Context, productID uint64, src *models.MetaTag) error
	ReplaceGalleries(ctx context.Context, productID uint64, src []models.Gallery) error
	ReactivateDiscountLink(ctx context.Context, key DiscountLinkKey) error
	UpsertTag(ctx context.Context, productID uint64, src *models.Tag) error
	UpsertProperty(ctx context.Context, key PropertyKey, value string) error
	UpsertStockClone(ctx context.Context, key StockCloneKey, src *models.Stock) (*models.Stock, error)
	SyncStockExtras(ctx context.Context, stockID uint64, extraIDs []uint64) error
	LinkStockAddon(ctx context.Context, stockID, addonProductID uint64) error
	SoftDeleteProductTree(ctx context.Context, productID uint64) error
}

// catalogTx is the GORM-backed transaction implementation
type catalogTx struct {
	db *gorm.DB
}

func (t *catalogTx) UpsertProductClone(ctx context.Context, key ProductCloneKey, src *models.Product) (*models.Product, error) {
	parentID := key.ParentID

	clone := models.Product{
		UUID:       uuid.NewString(),
		ShopID:     key.ShopID,
		CategoryID: src.CategoryID,
		ParentID:   &parentID,
		Img:        src.Img,
		Tax:        src.Tax,
		MinQty:     src.MinQty,
		MaxQty:     src.MaxQty,
		Active:     src.Active,
		Addon:      src.Addon,
		Visibility: src.Visibility,
		Interval:   src.Interval,
	}
	clone.ClampQuantityBounds()

	var existing models.Product
	err := t.db.WithContext(ctx).Unscoped().
		Where("parent_id = ? AND shop_id = ?", key.ParentID, key.ShopID).
		First(&existing).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := t.db.WithContext(ctx).Create(&clone).Error; err != nil {
			return nil, fmt.Errorf("failed to create clone of product %d: %w", key.ParentID, err)
		}
		return &clone, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find clone of product %d: %w", key.ParentID, err)
	}

	// The existing clone keeps its id and uuid so repeated runs converge
	updates := map[string]interface{}{
		"category_id": clone.CategoryID,
		"img":         clone.Img,
		"tax":         clone.Tax,
		"min_qty":     clone.MinQty,
		"max_qty":     clone.MaxQty,
		"active":      clone.Active,
		"addon":       clone.Addon,
		"visibility":  clone.Visibility,
		"interval":    clone.Interval,
		"deleted_at":  nil,
	}
	if err := t.db.WithContext(ctx).Unscoped().
		Model(&models.Product{}).
		Where("id = ?", existing.ID).
		Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update clone %d: %w", existing.ID, err)
	}

	existing.DeletedAt = gorm.DeletedAt{}
	existing.CategoryID = clone.CategoryID
	existing.Img = clone.Img
	existing.Tax = clone.Tax
	existing.MinQty = clone.MinQty
	existing.MaxQty = clone.MaxQty
	existing.Active = clone.Active
	existing.Addon = clone.Addon
	existing.Visibility = clone.Visibility
	existing.Interval = clone.Interval
	return &existing, nil
}

func (t *catalogTx) UpsertTranslation(ctx context.Context, key TranslationKey, src *models.ProductTranslation) error {
	var existing models.ProductTranslation
	err := t.db.WithContext(ctx).Unscoped().
		Where("product_id = ? AND locale = ?", key.ProductID, key.Locale).
		First(&existing).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		row := models.ProductTranslation{
			ProductID:   key.ProductID,
			Locale:      key.Locale,
			Title:       src.Title,
			Description: src.Description,
		}
		if err := t.db.WithContext(ctx).Create(&row).Error; err != nil {
			return fmt.Errorf("failed to create translation %s of product %d: %w", key.Locale, key.ProductID, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to find translation %s of product %d: %w", key.Locale, key.ProductID, err)
	}

	return t.db.WithContext(ctx).Unscoped().
		Model(&models.ProductTranslation{}).
		Where("id = ?", existing.ID).
		Updates(map[string]interface{}{
			"title":       src.Title,
			"description": src.Description,
			"deleted_at":  nil,
		}).Error
}

func (t *catalogTx) UpsertMetaTag(ctx context.Context, productID uint64, src *models.MetaTag) error {
	fields := map[string]interface{}{
		"path":        src.Path,
		"title":       src.Title,
		"keywords":    src.Keywords,
		"description": src.Description,
		"h1":          src.H1,
		"seo_text":    src.SeoText,
		"canonical":   src.Canonical,
		"robots":      src.Robots,
		"change_freq": src.ChangeFreq,
		"priority":    src.Priority,
	}

	var existing models.MetaTag
	err := t.db.WithContext(ctx).
		Where("model_id = ? AND model_type = ?", productID, "product").
		First(&existing).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		row := models.MetaTag{
			ModelID:     productID,
			ModelType:   "product",
			Path:        src.Path,
			Title:       src.Title,
			Keywords:    src.Keywords,
			Description: src.Description,
			H1:          src.H1,
			SeoText:     src.SeoText,
			Canonical:   src.Canonical,
			Robots:      src.Robots,
			ChangeFreq:  src.ChangeFreq,
			Priority:    src.Priority,
		}
		if err := t.db.WithContext(ctx).Create(&row).Error; err != nil {
			return fmt.Errorf("failed to create meta tag of product %d: %w", productID, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to find meta tag of product %d: %w", productID, err)
	}

	return t.db.WithContext(ctx).
		Model(&models.MetaTag{}).
		Where("id = ?", existing.ID).
		Updates(fields).Error
}

func (t *catalogTx) ReplaceGalleries(ctx context.Context, productID uint64, src []models.Gallery) error {
	// Galleries have no natural identity: hard-delete and recreate every pass
	if err := t.db.WithContext(ctx).
		Where("loadable_id = ? AND loadable_type = ?", productID, "product").
		Delete(&models.Gallery{}).Error; err != nil {
		return fmt.Errorf("failed to clear galleries of product %d: %w", productID, err)
	}

	for _, gallery := range src {
		row := models.Gallery{
			Title:        gallery.Title,
			LoadableID:   productID,
			LoadableType: "product",
			Type:         gallery.Type,
			Path:         gallery.Path,
			Preview:      gallery.Preview,
		}
		if err := t.db.WithContext(ctx).Create(&row).Error; err != nil {
			return fmt.Errorf("failed to copy gallery to product %d: %w", productID, err)
		}
	}
	return nil
}

func (t *catalogTx) ReactivateDiscountLink(ctx context.Context, key DiscountLinkKey) error {
	var existing models.ProductDiscount
	err := t.db.WithContext(ctx).Unscoped().
		Where("discount_id = ? AND product_id = ?", key.DiscountID, key.ProductID).
		First(&existing).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		row := models.ProductDiscount{DiscountID: key.DiscountID, ProductID: key.ProductID}
		if err := t.db.WithContext(ctx).Create(&row).Error; err != nil {
			return fmt.Errorf("failed to link discount %d to product %d: %w", key.DiscountID, key.ProductID, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to find discount link %d/%d: %w", key.DiscountID, key.ProductID, err)
	}

	// Re-activate, never duplicate
	return t.db.WithContext(ctx).Unscoped().
		Model(&models.ProductDiscount{}).
		Where("id = ?", existing.ID).
		Update("deleted_at", nil).Error
}

func (t *catalogTx) UpsertTag(ctx context.Context, productID uint64, src *models.Tag) error {
	var tag models.Tag
	err := t.db.WithContext(ctx).Unscoped().
		Where("product_id = ?", productID).
		First(&tag).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		tag = models.Tag{ProductID: productID, Active: src.Active}
		if err := t.db.WithContext(ctx).Create(&tag).Error; err != nil {
			return fmt.Errorf("failed to create tag of product %d: %w", productID, err)
		}
	} else if err != nil {
		return fmt.Errorf("failed to find tag of product %d: %w", productID, err)
	} else {
		if err := t.db.WithContext(ctx).Unscoped().
			Model(&models.Tag{}).
			Where("id = ?", tag.ID).
			Updates(map[string]interface{}{"active": src.Active, "deleted_at": nil}).Error; err != nil {
			return fmt.Errorf("failed to update tag of product %d: %w", productID, err)
		}
	}

	for _, translation := range src.Translations {
		var existing models.TagTranslation
		err := t.db.WithContext(ctx).Unscoped().
			Where("tag_id = ? AND locale = ?", tag.ID, translation.Locale).
			First(&existing).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			row := models.TagTranslation{
				TagID:       tag.ID,
				Locale:      translation.Locale,
				Title:       translation.Title,
				Description: translation.Description,
			}
			if err := t.db.WithContext(ctx).Create(&row).Error; err != nil {
				return fmt.Errorf("failed to create tag translation %s: %w", translation.Locale, err)
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to find tag translation %s: %w", translation.Locale, err)
		}

		if err := t.db.WithContext(ctx).Unscoped().
			Model(&models.TagTranslation{}).
			Where("id = ?", existing.ID).
			Updates(map[string]interface{}{
				"title":       translation.Title,
				"description": translation.Description,
				"deleted_at":  nil,
			}).Error; err != nil {
			return fmt.Errorf("failed to update tag translation %s: %w", translation.Locale, err)
		}
	}

	return nil
}

func (t *catalogTx) UpsertProperty(ctx context.Context, key PropertyKey, value string) error {
	var existing models.ProductProperty
	err := t.db.WithContext(ctx).
		Where("product_id = ? AND locale = ? AND key = ?", key.ProductID, key.Locale, key.Key).
		First(&existing).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		row := models.ProductProperty{
			ProductID: key.ProductID,
			Locale:    key.Locale,
			Key:       key.Key,
			Value:     value,
		}
		if err := t.db.WithContext(ctx).Create(&row).Error; err != nil {
			return fmt.Errorf("failed to create property %q of product %d: %w", key.Key, key.ProductID, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to find property %q of product %d: %w", key.Key, key.ProductID, err)
	}

	return t.db.WithContext(ctx).
		Model(&models.ProductProperty{}).
		Where("id = ?", existing.ID).
		Update("value", value).Error
}

func (t *catalogTx) UpsertStockClone(ctx context.Context, key StockCloneKey, src *models.Stock) (*models.Stock, error) {
	parentStockID := key.ParentStockID

	var existing models.Stock
	err := t.db.WithContext(ctx).Unscoped().
		Where("countable_type = ? AND countable_id = ? AND parent_id = ?",
			key.CountableType, key.CountableID, key.ParentStockID).
		First(&existing).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		row := models.Stock{
			CountableType: key.CountableType,
			CountableID:   key.CountableID,
			ParentID:      &parentStockID,
			SKU:           src.SKU,
			Price:         src.Price,
			Quantity:      src.Quantity,
			Addon:         src.Addon,
		}
		if err := t.db.WithContext(ctx).Create(&row).Error; err != nil {
			return nil, fmt.Errorf("failed to clone stock %d: %w", key.ParentStockID, err)
		}
		return &row, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find stock clone of %d: %w", key.ParentStockID, err)
	}

	if err := t.db.WithContext(ctx).Unscoped().
		Model(&models.Stock{}).
		Where("id = ?", existing.ID).
		Updates(map[string]interface{}{
			"sku":        src.SKU,
			"price":      src.Price,
			"quantity":   src.Quantity,
			"addon":      src.Addon,
			"deleted_at": nil,
		}).Error; err != nil {
		return nil, fmt.Errorf("failed to update stock clone %d: %w", existing.ID, err)
	}

	existing.DeletedAt = gorm.DeletedAt{}
	existing.SKU = src.SKU
	existing.Price = src.Price
	existing.Quantity = src.Quantity
	existing.Addon = src.Addon
	return &existing, nil
}

func (t *catalogTx) SyncStockExtras(ctx context.Context, stockID uint64, extraIDs []uint64) error {
	extras := make([]models.ExtraValue, 0, len(extraIDs))
	for _, id := range extraIDs {
		extras = append(extras, models.ExtraValue{ID: id})
	}

	// Replace keeps the join table in sync: an empty id list clears all links
	err := t.db.WithContext(ctx).
		Model(&models.Stock{ID: stockID}).
		Association("Extras").
		Replace(extras)
	if err != nil {
		return fmt.Errorf("failed to sync extras of stock %d: %w", stockID, err)
	}
	return nil
}

func (t *catalogTx) LinkStockAddon(ctx context.Context, stockID, addonProductID uint64) error {
	link := models.StockAddon{StockID: stockID, AddonID: addonProductID}
	err := t.db.WithContext(ctx).
		Where("stock_id = ? AND addon_id = ?", stockID, addonProductID).
		FirstOrCreate(&link).Error
	if err != nil {
		return fmt.Errorf("failed to link addon %d to stock %d: %w", addonProductID, stockID, err)
	}
	return nil
}

func (t *catalogTx) SoftDeleteProductTree(ctx context.Context, productID uint64) error {
	// Branch variants of the product go first, then the product itself
	if err := t.db.WithContext(ctx).
		Where("parent_id = ?", productID).
		Delete(&models.Product{}).Error; err != nil {
		return fmt.Errorf("failed to delete children of product %d: %w", productID, err)
	}
	if err := t.db.WithContext(ctx).
		Delete(&models.Product{}, productID).Error; err != nil {
		return fmt.Errorf("failed to delete product %d: %w", productID, err)
	}
	return nil
}
