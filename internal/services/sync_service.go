package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"catalog-service/internal/models"
	natsClient "catalog-service/internal/nats"
	redisClient "catalog-service/internal/redis"
	"catalog-service/internal/repository"
)

var (
	productsSyncedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketplace_catalog_products_synced_total",
		Help: "Total number of products replicated into branch shops",
	})
	syncErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketplace_catalog_sync_errors_total",
		Help: "Total number of per-product sync failures",
	})
)

// SyncService replicates parent products into branch shops
type SyncService struct {
	catalogRepo repository.CatalogRepository
	natsClient  *natsClient.Client
	redisClient *redisClient.Client
	logger      *logrus.Logger
	cacheTTL    time.Duration
}

// NewSyncService creates a new sync service
func NewSyncService(
	catalogRepo repository.CatalogRepository,
	natsClient *natsClient.Client,
	redisClient *redisClient.Client,
	logger *logrus.Logger,
	cacheTTL time.Duration,
) *SyncService {
	return &SyncService{
		catalogRepo: catalogRepo,
		natsClient:  natsClient,
		redisClient: redisClient,
		logger:      logger,
		cacheTTL:    cacheTTL,
	}
}

// SyncedProduct reports one successful replication
type SyncedProduct struct {
	ParentID  uint64 `json:"parent_id"`
	ChildID   uint64 `json:"child_id"`
	ChildUUID string `json:"child_uuid"`
}

// ParentSyncResult collects the outcome of a batch sync. A failed id never
// aborts the batch; it lands in Errors and the loop moves on.
type ParentSyncResult struct {
	Synced []SyncedProduct `json:"synced"`
	Errors []*SyncError    `json:"errors,omitempty"`
}

// ParentSync replicates each listed parent product into the target shop. Each
// parent is cloned inside its own transaction, so one bad id leaves the others
// committed.
func (s *SyncService) ParentSync(ctx context.Context, shopID uint64, productIDs []uint64) (*ParentSyncResult, error) {
	if shopID == 0 {
		return nil, NewValidationError("shop_id", "shop_id is required", nil)
	}
	if len(productIDs) == 0 {
		return nil, NewValidationError("products", "at least one product id is required", nil)
	}

	result := &ParentSyncResult{}

	for _, productID := range productIDs {
		synced, err := s.syncOne(ctx, shopID, productID)
		if err != nil {
			syncErrorsTotal.Inc()
			var syncErr *SyncError
			if errors.As(err, &syncErr) {
				result.Errors = append(result.Errors, syncErr)
			} else {
				result.Errors = append(result.Errors, NewSyncError(productID, err.Error()))
			}
			s.logger.WithFields(logrus.Fields{
				"product_id": productID,
				"shop_id":    shopID,
				"error":      err.Error(),
			}).Warn("Product sync failed")
			continue
		}
		result.Synced = append(result.Synced, *synced)
	}

	return result, nil
}

// syncOne replicates a single parent product inside one transaction
func (s *SyncService) syncOne(ctx context.Context, shopID, productID uint64) (*SyncedProduct, error) {
	agg, err := s.catalogRepo.GetAggregate(ctx, productID, models.AddonDepth)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewSyncError(productID, "product not found")
		}
		return nil, fmt.Errorf("failed to load product %d: %w", productID, err)
	}

	// Branch variants never propagate further
	if agg.Product.IsBranchVariant() {
		return nil, NewSyncError(productID, "product is child")
	}

	var child *models.Product
	err = s.catalogRepo.Transaction(ctx, func(tx repository.CatalogTx) error {
		child, err = s.cloneProduct(ctx, tx, agg, shopID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sync product %d: %w", productID, err)
	}

	productsSyncedTotal.Inc()

	if err := s.redisClient.InvalidateProduct(ctx, agg.Product.UUID, child.UUID); err != nil {
		s.logger.WithError(err).Warn("Failed to invalidate product cache after sync")
	}

	if err := s.natsClient.PublishProductSynced(ctx, &natsClient.ProductSyncedEvent{
		ParentID:  agg.Product.ID,
		ChildID:   child.ID,
		ChildUUID: child.UUID,
		ShopID:    shopID,
	}); err != nil {
		s.logger.WithError(err).Warn("Failed to publish product synced event")
	}

	s.logger.WithFields(logrus.Fields{
		"parent_id": agg.Product.ID,
		"child_id":  child.ID,
		"shop_id":   shopID,
	}).Info("Product replicated into branch shop")

	return &SyncedProduct{
		ParentID:  agg.Product.ID,
		ChildID:   child.ID,
		ChildUUID: child.UUID,
	}, nil
}

// cloneProduct copies the full aggregate of a parent into the target shop.
// Every dependent row is matched by its natural key, so running the clone
// again converges on the same child rows.
func (s *SyncService) cloneProduct(ctx context.Context, tx repository.CatalogTx, agg *models.ProductAggregate, shopID uint64) (*models.Product, error) {
	child, err := tx.UpsertProductClone(ctx, repository.ProductCloneKey{
		ParentID: agg.Product.ID,
		ShopID:   shopID,
	}, &agg.Product)
	if err != nil {
		return nil, err
	}

	if err := s.cloneCollections(ctx, tx, agg, child.ID); err != nil {
		return nil, err
	}

	for i := range agg.Stocks {
		sa := &agg.Stocks[i]

		// Cloned stocks never propagate
		if sa.Stock.ParentID != nil {
			continue
		}

		childStock, err := tx.UpsertStockClone(ctx, repository.StockCloneKey{
			CountableType: sa.Stock.CountableType,
			CountableID:   child.ID,
			ParentStockID: sa.Stock.ID,
		}, &sa.Stock)
		if err != nil {
			return nil, err
		}

		if err := tx.SyncStockExtras(ctx, childStock.ID, sa.ExtraIDs); err != nil {
			return nil, err
		}

		for j := range sa.Addons {
			addonClone, err := s.cloneAddon(ctx, tx, &sa.Addons[j], shopID)
			if err != nil {
				return nil, err
			}
			if err := tx.LinkStockAddon(ctx, childStock.ID, addonClone.ID); err != nil {
				return nil, err
			}
		}
	}

	return child, nil
}

// cloneCollections upserts the dependent rows of a product clone: its
// translations, meta tags, galleries, discount links, tags and properties.
// The same pass runs for parents and for their addons.
func (s *SyncService) cloneCollections(ctx context.Context, tx repository.CatalogTx, agg *models.ProductAggregate, childID uint64) error {
	for i := range agg.Translations {
		translation := &agg.Translations[i]
		key := repository.TranslationKey{ProductID: childID, Locale: translation.Locale}
		if err := tx.UpsertTranslation(ctx, key, translation); err != nil {
			return err
		}
	}

	for i := range agg.MetaTags {
		if err := tx.UpsertMetaTag(ctx, childID, &agg.MetaTags[i]); err != nil {
			return err
		}
	}

	if err := tx.ReplaceGalleries(ctx, childID, agg.Galleries); err != nil {
		return err
	}

	for _, discountID := range agg.DiscountIDs {
		key := repository.DiscountLinkKey{DiscountID: discountID, ProductID: childID}
		if err := tx.ReactivateDiscountLink(ctx, key); err != nil {
			return err
		}
	}

	for i := range agg.Tags {
		if err := tx.UpsertTag(ctx, childID, &agg.Tags[i]); err != nil {
			return err
		}
	}

	for i := range agg.Properties {
		property := &agg.Properties[i]
		key := repository.PropertyKey{ProductID: childID, Locale: property.Locale, Key: property.Key}
		if err := tx.UpsertProperty(ctx, key, property.Value); err != nil {
			return err
		}
	}

	return nil
}

// cloneAddon copies an addon product one level deep: the product row, its
// dependent rows and its canonical stock. Addons of addons are left alone.
// An addon without a canonical stock is still cloned and linked, only the
// stock copy is skipped.
func (s *SyncService) cloneAddon(ctx context.Context, tx repository.CatalogTx, agg *models.ProductAggregate, shopID uint64) (*models.Product, error) {
	clone, err := tx.UpsertProductClone(ctx, repository.ProductCloneKey{
		ParentID: agg.Product.ID,
		ShopID:   shopID,
	}, &agg.Product)
	if err != nil {
		return nil, err
	}

	if err := s.cloneCollections(ctx, tx, agg, clone.ID); err != nil {
		return nil, err
	}

	canonical := agg.CanonicalStock()
	if canonical == nil {
		s.logger.WithField("addon_id", agg.Product.ID).Warn("Addon has no canonical stock, skipping stock copy")
		return clone, nil
	}

	childStock, err := tx.UpsertStockClone(ctx, repository.StockCloneKey{
		CountableType: canonical.Stock.CountableType,
		CountableID:   clone.ID,
		ParentStockID: canonical.Stock.ID,
	}, &canonical.Stock)
	if err != nil {
		return nil, err
	}

	if err := tx.SyncStockExtras(ctx, childStock.ID, canonical.ExtraIDs); err != nil {
		return nil, err
	}

	return clone, nil
}

// GetProduct returns a product's full aggregate by public identifier, served
// from cache between syncs
func (s *SyncService) GetProduct(ctx context.Context, uuid string) (*models.ProductAggregate, error) {
	cached, err := s.redisClient.GetProduct(ctx, uuid)
	if err != nil {
		s.logger.WithError(err).Warn("Product cache read failed")
	} else if cached != nil {
		var agg models.ProductAggregate
		if err := json.Unmarshal(cached.Payload, &agg); err == nil {
			return &agg, nil
		}
		s.logger.WithField("uuid", uuid).Warn("Discarding undecodable cached product")
	}

	agg, err := s.catalogRepo.GetByUUID(ctx, uuid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewNotFoundError("product", fmt.Sprintf("product %s does not exist", uuid))
		}
		return nil, err
	}

	payload, err := json.Marshal(agg)
	if err == nil {
		cacheErr := s.redisClient.SaveProduct(ctx, uuid, &redisClient.CachedProduct{
			ProductID: agg.Product.ID,
			UUID:      agg.Product.UUID,
			ShopID:    agg.Product.ShopID,
			Payload:   payload,
		}, s.cacheTTL)
		if cacheErr != nil {
			s.logger.WithError(cacheErr).Warn("Product cache write failed")
		}
	}

	return agg, nil
}

// SyncStockAddons replaces a stock's addon list. An empty id list clears all
// links. Candidates failing validation are skipped and their ids returned.
func (s *SyncService) SyncStockAddons(ctx context.Context, stockID uint64, addonProductIDs []uint64) ([]uint64, error) {
	stock, owner, err := s.catalogRepo.GetStock(ctx, stockID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewNotFoundError("stock", fmt.Sprintf("stock %d does not exist", stockID))
		}
		return nil, err
	}

	if len(addonProductIDs) == 0 {
		if err := s.catalogRepo.ClearStockAddons(ctx, stock.ID); err != nil {
			return nil, err
		}
		return nil, nil
	}

	accepted := make([]uint64, 0, len(addonProductIDs))
	var rejected []uint64

	for _, candidateID := range addonProductIDs {
		ok, err := s.validateAddonCandidate(ctx, candidateID, owner.ShopID)
		if err != nil {
			return nil, err
		}
		if !ok {
			rejected = append(rejected, candidateID)
			continue
		}
		accepted = append(accepted, candidateID)
	}

	if err := s.catalogRepo.ClearStockAddons(ctx, stock.ID); err != nil {
		return nil, err
	}
	for _, addonID := range accepted {
		if err := s.catalogRepo.AddStockAddon(ctx, stock.ID, addonID); err != nil {
			return nil, err
		}
	}

	s.logger.WithFields(logrus.Fields{
		"stock_id": stockID,
		"accepted": len(accepted),
		"rejected": len(rejected),
	}).Info("Stock addon list replaced")

	return rejected, nil
}

// validateAddonCandidate checks a product against the addon attachment rules:
// sellable as addon, same shop as the owning product, and no bonus on its
// canonical stock
func (s *SyncService) validateAddonCandidate(ctx context.Context, candidateID, shopID uint64) (bool, error) {
	agg, err := s.catalogRepo.GetAddonCandidate(ctx, candidateID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	if agg.Product.ShopID != shopID {
		return false, nil
	}

	canonical := agg.CanonicalStock()
	if canonical == nil || !canonical.Stock.Addon {
		return false, nil
	}
	if canonical.Stock.Bonus != nil {
		return false, nil
	}
	return true, nil
}

// DeleteProducts soft deletes the listed products of a shop together with
// their branch variants. Unknown or foreign ids are skipped silently.
func (s *SyncService) DeleteProducts(ctx context.Context, shopID uint64, productIDs []uint64) (int, error) {
	if len(productIDs) == 0 {
		return 0, NewValidationError("products", "at least one product id is required", nil)
	}

	products, err := s.catalogRepo.ListByIDs(ctx, productIDs, shopID)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for i := range products {
		product := &products[i]
		err := s.catalogRepo.Transaction(ctx, func(tx repository.CatalogTx) error {
			return tx.SoftDeleteProductTree(ctx, product.ID)
		})
		if err != nil {
			// One failed delete never aborts the batch
			s.logger.WithFields(logrus.Fields{
				"product_id": product.ID,
				"error":      err.Error(),
			}).Warn("Product delete failed")
			continue
		}
		deleted++

		if err := s.redisClient.InvalidateProduct(ctx, product.UUID); err != nil {
			s.logger.WithError(err).Warn("Failed to invalidate product cache after delete")
		}
		if err := s.natsClient.PublishProductDeleted(ctx, &natsClient.ProductDeletedEvent{
			ProductID: product.ID,
			ShopID:    shopID,
		}); err != nil {
			s.logger.WithError(err).Warn("Failed to publish product deleted event")
		}
	}

	return deleted, nil
}
