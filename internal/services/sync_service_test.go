package services

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"catalog-service/internal/models"
	"catalog-service/internal/repository"
)

// MockCatalogRepository is a mock implementation of CatalogRepository
type MockCatalogRepository struct {
	mock.Mock
}

func (m *MockCatalogRepository) GetAggregate(ctx context.Context, productID uint64, addonDepth int) (*models.ProductAggregate, error) {
	args := m.Called(ctx, productID, addonDepth)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProductAggregate), args.Error(1)
}

func (m *MockCatalogRepository) GetByUUID(ctx context.Context, uuid string) (*models.ProductAggregate, error) {
	args := m.Called(ctx, uuid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProductAggregate), args.Error(1)
}

func (m *MockCatalogRepository) GetStock(ctx context.Context, stockID uint64) (*models.Stock, *models.Product, error) {
	args := m.Called(ctx, stockID)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*models.Stock), args.Get(1).(*models.Product), args.Error(2)
}

func (m *MockCatalogRepository) GetAddonCandidate(ctx context.Context, productID uint64) (*models.ProductAggregate, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProductAggregate), args.Error(1)
}

func (m *MockCatalogRepository) ListByIDs(ctx context.Context, ids []uint64, shopID uint64) ([]models.Product, error) {
	args := m.Called(ctx, ids, shopID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Product), args.Error(1)
}

func (m *MockCatalogRepository) ClearStockAddons(ctx context.Context, stockID uint64) error {
	args := m.Called(ctx, stockID)
	return args.Error(0)
}

func (m *MockCatalogRepository) AddStockAddon(ctx context.Context, stockID, addonProductID uint64) error {
	args := m.Called(ctx, stockID, addonProductID)
	return args.Error(0)
}

func (m *MockCatalogRepository) Transaction(ctx context.Context, fn func(tx repository.CatalogTx) error) error {
	args := m.Called(ctx, fn)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	tx := m.TestData().Get("tx").Data()
	if tx == nil {
		return nil
	}
	return fn(tx.(repository.CatalogTx))
}

// MockCatalogTx is a mock implementation of CatalogTx
type MockCatalogTx struct {
	mock.Mock
}

func (m *MockCatalogTx) UpsertProductClone(ctx context.Context, key repository.ProductCloneKey, src *models.Product) (*models.Product, error) {
	args := m.Called(ctx, key, src)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockCatalogTx) UpsertTranslation(ctx context.Context, key repository.TranslationKey, src *models.ProductTranslation) error {
	args := m.Called(ctx, key, src)
	return args.Error(0)
}

func (m *MockCatalogTx) UpsertMetaTag(ctx context.Context, productID uint64, src *models.MetaTag) error {
	args := m.Called(ctx, productID, src)
	return args.Error(0)
}

func (m *MockCatalogTx) ReplaceGalleries(ctx context.Context, productID uint64, src []models.Gallery) error {
	args := m.Called(ctx, productID, src)
	return args.Error(0)
}

func (m *MockCatalogTx) ReactivateDiscountLink(ctx context.Context, key repository.DiscountLinkKey) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockCatalogTx) UpsertTag(ctx context.Context, productID uint64, src *models.Tag) error {
	args := m.Called(ctx, productID, src)
	return args.Error(0)
}

func (m *MockCatalogTx) UpsertProperty(ctx context.Context, key repository.PropertyKey, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockCatalogTx) UpsertStockClone(ctx context.Context, key repository.StockCloneKey, src *models.Stock) (*models.Stock, error) {
	args := m.Called(ctx, key, src)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Stock), args.Error(1)
}

func (m *MockCatalogTx) SyncStockExtras(ctx context.Context, stockID uint64, extraIDs []uint64) error {
	args := m.Called(ctx, stockID, extraIDs)
	return args.Error(0)
}

func (m *MockCatalogTx) LinkStockAddon(ctx context.Context, stockID, addonProductID uint64) error {
	args := m.Called(ctx, stockID, addonProductID)
	return args.Error(0)
}

func (m *MockCatalogTx) SoftDeleteProductTree(ctx context.Context, productID uint64) error {
	args := m.Called(ctx, productID)
	return args.Error(0)
}

func newTestSyncService(repo *MockCatalogRepository) *SyncService {
	logger := logrus.New()
	logger.SetOutput(testWriter{})
	return NewSyncService(repo, nil, nil, logger, 30*time.Minute)
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func parentAggregate(productID, shopID uint64) *models.ProductAggregate {
	now := time.Now()
	return &models.ProductAggregate{
		Product: models.Product{
			ID:        productID,
			UUID:      "parent-uuid",
			ShopID:    shopID,
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		},
		Translations: []models.ProductTranslation{
			{ProductID: productID, Locale: "en", Title: "Espresso"},
		},
		Stocks: []models.StockAggregate{
			{
				Stock: models.Stock{
					ID:            11,
					CountableType: "product",
					CountableID:   productID,
					Price:         4.5,
					Quantity:      100,
				},
				ExtraIDs: []uint64{7, 8},
			},
		},
	}
}

func TestParentSyncValidation(t *testing.T) {
	svc := newTestSyncService(&MockCatalogRepository{})

	_, err := svc.ParentSync(context.Background(), 0, []uint64{1})
	_, ok := IsValidationError(err)
	assert.True(t, ok)

	_, err = svc.ParentSync(context.Background(), 5, nil)
	_, ok = IsValidationError(err)
	assert.True(t, ok)
}

func TestParentSyncClonesAggregate(t *testing.T) {
	repo := &MockCatalogRepository{}
	tx := &MockCatalogTx{}
	repo.TestData().Set("tx", tx)

	agg := parentAggregate(1, 10)
	child := &models.Product{ID: 101, UUID: "child-uuid", ShopID: 20}
	childStock := &models.Stock{ID: 111, CountableType: "product", CountableID: 101}

	repo.On("GetAggregate", mock.Anything, uint64(1), models.AddonDepth).Return(agg, nil)
	repo.On("Transaction", mock.Anything, mock.Anything).Return(nil)

	tx.On("UpsertProductClone", mock.Anything, repository.ProductCloneKey{ParentID: 1, ShopID: 20}, mock.Anything).Return(child, nil)
	tx.On("UpsertTranslation", mock.Anything, repository.TranslationKey{ProductID: 101, Locale: "en"}, mock.Anything).Return(nil)
	tx.On("ReplaceGalleries", mock.Anything, uint64(101), mock.Anything).Return(nil)
	tx.On("UpsertStockClone", mock.Anything, repository.StockCloneKey{CountableType: "product", CountableID: 101, ParentStockID: 11}, mock.Anything).Return(childStock, nil)
	tx.On("SyncStockExtras", mock.Anything, uint64(111), []uint64{7, 8}).Return(nil)

	svc := newTestSyncService(repo)
	result, err := svc.ParentSync(context.Background(), 20, []uint64{1})
	require.NoError(t, err)

	require.Len(t, result.Synced, 1)
	assert.Empty(t, result.Errors)
	assert.Equal(t, uint64(1), result.Synced[0].ParentID)
	assert.Equal(t, uint64(101), result.Synced[0].ChildID)
	assert.Equal(t, "child-uuid", result.Synced[0].ChildUUID)

	tx.AssertExpectations(t)
}

func TestParentSyncSkipsClonedStocks(t *testing.T) {
	repo := &MockCatalogRepository{}
	tx := &MockCatalogTx{}
	repo.TestData().Set("tx", tx)

	parentStockID := uint64(11)
	agg := parentAggregate(1, 10)
	agg.Stocks = append(agg.Stocks, models.StockAggregate{
		Stock: models.Stock{
			ID:            12,
			CountableType: "product",
			CountableID:   1,
			ParentID:      &parentStockID,
		},
	})
	child := &models.Product{ID: 101, UUID: "child-uuid", ShopID: 20}
	childStock := &models.Stock{ID: 111}

	repo.On("GetAggregate", mock.Anything, uint64(1), models.AddonDepth).Return(agg, nil)
	repo.On("Transaction", mock.Anything, mock.Anything).Return(nil)

	tx.On("UpsertProductClone", mock.Anything, mock.Anything, mock.Anything).Return(child, nil)
	tx.On("UpsertTranslation", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	tx.On("ReplaceGalleries", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	tx.On("UpsertStockClone", mock.Anything, mock.Anything, mock.Anything).Return(childStock, nil)
	tx.On("SyncStockExtras", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	svc := newTestSyncService(repo)
	result, err := svc.ParentSync(context.Background(), 20, []uint64{1})
	require.NoError(t, err)
	require.Len(t, result.Synced, 1)

	// Only the canonical stock propagates, the already-cloned one is skipped
	tx.AssertNumberOfCalls(t, "UpsertStockClone", 1)
}

func addonAggregate(productID uint64) models.ProductAggregate {
	return models.ProductAggregate{
		Product: models.Product{
			ID:     productID,
			UUID:   "addon-uuid",
			ShopID: 10,
			Addon:  true,
			Active: true,
		},
		Translations: []models.ProductTranslation{
			{ProductID: productID, Locale: "en", Title: "Extra shot"},
		},
		Properties: []models.ProductProperty{
			{ProductID: productID, Locale: "en", Key: "size", Value: "double"},
		},
		MetaTags: []models.MetaTag{
			{ModelID: productID, ModelType: "product", Title: "Extra shot"},
		},
		Galleries: []models.Gallery{
			{LoadableID: productID, LoadableType: "product", Path: "addons/extra-shot.png"},
		},
		Tags: []models.Tag{
			{ProductID: productID, Active: true},
		},
		DiscountIDs: []uint64{5},
		Stocks: []models.StockAggregate{
			{
				Stock: models.Stock{
					ID:            21,
					CountableType: "product",
					CountableID:   productID,
					Price:         1.5,
					Quantity:      50,
					Addon:         true,
				},
				ExtraIDs: []uint64{9},
			},
		},
	}
}

func TestParentSyncClonesAddonCollections(t *testing.T) {
	repo := &MockCatalogRepository{}
	tx := &MockCatalogTx{}
	repo.TestData().Set("tx", tx)

	agg := parentAggregate(1, 10)
	agg.Stocks[0].Addons = []models.ProductAggregate{addonAggregate(300)}

	child := &models.Product{ID: 101, UUID: "child-uuid", ShopID: 20}
	childStock := &models.Stock{ID: 111}
	addonClone := &models.Product{ID: 301, UUID: "addon-child-uuid", ShopID: 20}
	addonStock := &models.Stock{ID: 211}

	repo.On("GetAggregate", mock.Anything, uint64(1), models.AddonDepth).Return(agg, nil)
	repo.On("Transaction", mock.Anything, mock.Anything).Return(nil)

	tx.On("UpsertProductClone", mock.Anything, repository.ProductCloneKey{ParentID: 1, ShopID: 20}, mock.Anything).Return(child, nil)
	tx.On("UpsertProductClone", mock.Anything, repository.ProductCloneKey{ParentID: 300, ShopID: 20}, mock.Anything).Return(addonClone, nil)
	tx.On("UpsertTranslation", mock.Anything, repository.TranslationKey{ProductID: 101, Locale: "en"}, mock.Anything).Return(nil)
	tx.On("UpsertTranslation", mock.Anything, repository.TranslationKey{ProductID: 301, Locale: "en"}, mock.Anything).Return(nil)
	tx.On("UpsertMetaTag", mock.Anything, uint64(301), mock.Anything).Return(nil)
	tx.On("ReplaceGalleries", mock.Anything, uint64(101), mock.Anything).Return(nil)
	tx.On("ReplaceGalleries", mock.Anything, uint64(301), mock.Anything).Return(nil)
	tx.On("ReactivateDiscountLink", mock.Anything, repository.DiscountLinkKey{DiscountID: 5, ProductID: 301}).Return(nil)
	tx.On("UpsertTag", mock.Anything, uint64(301), mock.Anything).Return(nil)
	tx.On("UpsertProperty", mock.Anything, repository.PropertyKey{ProductID: 301, Locale: "en", Key: "size"}, "double").Return(nil)
	tx.On("UpsertStockClone", mock.Anything, repository.StockCloneKey{CountableType: "product", CountableID: 101, ParentStockID: 11}, mock.Anything).Return(childStock, nil)
	tx.On("UpsertStockClone", mock.Anything, repository.StockCloneKey{CountableType: "product", CountableID: 301, ParentStockID: 21}, mock.Anything).Return(addonStock, nil)
	tx.On("SyncStockExtras", mock.Anything, uint64(111), []uint64{7, 8}).Return(nil)
	tx.On("SyncStockExtras", mock.Anything, uint64(211), []uint64{9}).Return(nil)
	tx.On("LinkStockAddon", mock.Anything, uint64(111), uint64(301)).Return(nil)

	svc := newTestSyncService(repo)
	result, err := svc.ParentSync(context.Background(), 20, []uint64{1})
	require.NoError(t, err)
	require.Len(t, result.Synced, 1)
	assert.Empty(t, result.Errors)

	// The addon clone carries the same dependent rows a parent clone does
	tx.AssertExpectations(t)
}

func TestParentSyncLinksStocklessAddon(t *testing.T) {
	repo := &MockCatalogRepository{}
	tx := &MockCatalogTx{}
	repo.TestData().Set("tx", tx)

	addon := addonAggregate(300)
	addon.Stocks = nil

	agg := parentAggregate(1, 10)
	agg.Stocks[0].Addons = []models.ProductAggregate{addon}

	child := &models.Product{ID: 101, UUID: "child-uuid", ShopID: 20}
	childStock := &models.Stock{ID: 111}
	addonClone := &models.Product{ID: 301, UUID: "addon-child-uuid", ShopID: 20}

	repo.On("GetAggregate", mock.Anything, uint64(1), models.AddonDepth).Return(agg, nil)
	repo.On("Transaction", mock.Anything, mock.Anything).Return(nil)

	tx.On("UpsertProductClone", mock.Anything, repository.ProductCloneKey{ParentID: 1, ShopID: 20}, mock.Anything).Return(child, nil)
	tx.On("UpsertProductClone", mock.Anything, repository.ProductCloneKey{ParentID: 300, ShopID: 20}, mock.Anything).Return(addonClone, nil)
	tx.On("UpsertTranslation", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	tx.On("UpsertMetaTag", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	tx.On("ReplaceGalleries", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	tx.On("ReactivateDiscountLink", mock.Anything, mock.Anything).Return(nil)
	tx.On("UpsertTag", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	tx.On("UpsertProperty", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	tx.On("UpsertStockClone", mock.Anything, mock.Anything, mock.Anything).Return(childStock, nil)
	tx.On("SyncStockExtras", mock.Anything, uint64(111), []uint64{7, 8}).Return(nil)
	tx.On("LinkStockAddon", mock.Anything, uint64(111), uint64(301)).Return(nil)

	svc := newTestSyncService(repo)
	result, err := svc.ParentSync(context.Background(), 20, []uint64{1})
	require.NoError(t, err)

	// A stockless addon is still cloned and linked, only its stock copy is
	// skipped
	require.Len(t, result.Synced, 1)
	assert.Empty(t, result.Errors)
	tx.AssertNumberOfCalls(t, "UpsertStockClone", 1)
	tx.AssertCalled(t, "LinkStockAddon", mock.Anything, uint64(111), uint64(301))
}

func TestParentSyncRejectsBranchVariant(t *testing.T) {
	repo := &MockCatalogRepository{}

	parentID := uint64(1)
	agg := parentAggregate(2, 10)
	agg.Product.ParentID = &parentID

	repo.On("GetAggregate", mock.Anything, uint64(2), models.AddonDepth).Return(agg, nil)

	svc := newTestSyncService(repo)
	result, err := svc.ParentSync(context.Background(), 20, []uint64{2})
	require.NoError(t, err)

	assert.Empty(t, result.Synced)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, uint64(2), result.Errors[0].ProductID)
	assert.Equal(t, "product is child", result.Errors[0].Message)
}

func TestParentSyncContinuesPastFailures(t *testing.T) {
	repo := &MockCatalogRepository{}
	tx := &MockCatalogTx{}
	repo.TestData().Set("tx", tx)

	agg := parentAggregate(3, 10)
	child := &models.Product{ID: 103, UUID: "child-uuid"}
	childStock := &models.Stock{ID: 113}

	repo.On("GetAggregate", mock.Anything, uint64(99), models.AddonDepth).Return(nil, repository.ErrNotFound)
	repo.On("GetAggregate", mock.Anything, uint64(3), models.AddonDepth).Return(agg, nil)
	repo.On("Transaction", mock.Anything, mock.Anything).Return(nil)

	tx.On("UpsertProductClone", mock.Anything, mock.Anything, mock.Anything).Return(child, nil)
	tx.On("UpsertTranslation", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	tx.On("ReplaceGalleries", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	tx.On("UpsertStockClone", mock.Anything, mock.Anything, mock.Anything).Return(childStock, nil)
	tx.On("SyncStockExtras", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	svc := newTestSyncService(repo)
	result, err := svc.ParentSync(context.Background(), 20, []uint64{99, 3})
	require.NoError(t, err)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "product not found", result.Errors[0].Message)
	require.Len(t, result.Synced, 1)
	assert.Equal(t, uint64(3), result.Synced[0].ParentID)
}

func TestGetProduct(t *testing.T) {
	repo := &MockCatalogRepository{}
	agg := parentAggregate(1, 10)
	repo.On("GetByUUID", mock.Anything, "parent-uuid").Return(agg, nil)

	svc := newTestSyncService(repo)
	got, err := svc.GetProduct(context.Background(), "parent-uuid")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.Product.ID)

	repo.On("GetByUUID", mock.Anything, "ghost").Return(nil, repository.ErrNotFound)
	_, err = svc.GetProduct(context.Background(), "ghost")
	_, ok := IsNotFoundError(err)
	assert.True(t, ok)
}

func TestSyncStockAddonsEmptyListClears(t *testing.T) {
	repo := &MockCatalogRepository{}

	stock := &models.Stock{ID: 5, CountableID: 1}
	owner := &models.Product{ID: 1, ShopID: 10}

	repo.On("GetStock", mock.Anything, uint64(5)).Return(stock, owner, nil)
	repo.On("ClearStockAddons", mock.Anything, uint64(5)).Return(nil)

	svc := newTestSyncService(repo)
	rejected, err := svc.SyncStockAddons(context.Background(), 5, nil)
	require.NoError(t, err)
	assert.Empty(t, rejected)

	repo.AssertCalled(t, "ClearStockAddons", mock.Anything, uint64(5))
}

func TestSyncStockAddonsValidation(t *testing.T) {
	repo := &MockCatalogRepository{}

	stock := &models.Stock{ID: 5, CountableID: 1}
	owner := &models.Product{ID: 1, ShopID: 10}

	validAddon := &models.ProductAggregate{
		Product: models.Product{ID: 30, ShopID: 10},
		Stocks: []models.StockAggregate{
			{Stock: models.Stock{ID: 31, Addon: true}},
		},
	}
	foreignShop := &models.ProductAggregate{
		Product: models.Product{ID: 40, ShopID: 99},
		Stocks: []models.StockAggregate{
			{Stock: models.Stock{ID: 41, Addon: true}},
		},
	}
	notSellableAsAddon := &models.ProductAggregate{
		Product: models.Product{ID: 50, ShopID: 10},
		Stocks: []models.StockAggregate{
			{Stock: models.Stock{ID: 51, Addon: false}},
		},
	}
	withBonus := &models.ProductAggregate{
		Product: models.Product{ID: 60, ShopID: 10},
		Stocks: []models.StockAggregate{
			{Stock: models.Stock{ID: 61, Addon: true, Bonus: &models.Bonus{ID: 1}}},
		},
	}

	repo.On("GetStock", mock.Anything, uint64(5)).Return(stock, owner, nil)
	repo.On("GetAddonCandidate", mock.Anything, uint64(30)).Return(validAddon, nil)
	repo.On("GetAddonCandidate", mock.Anything, uint64(40)).Return(foreignShop, nil)
	repo.On("GetAddonCandidate", mock.Anything, uint64(50)).Return(notSellableAsAddon, nil)
	repo.On("GetAddonCandidate", mock.Anything, uint64(60)).Return(withBonus, nil)
	repo.On("GetAddonCandidate", mock.Anything, uint64(70)).Return(nil, repository.ErrNotFound)
	repo.On("ClearStockAddons", mock.Anything, uint64(5)).Return(nil)
	repo.On("AddStockAddon", mock.Anything, uint64(5), uint64(30)).Return(nil)

	svc := newTestSyncService(repo)
	rejected, err := svc.SyncStockAddons(context.Background(), 5, []uint64{30, 40, 50, 60, 70})
	require.NoError(t, err)

	assert.ElementsMatch(t, []uint64{40, 50, 60, 70}, rejected)
	repo.AssertCalled(t, "AddStockAddon", mock.Anything, uint64(5), uint64(30))
	repo.AssertNumberOfCalls(t, "AddStockAddon", 1)
}

func TestSyncStockAddonsUnknownStock(t *testing.T) {
	repo := &MockCatalogRepository{}
	repo.On("GetStock", mock.Anything, uint64(404)).Return(nil, nil, repository.ErrNotFound)

	svc := newTestSyncService(repo)
	_, err := svc.SyncStockAddons(context.Background(), 404, []uint64{1})
	_, ok := IsNotFoundError(err)
	assert.True(t, ok)
}

func TestDeleteProducts(t *testing.T) {
	repo := &MockCatalogRepository{}
	tx := &MockCatalogTx{}
	repo.TestData().Set("tx", tx)

	products := []models.Product{
		{ID: 1, ShopID: 10},
		{ID: 2, ShopID: 10},
	}

	repo.On("ListByIDs", mock.Anything, []uint64{1, 2, 99}, uint64(10)).Return(products, nil)
	repo.On("Transaction", mock.Anything, mock.Anything).Return(nil)
	tx.On("SoftDeleteProductTree", mock.Anything, uint64(1)).Return(nil)
	tx.On("SoftDeleteProductTree", mock.Anything, uint64(2)).Return(nil)

	svc := newTestSyncService(repo)
	deleted, err := svc.DeleteProducts(context.Background(), 10, []uint64{1, 2, 99})
	require.NoError(t, err)

	// The foreign id 99 is silently skipped
	assert.Equal(t, 2, deleted)
	tx.AssertExpectations(t)
}
