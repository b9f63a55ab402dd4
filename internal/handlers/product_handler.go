package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"catalog-service/internal/services"
)

// ProductHandler exposes the seller-facing replication endpoints
type ProductHandler struct {
	syncService *services.SyncService
}

// NewProductHandler creates a new product handler
func NewProductHandler(syncService *services.SyncService) *ProductHandler {
	return &ProductHandler{syncService: syncService}
}

// ParentSyncRequest is the replication batch request
type ParentSyncRequest struct {
	ShopID   uint64   `json:"shop_id" binding:"required"`
	Products []uint64 `json:"products" binding:"required,min=1"`
}

// ParentSync godoc
// @Summary Replicate parent products into a branch shop
// @Description Clones each listed parent product into the target shop. Failed
// ids are reported per item and do not abort the batch.
// @Tags products
// @Accept json
// @Produce json
// @Param request body ParentSyncRequest true "Sync request"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/seller/products/parent-sync [post]
func (h *ProductHandler) ParentSync(c *gin.Context) {
	var req ParentSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.syncService.ParentSync(c.Request.Context(), req.ShopID, req.Products)
	if err != nil {
		ServiceErrorResponse(c, err)
		return
	}

	// Any failed id makes the batch report failure, alongside what did sync
	response := gin.H{
		"success":    len(result.Errors) == 0,
		"data":       gin.H{"synced": result.Synced},
		"request_id": getRequestID(c),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}
	if len(result.Errors) > 0 {
		response["message"] = "Some products could not be synced"
		response["errors"] = result.Errors
	} else {
		response["message"] = "Products synced"
	}

	c.JSON(http.StatusOK, response)
}

// Get godoc
// @Summary Load a product with its full aggregate
// @Description Returns the product, its translations, stocks, addons and
// related rows. Served from cache between syncs.
// @Tags products
// @Produce json
// @Param uuid path string true "Product UUID"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/seller/products/{uuid} [get]
func (h *ProductHandler) Get(c *gin.Context) {
	agg, err := h.syncService.GetProduct(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		ServiceErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Product found", agg)
}

// SyncAddonsRequest replaces a stock's addon list
type SyncAddonsRequest struct {
	Addons []uint64 `json:"addons"`
}

// SyncAddons godoc
// @Summary Replace the addon list of a stock
// @Description Attaches the listed products as addons of the stock. An empty
// list clears all links. Invalid candidates are skipped and reported.
// @Tags products
// @Accept json
// @Produce json
// @Param id path int true "Stock ID"
// @Param request body SyncAddonsRequest true "Addon product ids"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/seller/stocks/{id}/addons [post]
func (h *ProductHandler) SyncAddons(c *gin.Context) {
	stockID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid stock id", err)
		return
	}

	var req SyncAddonsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rejected, err := h.syncService.SyncStockAddons(c.Request.Context(), stockID, req.Addons)
	if err != nil {
		ServiceErrorResponse(c, err)
		return
	}

	data := gin.H{}
	if len(rejected) > 0 {
		data["rejected"] = rejected
	}
	SuccessResponse(c, http.StatusOK, "Addon list updated", data)
}

// DeleteProductsRequest lists products to delete from a shop
type DeleteProductsRequest struct {
	ShopID   uint64   `json:"shop_id" binding:"required"`
	Products []uint64 `json:"products" binding:"required,min=1"`
}

// Delete godoc
// @Summary Soft delete products together with their branch copies
// @Tags products
// @Accept json
// @Produce json
// @Param request body DeleteProductsRequest true "Delete request"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/seller/products [delete]
func (h *ProductHandler) Delete(c *gin.Context) {
	var req DeleteProductsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	deleted, err := h.syncService.DeleteProducts(c.Request.Context(), req.ShopID, req.Products)
	if err != nil {
		ServiceErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Products deleted", gin.H{"deleted": deleted})
}
