package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"catalog-service/internal/middleware"
	"catalog-service/internal/services"
)

// WalletHandler exposes wallet balance and ledger reads
type WalletHandler struct {
	walletService *services.WalletService
}

// NewWalletHandler creates a new wallet handler
func NewWalletHandler(walletService *services.WalletService) *WalletHandler {
	return &WalletHandler{walletService: walletService}
}

// Get returns the caller's wallet
// GET /api/v1/wallet
func (h *WalletHandler) Get(c *gin.Context) {
	wallet, err := h.walletService.GetWallet(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		ServiceErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "", wallet)
}

// History returns the caller's wallet ledger, newest first
// GET /api/v1/wallet/history
func (h *WalletHandler) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	histories, err := h.walletService.ListHistory(c.Request.Context(), middleware.GetUserID(c), limit, offset)
	if err != nil {
		ServiceErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "", gin.H{"histories": histories})
}
