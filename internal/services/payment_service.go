package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"catalog-service/internal/gateways"
	"catalog-service/internal/models"
	natsClient "catalog-service/internal/nats"
	redisClient "catalog-service/internal/redis"
	"catalog-service/internal/repository"
)

var (
	checkoutSessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_catalog_checkout_sessions_total",
		Help: "Total number of checkout sessions opened, by gateway",
	}, []string{"gateway"})
	webhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_catalog_webhook_events_total",
		Help: "Total number of webhook events applied, by gateway and status",
	}, []string{"gateway", "status"})
)

// PaymentService drives checkout initiation and webhook settlement
type PaymentService struct {
	paymentRepo repository.PaymentRepository
	registry    *gateways.Registry
	natsClient  *natsClient.Client
	redisClient *redisClient.Client
	logger      *logrus.Logger
	frontURL    string
	breakers    map[string]*gobreaker.CircuitBreaker
}

// NewPaymentService creates a new payment service. Each gateway gets its own
// circuit breaker so one failing vendor does not block the others.
func NewPaymentService(
	paymentRepo repository.PaymentRepository,
	registry *gateways.Registry,
	natsClient *natsClient.Client,
	redisClient *redisClient.Client,
	logger *logrus.Logger,
	frontURL string,
) *PaymentService {
	breakers := make(map[string]*gobreaker.CircuitBreaker)
	for _, name := range registry.Names() {
		breakers[name] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        fmt.Sprintf("gateway-%s", name),
			MaxRequests: 3,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		})
	}

	return &PaymentService{
		paymentRepo: paymentRepo,
		registry:    registry,
		natsClient:  natsClient,
		redisClient: redisClient,
		logger:      logger,
		frontURL:    frontURL,
		breakers:    breakers,
	}
}

// CheckoutTotal rounds the converted order total up to the nearest half
// subunit. The rounded value is what the gateway charges and what the order
// keeps as its total.
func CheckoutTotal(rateTotal float64) float64 {
	return math.Ceil(rateTotal*2*100) / 2
}

// createCheckout calls the gateway through its circuit breaker
func (s *PaymentService) createCheckout(ctx context.Context, provider gateways.Provider, req *gateways.CheckoutRequest) (*gateways.CheckoutSession, error) {
	breaker := s.breakers[provider.Name()]
	if breaker == nil {
		return provider.CreateCheckout(ctx, req)
	}

	result, err := breaker.Execute(func() (interface{}, error) {
		return provider.CreateCheckout(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &GatewayError{Gateway: provider.Name(), Message: "gateway temporarily unavailable"}
		}
		var vendorErr *gateways.APIError
		if errors.As(err, &vendorErr) {
			return nil, &GatewayError{Gateway: vendorErr.Gateway, Message: vendorErr.Message}
		}
		return nil, err
	}
	return result.(*gateways.CheckoutSession), nil
}

// ProcessOrderTransaction opens a checkout session for an order and records
// the attempt. A repeated attempt for the same order supersedes the previous
// process row.
func (s *PaymentService) ProcessOrderTransaction(ctx context.Context, gatewayName string, orderID, userID uint64) (*gateways.CheckoutSession, error) {
	provider, err := s.registry.Get(gatewayName)
	if err != nil {
		return nil, NewValidationError("gateway", err.Error(), s.registry.Names())
	}

	order, err := s.paymentRepo.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewNotFoundError("order", fmt.Sprintf("order %d does not exist", orderID))
		}
		return nil, err
	}
	if order.UserID != userID {
		return nil, NewNotFoundError("order", fmt.Sprintf("order %d does not exist", orderID))
	}
	if order.Transaction == nil {
		return nil, NewValidationError("order", "order has no transaction to pay", nil)
	}
	if order.Transaction.Status == models.TransactionStatusPaid {
		return nil, NewValidationError("order", "order is already paid", nil)
	}

	totalPrice := CheckoutTotal(order.RateTotalPrice())
	if err := s.paymentRepo.UpdateOrderTotal(ctx, order.ID, totalPrice); err != nil {
		return nil, err
	}

	customerName := ""
	customerEmail := ""
	if order.User != nil {
		customerName = fmt.Sprintf("%s %s", order.User.Firstname, order.User.Lastname)
		customerEmail = order.User.Email
	}

	session, err := s.createCheckout(ctx, provider, &gateways.CheckoutRequest{
		Reference:     fmt.Sprintf("%d-%d", order.ID, time.Now().Unix()),
		Amount:        totalPrice / 100,
		Currency:      order.Currency,
		CustomerName:  customerName,
		CustomerEmail: customerEmail,
		ReturnURL:     fmt.Sprintf("%s/orders/%d", s.frontURL, order.ID),
	})
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"gateway":  gatewayName,
			"order_id": orderID,
			"error":    err.Error(),
		}).Error("Checkout initiation failed")
		return nil, err
	}

	orderRef := order.ID
	_, err = s.paymentRepo.UpsertProcess(ctx, repository.ProcessKey{
		UserID:  userID,
		OrderID: &orderRef,
	}, session.Token, &models.PaymentProcessData{
		URL:     session.URL,
		Price:   totalPrice,
		OrderID: order.ID,
	})
	if err != nil {
		return nil, err
	}

	checkoutSessionsTotal.WithLabelValues(gatewayName).Inc()
	s.logger.WithFields(logrus.Fields{
		"gateway":  gatewayName,
		"order_id": orderID,
		"token":    session.Token,
	}).Info("Checkout session opened")

	return session, nil
}

// ProcessWalletTransaction opens a checkout session for a wallet top-up.
// A progress transaction is created up front; the webhook settles it and
// credits the wallet.
func (s *PaymentService) ProcessWalletTransaction(ctx context.Context, gatewayName string, user *models.User, amount float64, currency string) (*gateways.CheckoutSession, error) {
	provider, err := s.registry.Get(gatewayName)
	if err != nil {
		return nil, NewValidationError("gateway", err.Error(), s.registry.Names())
	}
	if amount <= 0 {
		return nil, NewValidationError("price", "top-up amount must be positive", nil)
	}
	if user.Wallet == nil {
		return nil, NewNotFoundError("wallet", fmt.Sprintf("user %d has no wallet", user.ID))
	}

	transaction := &models.Transaction{
		PayableID:   user.Wallet.ID,
		PayableType: "wallet",
		UserID:      user.ID,
		Price:       amount,
		Status:      models.TransactionStatusProgress,
		Note:        fmt.Sprintf("Wallet top-up for user #%d", user.ID),
	}
	if err := s.paymentRepo.CreateTransaction(ctx, transaction); err != nil {
		return nil, err
	}

	session, err := s.createCheckout(ctx, provider, &gateways.CheckoutRequest{
		Reference:     fmt.Sprintf("wallet-%s", uuid.NewString()),
		Amount:        amount,
		Currency:      currency,
		CustomerName:  fmt.Sprintf("%s %s", user.Firstname, user.Lastname),
		CustomerEmail: user.Email,
		ReturnURL:     fmt.Sprintf("%s/wallet", s.frontURL),
	})
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"gateway": gatewayName,
			"user_id": user.ID,
			"error":   err.Error(),
		}).Error("Wallet checkout initiation failed")
		return nil, err
	}

	_, err = s.paymentRepo.UpsertProcess(ctx, repository.ProcessKey{
		UserID: user.ID,
	}, session.Token, &models.PaymentProcessData{
		URL:    session.URL,
		Price:  amount,
		Type:   "wallet",
		TrxID:  transaction.ID,
		UserID: user.ID,
	})
	if err != nil {
		return nil, err
	}

	checkoutSessionsTotal.WithLabelValues(gatewayName).Inc()
	s.logger.WithFields(logrus.Fields{
		"gateway": gatewayName,
		"user_id": user.ID,
		"token":   session.Token,
	}).Info("Wallet top-up session opened")

	return session, nil
}

// ParseWebhook resolves the gateway and reduces its payload to a webhook
// event
func (s *PaymentService) ParseWebhook(gatewayName string, body []byte) (*gateways.WebhookEvent, error) {
	provider, err := s.registry.Get(gatewayName)
	if err != nil {
		return nil, err
	}
	return provider.ParseWebhook(body)
}

// ApplyWebhook settles the transaction a gateway callback refers to. Unknown
// tokens and repeated deliveries are ignored. A paid wallet top-up credits
// the wallet and appends its ledger entry.
func (s *PaymentService) ApplyWebhook(ctx context.Context, gatewayName string, event *gateways.WebhookEvent) error {
	if event.Token == "" {
		s.logger.WithField("gateway", gatewayName).Warn("Webhook without vendor token ignored")
		return nil
	}

	first, dedupErr := s.redisClient.MarkWebhookSeen(ctx, gatewayName, event.Token, event.Status)
	if dedupErr != nil {
		// Dedup is advisory: a Redis outage must not drop settlements
		s.logger.WithError(dedupErr).Warn("Webhook dedup check failed, processing anyway")
	} else if !first {
		s.logger.WithFields(logrus.Fields{
			"gateway": gatewayName,
			"token":   event.Token,
			"status":  event.Status,
		}).Info("Duplicate webhook delivery ignored")
		return nil
	}

	if err := s.settleWebhook(ctx, gatewayName, event); err != nil {
		// The key must not outlive a failed settlement or the gateway's
		// redelivery would be dropped as a duplicate
		if first && dedupErr == nil {
			if clearErr := s.redisClient.ClearWebhookSeen(ctx, gatewayName, event.Token, event.Status); clearErr != nil {
				s.logger.WithError(clearErr).Warn("Failed to release webhook dedup key")
			}
		}
		return err
	}
	return nil
}

func (s *PaymentService) settleWebhook(ctx context.Context, gatewayName string, event *gateways.WebhookEvent) error {
	process, err := s.paymentRepo.FindProcessByToken(ctx, event.Token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.WithFields(logrus.Fields{
				"gateway": gatewayName,
				"token":   event.Token,
			}).Warn("Webhook for unknown payment process ignored")
			return nil
		}
		return err
	}

	var data models.PaymentProcessData
	if err := process.Data.Decode(&data); err != nil {
		return fmt.Errorf("failed to decode process payload: %w", err)
	}

	var transactionID uint64
	if data.Type == "wallet" {
		transactionID, err = s.applyWalletWebhook(ctx, event, &data)
	} else {
		transactionID, err = s.applyOrderWebhook(ctx, event, process)
	}
	if err != nil {
		return err
	}

	if err := s.natsClient.PublishTransactionUpdated(ctx, &natsClient.TransactionUpdatedEvent{
		TransactionID: transactionID,
		Gateway:       gatewayName,
		Status:        string(event.Status),
		PaymentTrxID:  event.Token,
	}); err != nil {
		s.logger.WithError(err).Warn("Failed to publish transaction updated event")
	}

	// A settled process row has served its purpose
	if event.Status.IsTerminal() {
		if err := s.paymentRepo.DeleteProcess(ctx, event.Token); err != nil {
			s.logger.WithError(err).Warn("Failed to delete settled payment process")
		}
	}

	webhookEventsTotal.WithLabelValues(gatewayName, string(event.Status)).Inc()
	s.logger.WithFields(logrus.Fields{
		"gateway":        gatewayName,
		"token":          event.Token,
		"vendor_status":  event.VendorStatus,
		"status":         event.Status,
		"transaction_id": transactionID,
	}).Info("Webhook applied")

	return nil
}

func (s *PaymentService) applyOrderWebhook(ctx context.Context, event *gateways.WebhookEvent, process *models.PaymentProcess) (uint64, error) {
	if process.Order == nil || process.Order.Transaction == nil {
		return 0, fmt.Errorf("payment process %s has no order transaction", process.ID)
	}

	transaction := process.Order.Transaction
	if err := s.paymentRepo.UpdateTransactionStatus(ctx, transaction.ID, event.Token, event.Status); err != nil {
		return 0, err
	}
	return transaction.ID, nil
}

func (s *PaymentService) applyWalletWebhook(ctx context.Context, event *gateways.WebhookEvent, data *models.PaymentProcessData) (uint64, error) {
	transaction, err := s.paymentRepo.GetTransaction(ctx, data.TrxID)
	if err != nil {
		return 0, err
	}

	if err := s.paymentRepo.UpdateTransactionStatus(ctx, transaction.ID, event.Token, event.Status); err != nil {
		return 0, err
	}

	if event.Status == models.TransactionStatusPaid {
		if err := s.paymentRepo.CreditWallet(ctx, data.UserID, transaction.Price, transaction); err != nil {
			return 0, err
		}
		if err := s.natsClient.PublishWalletCredited(ctx, &natsClient.WalletCreditedEvent{
			WalletID: transaction.PayableID,
			UserID:   data.UserID,
			Amount:   transaction.Price,
		}); err != nil {
			s.logger.WithError(err).Warn("Failed to publish wallet credited event")
		}
	}

	return transaction.ID, nil
}

// PurgeStaleProcesses removes checkout attempts older than the retention
// window. Called by the cleanup scheduler.
func (s *PaymentService) PurgeStaleProcesses(ctx context.Context, olderThan time.Duration) (int64, error) {
	purged, err := s.paymentRepo.PurgeStaleProcesses(ctx, olderThan)
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		s.logger.WithField("purged", purged).Info("Stale payment processes removed")
	}
	return purged, nil
}
