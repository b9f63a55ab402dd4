package gateways

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"catalog-service/internal/models"
)

const stripeBaseURL = "https://api.stripe.com/v1"

// Stripe implements the Stripe Checkout Sessions API
type Stripe struct {
	secretKey string
	baseURL   string
	client    *http.Client
}

// NewStripe creates a new Stripe provider
func NewStripe(secretKey string) *Stripe {
	return &Stripe{
		secretKey: secretKey,
		baseURL:   stripeBaseURL,
		client:    newHTTPClient(),
	}
}

// Name returns the gateway identifier
func (s *Stripe) Name() string { return "stripe" }

type stripeSessionResponse struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	PaymentIntent string `json:"payment_intent"`
	Error         *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// CreateCheckout creates a checkout session. Stripe expects form-encoded
// bodies and amounts in the smallest currency unit.
func (s *Stripe) CreateCheckout(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("client_reference_id", req.Reference)
	form.Set("customer_email", req.CustomerEmail)
	form.Set("success_url", req.ReturnURL)
	form.Set("cancel_url", req.ReturnURL)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(req.Currency))
	form.Set("line_items[0][price_data][product_data][name]", "Payment")
	form.Set("line_items[0][price_data][unit_amount]",
		strconv.FormatInt(int64(math.Round(req.Amount*100)), 10))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build stripe request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.secretKey)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("stripe request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read stripe response: %w", err)
	}

	var parsed stripeSessionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode stripe response: %w", err)
	}

	if parsed.Error != nil || parsed.ID == "" {
		message := "Stripe server error"
		if parsed.Error != nil && parsed.Error.Message != "" {
			message = parsed.Error.Message
		}
		return nil, &APIError{Gateway: s.Name(), Message: message}
	}

	return &CheckoutSession{Token: parsed.ID, URL: parsed.URL}, nil
}

type stripeWebhook struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID string `json:"id"`
		} `json:"object"`
	} `json:"data"`
}

// ParseWebhook extracts the session id and event type
func (s *Stripe) ParseWebhook(body []byte) (*WebhookEvent, error) {
	var payload stripeWebhook
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode stripe webhook: %w", err)
	}

	return &WebhookEvent{
		Token:        payload.Data.Object.ID,
		VendorStatus: payload.Type,
		Status:       MapStripeStatus(payload.Type),
	}, nil
}

// MapStripeStatus maps checkout session event types onto the canonical status
func MapStripeStatus(eventType string) models.TransactionStatus {
	switch eventType {
	case "checkout.session.completed":
		return models.TransactionStatusPaid
	case "checkout.session.expired":
		return models.TransactionStatusCanceled
	default:
		return models.TransactionStatusProgress
	}
}
