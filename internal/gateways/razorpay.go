package gateways

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"

	"catalog-service/internal/models"
)

const razorpayBaseURL = "https://api.razorpay.com/v1"

// Razorpay implements the Razorpay payment-link API
type Razorpay struct {
	keyID     string
	keySecret string
	baseURL   string
	client    *http.Client
}

// NewRazorpay creates a new Razorpay provider
func NewRazorpay(keyID, keySecret string) *Razorpay {
	return &Razorpay{
		keyID:     keyID,
		keySecret: keySecret,
		baseURL:   razorpayBaseURL,
		client:    newHTTPClient(),
	}
}

// Name returns the gateway identifier
func (r *Razorpay) Name() string { return "razorpay" }

type razorpayLinkRequest struct {
	Amount      int64             `json:"amount"` // subunits
	Currency    string            `json:"currency"`
	ReferenceID string            `json:"reference_id,omitempty"`
	Customer    razorpayCustomer  `json:"customer"`
	CallbackURL string            `json:"callback_url"`
	Notes       map[string]string `json:"notes,omitempty"`
}

type razorpayCustomer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type razorpayLinkResponse struct {
	ID       string `json:"id"`
	ShortURL string `json:"short_url"`
	Status   string `json:"status"`
	Error    *struct {
		Description string `json:"description"`
	} `json:"error,omitempty"`
}

// CreateCheckout creates a Razorpay payment link
func (r *Razorpay) CreateCheckout(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error) {
	payload := razorpayLinkRequest{
		Amount:      int64(math.Round(req.Amount * 100)),
		Currency:    strings.ToUpper(req.Currency),
		ReferenceID: req.Reference,
		Customer: razorpayCustomer{
			Name:  req.CustomerName,
			Email: req.CustomerEmail,
		},
		CallbackURL: req.ReturnURL,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode razorpay request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.baseURL+"/payment_links", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build razorpay request: %w", err)
	}
	httpReq.SetBasicAuth(r.keyID, r.keySecret)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("razorpay request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read razorpay response: %w", err)
	}

	var parsed razorpayLinkResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode razorpay response: %w", err)
	}

	if parsed.Error != nil {
		return nil, &APIError{Gateway: r.Name(), Message: parsed.Error.Description}
	}
	if parsed.ID == "" {
		return nil, &APIError{Gateway: r.Name(), Message: "RazorPay server error"}
	}

	return &CheckoutSession{Token: parsed.ID, URL: parsed.ShortURL}, nil
}

type razorpayWebhook struct {
	Payload struct {
		PaymentLink struct {
			Entity struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"entity"`
		} `json:"payment_link"`
	} `json:"payload"`
}

// ParseWebhook extracts the payment link id and status from the nested
// payload
func (r *Razorpay) ParseWebhook(body []byte) (*WebhookEvent, error) {
	var payload razorpayWebhook
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode razorpay webhook: %w", err)
	}

	entity := payload.Payload.PaymentLink.Entity
	return &WebhookEvent{
		Token:        entity.ID,
		VendorStatus: entity.Status,
		Status:       MapRazorpayStatus(entity.Status),
	}, nil
}

// MapRazorpayStatus maps a payment link status onto the canonical status
func MapRazorpayStatus(status string) models.TransactionStatus {
	switch status {
	case "paid":
		return models.TransactionStatusPaid
	case "cancelled", "expired":
		return models.TransactionStatusCanceled
	default:
		return models.TransactionStatusProgress
	}
}
