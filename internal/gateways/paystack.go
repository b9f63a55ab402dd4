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

const paystackBaseURL = "https://api.paystack.co"

// Paystack implements the Paystack transaction API
type Paystack struct {
	secretKey string
	baseURL   string
	client    *http.Client
}

// NewPaystack creates a new Paystack provider
func NewPaystack(secretKey string) *Paystack {
	return &Paystack{
		secretKey: secretKey,
		baseURL:   paystackBaseURL,
		client:    newHTTPClient(),
	}
}

// Name returns the gateway identifier
func (p *Paystack) Name() string { return "paystack" }

type paystackInitRequest struct {
	Email       string `json:"email"`
	Amount      int64  `json:"amount"` // subunits
	Currency    string `json:"currency"`
	Reference   string `json:"reference,omitempty"`
	CallbackURL string `json:"callback_url"`
}

type paystackInitResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

// CreateCheckout initializes a Paystack transaction and returns its
// reference plus the hosted authorization URL
func (p *Paystack) CreateCheckout(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error) {
	payload := paystackInitRequest{
		Email:       req.CustomerEmail,
		Amount:      int64(math.Round(req.Amount * 100)),
		Currency:    strings.ToUpper(req.Currency),
		Reference:   req.Reference,
		CallbackURL: req.ReturnURL,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode paystack request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/transaction/initialize", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build paystack request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.secretKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("paystack request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read paystack response: %w", err)
	}

	var parsed paystackInitResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode paystack response: %w", err)
	}

	if !parsed.Status {
		message := parsed.Message
		if message == "" {
			message = "PayStack server error"
		}
		return nil, &APIError{Gateway: p.Name(), Message: message}
	}

	return &CheckoutSession{
		Token: parsed.Data.Reference,
		URL:   parsed.Data.AuthorizationURL,
	}, nil
}

type paystackWebhook struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
	} `json:"data"`
}

// ParseWebhook extracts the vendor token and maps the event name onto the
// canonical status
func (p *Paystack) ParseWebhook(body []byte) (*WebhookEvent, error) {
	var payload paystackWebhook
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode paystack webhook: %w", err)
	}

	return &WebhookEvent{
		Token:        payload.Data.Reference,
		VendorStatus: payload.Event,
		Status:       MapPaystackStatus(payload.Event),
	}, nil
}

// MapPaystackStatus maps a Paystack event name onto the canonical status
func MapPaystackStatus(event string) models.TransactionStatus {
	switch event {
	case "charge.success":
		return models.TransactionStatusPaid
	default:
		return models.TransactionStatusProgress
	}
}
