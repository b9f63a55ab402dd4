package gateways

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"catalog-service/internal/models"
)

const mercadoPagoBaseURL = "https://api.mercadopago.com"

// MercadoPago implements the Mercado Pago checkout preference API
type MercadoPago struct {
	accessToken string
	baseURL     string
	client      *http.Client
}

// NewMercadoPago creates a new Mercado Pago provider
func NewMercadoPago(accessToken string) *MercadoPago {
	return &MercadoPago{
		accessToken: accessToken,
		baseURL:     mercadoPagoBaseURL,
		client:      newHTTPClient(),
	}
}

// Name returns the gateway identifier
func (m *MercadoPago) Name() string { return "mercadopago" }

type mercadoPagoPreferenceRequest struct {
	ExternalReference string                `json:"external_reference"`
	Items             []mercadoPagoItem     `json:"items"`
	Payer             mercadoPagoPayer      `json:"payer"`
	BackURLs          mercadoPagoBackURLs   `json:"back_urls"`
	AutoReturn        string                `json:"auto_return"`
}

type mercadoPagoItem struct {
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id"`
}

type mercadoPagoPayer struct {
	Email string `json:"email"`
}

type mercadoPagoBackURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

type mercadoPagoPreferenceResponse struct {
	ID        string `json:"id"`
	InitPoint string `json:"init_point"`
	Message   string `json:"message,omitempty"`
}

// CreateCheckout creates a checkout preference
func (m *MercadoPago) CreateCheckout(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error) {
	payload := mercadoPagoPreferenceRequest{
		ExternalReference: req.Reference,
		Items: []mercadoPagoItem{{
			Title:      "Payment",
			Quantity:   1,
			UnitPrice:  req.Amount,
			CurrencyID: strings.ToUpper(req.Currency),
		}},
		Payer: mercadoPagoPayer{Email: req.CustomerEmail},
		BackURLs: mercadoPagoBackURLs{
			Success: req.ReturnURL,
			Failure: req.ReturnURL,
			Pending: req.ReturnURL,
		},
		AutoReturn: "approved",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode mercadopago request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		m.baseURL+"/checkout/preferences", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build mercadopago request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+m.accessToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("mercadopago request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read mercadopago response: %w", err)
	}

	var parsed mercadoPagoPreferenceResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode mercadopago response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest || parsed.ID == "" {
		message := parsed.Message
		if message == "" {
			message = "Mercado Pago server error"
		}
		return nil, &APIError{Gateway: m.Name(), Message: message}
	}

	return &CheckoutSession{Token: parsed.ID, URL: parsed.InitPoint}, nil
}

type mercadoPagoWebhook struct {
	Data struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"data"`
}

// ParseWebhook extracts the vendor token and status from the data envelope
func (m *MercadoPago) ParseWebhook(body []byte) (*WebhookEvent, error) {
	var payload mercadoPagoWebhook
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode mercadopago webhook: %w", err)
	}

	return &WebhookEvent{
		Token:        payload.Data.ID,
		VendorStatus: payload.Data.Status,
		Status:       MapSettlementStatus(payload.Data.Status),
	}, nil
}

// MapSettlementStatus maps the succeeded/failed settlement vocabulary shared
// by several gateways onto the canonical status
func MapSettlementStatus(status string) models.TransactionStatus {
	switch status {
	case "succeeded", "successful", "success":
		return models.TransactionStatusPaid
	case "failed", "cancelled", "reversed", "chargeback", "disputed":
		return models.TransactionStatusCanceled
	default:
		return models.TransactionStatusProgress
	}
}
