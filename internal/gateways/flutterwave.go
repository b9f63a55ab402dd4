package gateways

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const flutterwaveBaseURL = "https://api.flutterwave.com/v3"

// Flutterwave implements the Flutterwave standard payments API
type Flutterwave struct {
	secretKey string
	baseURL   string
	client    *http.Client
}

// NewFlutterwave creates a new Flutterwave provider
func NewFlutterwave(secretKey string) *Flutterwave {
	return &Flutterwave{
		secretKey: secretKey,
		baseURL:   flutterwaveBaseURL,
		client:    newHTTPClient(),
	}
}

// Name returns the gateway identifier
func (f *Flutterwave) Name() string { return "flutterwave" }

type flutterwavePaymentRequest struct {
	TxRef       string              `json:"tx_ref"`
	Amount      float64             `json:"amount"`
	Currency    string              `json:"currency"`
	RedirectURL string              `json:"redirect_url"`
	Customer    flutterwaveCustomer `json:"customer"`
}

type flutterwaveCustomer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type flutterwavePaymentResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Link string `json:"link"`
	} `json:"data"`
}

// CreateCheckout starts a hosted payment session. Flutterwave echoes the
// caller-supplied tx_ref back in webhooks, so the reference doubles as the
// vendor token.
func (f *Flutterwave) CreateCheckout(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error) {
	payload := flutterwavePaymentRequest{
		TxRef:       req.Reference,
		Amount:      req.Amount,
		Currency:    strings.ToUpper(req.Currency),
		RedirectURL: req.ReturnURL,
		Customer: flutterwaveCustomer{
			Name:  req.CustomerName,
			Email: req.CustomerEmail,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode flutterwave request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		f.baseURL+"/payments", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build flutterwave request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+f.secretKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("flutterwave request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read flutterwave response: %w", err)
	}

	var parsed flutterwavePaymentResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode flutterwave response: %w", err)
	}

	if parsed.Status != "success" {
		message := parsed.Message
		if message == "" {
			message = "Flutterwave server error"
		}
		return nil, &APIError{Gateway: f.Name(), Message: message}
	}

	return &CheckoutSession{Token: req.Reference, URL: parsed.Data.Link}, nil
}

type flutterwaveWebhook struct {
	Data struct {
		TxRef  string `json:"tx_ref"`
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"data"`
}

// ParseWebhook extracts tx_ref and the settlement status
func (f *Flutterwave) ParseWebhook(body []byte) (*WebhookEvent, error) {
	var payload flutterwaveWebhook
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode flutterwave webhook: %w", err)
	}

	token := payload.Data.TxRef
	if token == "" {
		token = payload.Data.ID
	}

	return &WebhookEvent{
		Token:        token,
		VendorStatus: payload.Data.Status,
		Status:       MapSettlementStatus(payload.Data.Status),
	}, nil
}
