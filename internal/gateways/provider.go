package gateways

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"catalog-service/internal/models"
)

// ErrUnknownGateway is returned when a request names a gateway that is not
// registered
var ErrUnknownGateway = errors.New("unknown payment gateway")

// CheckoutRequest carries everything a gateway needs to open a checkout
// session
type CheckoutRequest struct {
	Reference     string  // merchant-side reference
	Amount        float64 // already rounded, in major units
	Currency      string
	CustomerName  string
	CustomerEmail string
	ReturnURL     string // where the gateway sends the customer afterwards
}

// CheckoutSession is the opaque token + redirect URL pair a gateway returns
// on initiation
type CheckoutSession struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

// WebhookEvent is a gateway callback reduced to the vendor token and the
// canonical status
type WebhookEvent struct {
	Token        string
	VendorStatus string
	Status       models.TransactionStatus
}

// Provider is a payment gateway: it opens checkout sessions and parses its
// own webhook payloads. Status mapping is a pure function of the payload.
type Provider interface {
	Name() string
	CreateCheckout(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error)
	ParseWebhook(body []byte) (*WebhookEvent, error)
}

// Registry holds the configured gateway providers
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates a registry from the given providers
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Get returns the provider registered under name
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGateway, name)
	}
	return p, nil
}

// Names lists the registered gateway names
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

// newHTTPClient is the shared client for all gateway calls
func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// APIError is a vendor-reported failure during checkout initiation. The raw
// vendor message is preserved for the caller's error response.
type APIError struct {
	Gateway string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Gateway, e.Message)
}
