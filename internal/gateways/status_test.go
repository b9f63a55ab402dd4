package gateways

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog-service/internal/models"
)

func TestMapPaystackStatus(t *testing.T) {
	tests := []struct {
		event string
		want  models.TransactionStatus
	}{
		{"charge.success", models.TransactionStatusPaid},
		{"charge.failed", models.TransactionStatusProgress},
		{"transfer.success", models.TransactionStatusProgress},
		{"", models.TransactionStatusProgress},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MapPaystackStatus(tt.event), "event %q", tt.event)
	}
}

func TestMapRazorpayStatus(t *testing.T) {
	tests := []struct {
		status string
		want   models.TransactionStatus
	}{
		{"paid", models.TransactionStatusPaid},
		{"cancelled", models.TransactionStatusCanceled},
		{"expired", models.TransactionStatusCanceled},
		{"created", models.TransactionStatusProgress},
		{"partially_paid", models.TransactionStatusProgress},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MapRazorpayStatus(tt.status), "status %q", tt.status)
	}
}

func TestMapStripeStatus(t *testing.T) {
	tests := []struct {
		eventType string
		want      models.TransactionStatus
	}{
		{"checkout.session.completed", models.TransactionStatusPaid},
		{"checkout.session.expired", models.TransactionStatusCanceled},
		{"checkout.session.async_payment_failed", models.TransactionStatusProgress},
		{"payment_intent.succeeded", models.TransactionStatusProgress},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MapStripeStatus(tt.eventType), "event type %q", tt.eventType)
	}
}

func TestMapSettlementStatus(t *testing.T) {
	paid := []string{"succeeded", "successful", "success"}
	for _, status := range paid {
		assert.Equal(t, models.TransactionStatusPaid, MapSettlementStatus(status), "status %q", status)
	}

	canceled := []string{"failed", "cancelled", "reversed", "chargeback", "disputed"}
	for _, status := range canceled {
		assert.Equal(t, models.TransactionStatusCanceled, MapSettlementStatus(status), "status %q", status)
	}

	pending := []string{"pending", "in_progress", "authorized", ""}
	for _, status := range pending {
		assert.Equal(t, models.TransactionStatusProgress, MapSettlementStatus(status), "status %q", status)
	}
}

func TestPaystackParseWebhook(t *testing.T) {
	p := NewPaystack("sk_test")

	body := []byte(`{"event":"charge.success","data":{"reference":"ref-42-1700000000"}}`)
	event, err := p.ParseWebhook(body)
	require.NoError(t, err)

	assert.Equal(t, "ref-42-1700000000", event.Token)
	assert.Equal(t, "charge.success", event.VendorStatus)
	assert.Equal(t, models.TransactionStatusPaid, event.Status)
}

func TestRazorpayParseWebhook(t *testing.T) {
	r := NewRazorpay("key", "secret")

	body := []byte(`{"payload":{"payment_link":{"entity":{"id":"plink_123","status":"expired"}}}}`)
	event, err := r.ParseWebhook(body)
	require.NoError(t, err)

	assert.Equal(t, "plink_123", event.Token)
	assert.Equal(t, "expired", event.VendorStatus)
	assert.Equal(t, models.TransactionStatusCanceled, event.Status)
}

func TestStripeParseWebhook(t *testing.T) {
	s := NewStripe("sk_test")

	body := []byte(`{"type":"checkout.session.completed","data":{"object":{"id":"cs_test_abc"}}}`)
	event, err := s.ParseWebhook(body)
	require.NoError(t, err)

	assert.Equal(t, "cs_test_abc", event.Token)
	assert.Equal(t, models.TransactionStatusPaid, event.Status)
}

func TestFlutterwaveParseWebhook(t *testing.T) {
	f := NewFlutterwave("sk_test")

	body := []byte(`{"data":{"tx_ref":"42-1700000000","id":"9912","status":"successful"}}`)
	event, err := f.ParseWebhook(body)
	require.NoError(t, err)

	assert.Equal(t, "42-1700000000", event.Token)
	assert.Equal(t, models.TransactionStatusPaid, event.Status)
}

func TestFlutterwaveParseWebhookFallsBackToID(t *testing.T) {
	f := NewFlutterwave("sk_test")

	body := []byte(`{"data":{"id":"9912","status":"failed"}}`)
	event, err := f.ParseWebhook(body)
	require.NoError(t, err)

	assert.Equal(t, "9912", event.Token)
	assert.Equal(t, models.TransactionStatusCanceled, event.Status)
}

func TestMercadoPagoParseWebhook(t *testing.T) {
	m := NewMercadoPago("token")

	body := []byte(`{"data":{"id":"pref-777","status":"chargeback"}}`)
	event, err := m.ParseWebhook(body)
	require.NoError(t, err)

	assert.Equal(t, "pref-777", event.Token)
	assert.Equal(t, models.TransactionStatusCanceled, event.Status)
}

func TestParseWebhookRejectsMalformedBody(t *testing.T) {
	providers := []Provider{
		NewPaystack("sk"),
		NewRazorpay("key", "secret"),
		NewStripe("sk"),
		NewFlutterwave("sk"),
		NewMercadoPago("token"),
	}

	for _, p := range providers {
		_, err := p.ParseWebhook([]byte(`not json`))
		assert.Error(t, err, "provider %s", p.Name())
	}
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry(NewPaystack("sk"), NewStripe("sk"))

	p, err := registry.Get("paystack")
	require.NoError(t, err)
	assert.Equal(t, "paystack", p.Name())

	_, err = registry.Get("cash")
	assert.ErrorIs(t, err, ErrUnknownGateway)

	assert.ElementsMatch(t, []string{"paystack", "stripe"}, registry.Names())
}
