package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/nats-io/nats.go"
)

// Event types
const (
	EventProductSynced      = "catalog.product.synced"
	EventProductDeleted     = "catalog.product.deleted"
	EventTransactionUpdated = "payment.transaction.updated"
	EventWalletCredited     = "payment.wallet.credited"
)

// ProductSyncedEvent is published after a parent product has been replicated
// into a branch shop
type ProductSyncedEvent struct {
	EventType   string    `json:"event_type"`
	ParentID    uint64    `json:"parent_id"`
	ChildID     uint64    `json:"child_id"`
	ChildUUID   string    `json:"child_uuid"`
	ShopID      uint64    `json:"shop_id"`
	Timestamp   time.Time `json:"timestamp"`
}

// ProductDeletedEvent is published when a parent product and its branch
// copies are soft deleted
type ProductDeletedEvent struct {
	EventType string    `json:"event_type"`
	ProductID uint64    `json:"product_id"`
	ShopID    uint64    `json:"shop_id"`
	Timestamp time.Time `json:"timestamp"`
}

// TransactionUpdatedEvent is published when a webhook settles a transaction
type TransactionUpdatedEvent struct {
	EventType     string    `json:"event_type"`
	TransactionID uint64    `json:"transaction_id"`
	Gateway       string    `json:"gateway"`
	Status        string    `json:"status"`
	PaymentTrxID  string    `json:"payment_trx_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// WalletCreditedEvent is published when a paid wallet top-up is credited
type WalletCreditedEvent struct {
	EventType string    `json:"event_type"`
	WalletID  uint64    `json:"wallet_id"`
	UserID    uint64    `json:"user_id"`
	Amount    float64   `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

// Client wraps the NATS connection
type Client struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// Config holds NATS connection configuration
type Config struct {
	URL string
}

// DefaultConfig returns the default NATS configuration
func DefaultConfig() *Config {
	url := os.Getenv("NATS_URL")
	if url == "" {
		url = nats.DefaultURL
	}
	return &Config{
		URL: url,
	}
}

// NewClient creates a new NATS client
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	log.Printf("[NATS] Connecting to %s", cfg.URL)

	// Connect with retry options - production-ready settings
	opts := []nats.Option{
		nats.Name("catalog-service"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.ReconnectBufSize(8 * 1024 * 1024),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Printf("[NATS] Disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[NATS] Reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Printf("[NATS] Error: %v", err)
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Printf("[NATS] Connection closed")
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	// Create JetStream context for persistent messaging
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	// Ensure the catalog and payment streams exist.
	// LimitsPolicy so multiple downstream consumers can read the same events.
	streams := []*nats.StreamConfig{
		{
			Name:        "CATALOG_EVENTS",
			Description: "Stream for product replication events",
			Subjects:    []string{"catalog.>"},
			Storage:     nats.FileStorage,
			Retention:   nats.LimitsPolicy,
			MaxAge:      24 * time.Hour * 7,
			MaxMsgs:     100000,
			Discard:     nats.DiscardOld,
		},
		{
			Name:        "PAYMENT_EVENTS",
			Description: "Stream for payment lifecycle events",
			Subjects:    []string{"payment.>"},
			Storage:     nats.FileStorage,
			Retention:   nats.LimitsPolicy,
			MaxAge:      24 * time.Hour * 7,
			MaxMsgs:     100000,
			Discard:     nats.DiscardOld,
		},
	}
	for _, sc := range streams {
		if _, err := js.AddStream(sc); err != nil && err != nats.ErrStreamNameAlreadyInUse {
			log.Printf("[NATS] Warning: Could not create stream %s (may already exist): %v", sc.Name, err)
		}
	}

	log.Printf("[NATS] Connected successfully to %s", cfg.URL)

	return &Client{
		conn: conn,
		js:   js,
	}, nil
}

// publish marshals the event and publishes it with retry and exponential backoff
func (c *Client) publish(ctx context.Context, subject string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	var ack *nats.PubAck
	maxRetries := 3
	for attempt := 1; attempt <= maxRetries; attempt++ {
		ack, err = c.js.Publish(subject, data)
		if err == nil {
			break
		}
		log.Printf("[NATS] Attempt %d/%d: Failed to publish %s event: %v", attempt, maxRetries, subject, err)
		if attempt < maxRetries {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while retrying publish: %w", ctx.Err())
			case <-time.After(backoff):
				continue
			}
		}
	}
	if err != nil {
		return fmt.Errorf("failed to publish event after %d attempts: %w", maxRetries, err)
	}

	log.Printf("[NATS] Published %s event (seq: %d)", subject, ack.Sequence)
	return nil
}

// PublishProductSynced publishes a product synced event
func (c *Client) PublishProductSynced(ctx context.Context, event *ProductSyncedEvent) error {
	if c == nil || c.js == nil {
		log.Printf("[NATS] Client not initialized, skipping publish")
		return nil
	}

	event.EventType = EventProductSynced
	event.Timestamp = time.Now().UTC()
	return c.publish(ctx, EventProductSynced, event)
}

// PublishProductDeleted publishes a product deleted event
func (c *Client) PublishProductDeleted(ctx context.Context, event *ProductDeletedEvent) error {
	if c == nil || c.js == nil {
		log.Printf("[NATS] Client not initialized, skipping publish")
		return nil
	}

	event.EventType = EventProductDeleted
	event.Timestamp = time.Now().UTC()
	return c.publish(ctx, EventProductDeleted, event)
}

// PublishTransactionUpdated publishes a transaction updated event
func (c *Client) PublishTransactionUpdated(ctx context.Context, event *TransactionUpdatedEvent) error {
	if c == nil || c.js == nil {
		log.Printf("[NATS] Client not initialized, skipping publish")
		return nil
	}

	event.EventType = EventTransactionUpdated
	event.Timestamp = time.Now().UTC()
	return c.publish(ctx, EventTransactionUpdated, event)
}

// PublishWalletCredited publishes a wallet credited event
func (c *Client) PublishWalletCredited(ctx context.Context, event *WalletCreditedEvent) error {
	if c == nil || c.js == nil {
		log.Printf("[NATS] Client not initialized, skipping publish")
		return nil
	}

	event.EventType = EventWalletCredited
	event.Timestamp = time.Now().UTC()
	return c.publish(ctx, EventWalletCredited, event)
}

// Close closes the NATS connection
func (c *Client) Close() {
	if c != nil && c.conn != nil {
		c.conn.Close()
		log.Printf("[NATS] Connection closed")
	}
}

// IsConnected returns true if the client is connected
func (c *Client) IsConnected() bool {
	return c != nil && c.conn != nil && c.conn.IsConnected()
}
