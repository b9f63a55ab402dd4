package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"catalog-service/internal/config"
	"catalog-service/internal/models"
)

// Client wraps the Redis client with application-specific methods
type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the connection to Redis
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Key prefixes
const (
	ProductKeyPrefix     = "catalog:product:"
	WebhookSeenKeyPrefix = "webhook:seen:"
)

// WebhookDedupTTL is how long a settled webhook delivery stays marked as seen.
// Gateways retry failed deliveries for up to three days.
const WebhookDedupTTL = 72 * time.Hour

// CachedProduct is the cached product detail payload served between syncs
type CachedProduct struct {
	ProductID uint64    `json:"product_id"`
	UUID      string    `json:"uuid"`
	ShopID    uint64    `json:"shop_id"`
	Payload   []byte    `json:"payload"`
	CachedAt  time.Time `json:"cached_at"`
}

// SaveProduct caches a serialized product detail under its public identifier
func (c *Client) SaveProduct(ctx context.Context, uuid string, data *CachedProduct, ttl time.Duration) error {
	if c == nil {
		return nil
	}
	key := ProductKeyPrefix + uuid
	data.CachedAt = time.Now()

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal cached product: %w", err)
	}

	return c.rdb.Set(ctx, key, jsonData, ttl).Err()
}

// GetProduct retrieves a cached product detail. Returns nil when absent.
func (c *Client) GetProduct(ctx context.Context, uuid string) (*CachedProduct, error) {
	if c == nil {
		return nil, nil
	}
	data, err := c.rdb.Get(ctx, ProductKeyPrefix+uuid).Bytes()
	if err == redis.Nil {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached product: %w", err)
	}

	var cached CachedProduct
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached product: %w", err)
	}

	return &cached, nil
}

// InvalidateProduct drops the cached detail for the listed products
func (c *Client) InvalidateProduct(ctx context.Context, uuids ...string) error {
	if c == nil || len(uuids) == 0 {
		return nil
	}
	keys := make([]string, 0, len(uuids))
	for _, uuid := range uuids {
		keys = append(keys, ProductKeyPrefix+uuid)
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// MarkWebhookSeen records a webhook delivery and reports whether it was the
// first one. Keyed by gateway, vendor token and mapped status so a genuine
// status change from the same gateway is not swallowed. A nil client degrades
// to treating every delivery as first.
func (c *Client) MarkWebhookSeen(ctx context.Context, gateway, token string, status models.TransactionStatus) (bool, error) {
	if c == nil {
		return true, nil
	}
	key := fmt.Sprintf("%s%s:%s:%s", WebhookSeenKeyPrefix, gateway, token, status)

	first, err := c.rdb.SetNX(ctx, key, time.Now().Unix(), WebhookDedupTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark webhook seen: %w", err)
	}
	return first, nil
}

// ClearWebhookSeen releases a delivery's dedup key so the gateway's
// redelivery is processed again
func (c *Client) ClearWebhookSeen(ctx context.Context, gateway, token string, status models.TransactionStatus) error {
	if c == nil {
		return nil
	}
	key := fmt.Sprintf("%s%s:%s:%s", WebhookSeenKeyPrefix, gateway, token, status)
	return c.rdb.Del(ctx, key).Err()
}
