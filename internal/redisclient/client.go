package redisclient

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"backoffice-api/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

//go:embed scripts/release_lock.lua
var releaseLockScript string

const (
	productKeyPrefix = "product:"
	productListKey   = "products:all"
	lockKeyPrefix    = "lock:"
)

type Client struct {
	rdb           *redis.Client
	releaseScript *redis.Script
	productTTL    time.Duration
}

// NewClient creates a new Redis client and checks the connection
func NewClient(addr, password string, db int, productTTL time.Duration) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewClientFromRedis(rdb, productTTL), nil
}

// NewClientFromRedis wraps an existing redis client
func NewClientFromRedis(rdb *redis.Client, productTTL time.Duration) *Client {
	return &Client{
		rdb:           rdb,
		releaseScript: redis.NewScript(releaseLockScript),
		productTTL:    productTTL,
	}
}

// Ping checks the Redis connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// GetProduct returns a cached product. The bool is false on a cache miss.
func (c *Client) GetProduct(ctx context.Context, id int64) (*models.Product, bool, error) {
	data, err := c.rdb.Get(ctx, fmt.Sprintf("%s%d", productKeyPrefix, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var product models.Product
	if err := json.Unmarshal(data, &product); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached product: %w", err)
	}
	return &product, true, nil
}

// SetProduct caches a product
func (c *Client) SetProduct(ctx context.Context, product *models.Product) error {
	data, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("failed to encode product: %w", err)
	}
	return c.rdb.Set(ctx, fmt.Sprintf("%s%d", productKeyPrefix, product.ID), data, c.productTTL).Err()
}

// GetProductList returns the cached catalog listing. The bool is false on a cache miss.
func (c *Client) GetProductList(ctx context.Context) ([]models.Product, bool, error) {
	data, err := c.rdb.Get(ctx, productListKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var products []models.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached products: %w", err)
	}
	return products, true, nil
}

// SetProductList caches the catalog listing
func (c *Client) SetProductList(ctx context.Context, products []models.Product) error {
	data, err := json.Marshal(products)
	if err != nil {
		return fmt.Errorf("failed to encode products: %w", err)
	}
	return c.rdb.Set(ctx, productListKey, data, c.productTTL).Err()
}

// InvalidateProducts drops the cached entries of the given products and the catalog listing
func (c *Client) InvalidateProducts(ctx context.Context, ids ...int64) error {
	keys := make([]string, 0, len(ids)+1)
	keys = append(keys, productListKey)
	for _, id := range ids {
		keys = append(keys, fmt.Sprintf("%s%d", productKeyPrefix, id))
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// AcquireLock acquires a distributed lock and returns the token needed to release it.
// An empty token means the lock is held by someone else.
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (string, error) {
	token := uuid.New().String()
	ok, err := c.rdb.SetNX(ctx, lockKeyPrefix+lockKey, token, ttl).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

// ReleaseLock releases a lock only if it is still held with token
func (c *Client) ReleaseLock(ctx context.Context, lockKey, token string) error {
	if _, err := c.releaseScript.Run(ctx, c.rdb, []string{lockKeyPrefix + lockKey}, token).Result(); err != nil {
		return fmt.Errorf("release lock script failed: %w", err)
	}
	return nil
}
