package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Capeo/SupplAI/internal/metrics"
	"github.com/Capeo/SupplAI/internal/utils"
)

const (
	cachedApproved    = "1"
	cachedNotApproved = "0"
)

// CachingLookup decorates a StatusLookup with Redis caching keyed by the
// normalized company name. Only successful answers are cached.
type CachingLookup struct {
	inner     StatusLookup
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
	logger    *utils.Logger
}

// NewCachingLookup wraps inner. If ttl is 0 it defaults to 6 hours; an empty
// namespace becomes "staffing-approval". A nil client disables caching.
func NewCachingLookup(rdb *redis.Client, ttl time.Duration, inner StatusLookup, namespace string, logger *utils.Logger) *CachingLookup {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	if namespace == "" {
		namespace = "staffing-approval"
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &CachingLookup{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
		logger:    logger,
	}
}

func (c *CachingLookup) Lookup(ctx context.Context, companyName string) (bool, error) {
	if c.rdb == nil {
		return c.inner.Lookup(ctx, companyName)
	}

	key := c.cacheKey(companyName)

	val, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil && (val == cachedApproved || val == cachedNotApproved):
		metrics.StatusLookupCache.WithLabelValues("hit").Inc()
		return val == cachedApproved, nil
	case err == nil:
		// Unknown payload, drop it and ask the register again.
		_ = c.rdb.Del(ctx, key).Err()
		metrics.StatusLookupCache.WithLabelValues("miss").Inc()
	case errors.Is(err, redis.Nil):
		metrics.StatusLookupCache.WithLabelValues("miss").Inc()
	default:
		metrics.StatusLookupCache.WithLabelValues("error").Inc()
		c.logger.Warn("status cache read failed", zap.String("key", key), zap.Error(err))
	}

	approved, err := c.inner.Lookup(ctx, companyName)
	if err != nil {
		return false, err
	}

	stored := cachedNotApproved
	if approved {
		stored = cachedApproved
	}
	if err := c.rdb.Set(ctx, key, stored, c.ttl).Err(); err != nil {
		c.logger.Warn("status cache write failed", zap.String("key", key), zap.Error(err))
	}
	return approved, nil
}

// Invalidate removes every cached answer, used after a register import.
func (c *CachingLookup) Invalidate(ctx context.Context) error {
	if c.rdb == nil {
		return nil
	}
	var cursor uint64
	for {
		keys, cur, err := c.rdb.Scan(ctx, cursor, c.namespace+":*", 200).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = cur
		if cursor == 0 {
			return nil
		}
	}
}

func (c *CachingLookup) cacheKey(companyName string) string {
	// Redis keys are binary safe; the normalized name is used verbatim so
	// distinct names never share an entry.
	return fmt.Sprintf("%s:%s", c.namespace, NormalizeCompanyName(companyName))
}
