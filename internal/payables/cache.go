package payables

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

const cumulativeKeyPrefix = "payables:cumulative"

// storeIfCurrent writes KEYS[1] only while the generation in KEYS[2] still equals
// ARGV[1], so a load that raced an Invalidate never repopulates the old total.
var storeIfCurrent = redis.NewScript(`
local current = redis.call('GET', KEYS[2]) or ''
if current ~= ARGV[1] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], ARGV[2])
end
return 1
`)

// CumulativeCache keeps per-vendor fiscal-year totals in Redis. A nil cache, a nil
// client or an unreachable server falls through to the loader.
type CumulativeCache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewCumulativeCache instantiates the cache helper.
func NewCumulativeCache(client *redis.Client, ttl time.Duration) *CumulativeCache {
	return &CumulativeCache{client: client, ttl: ttl}
}

func cumulativeKey(vendorID int64, fiscalYear string) string {
	return fmt.Sprintf("%s:%s:%s", cumulativeKeyPrefix, fiscalYear, strconv.FormatInt(vendorID, 10))
}

// generationKey counts invalidations of a cumulative key.
func generationKey(vendorID int64, fiscalYear string) string {
	return fmt.Sprintf("%s:gen:%s:%s", cumulativeKeyPrefix, fiscalYear, strconv.FormatInt(vendorID, 10))
}

// Fetch returns the cached total or loads it once per key across concurrent callers.
func (c *CumulativeCache) Fetch(ctx context.Context, vendorID int64, fiscalYear string, loader func(context.Context) (decimal.Decimal, error)) (decimal.Decimal, error) {
	if loader == nil {
		return decimal.Zero, errors.New("cache: loader required")
	}
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	key := cumulativeKey(vendorID, fiscalYear)
	raw, err := c.client.Get(ctx, key).Result()
	if err == nil {
		if cached, perr := decimal.NewFromString(raw); perr == nil {
			return cached, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		return loader(ctx)
	}

	gen, err := c.generation(ctx, vendorID, fiscalYear)
	if err != nil {
		return loader(ctx)
	}
	// Callers arriving after an invalidation start their own load.
	ch := c.group.DoChan(key+"@"+gen, func() (interface{}, error) {
		total, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		_ = c.storeIfCurrent(ctx, vendorID, fiscalYear, gen, total)
		return total, nil
	})
	select {
	case <-ctx.Done():
		return decimal.Zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return decimal.Zero, res.Err
		}
		return res.Val.(decimal.Decimal), nil
	}
}

// Refresh reloads the total and caches it unless an invalidation landed while it
// was loading. Redis errors are returned.
func (c *CumulativeCache) Refresh(ctx context.Context, vendorID int64, fiscalYear string, loader func(context.Context) (decimal.Decimal, error)) (decimal.Decimal, error) {
	if loader == nil {
		return decimal.Zero, errors.New("cache: loader required")
	}
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	gen, err := c.generation(ctx, vendorID, fiscalYear)
	if err != nil {
		return decimal.Zero, err
	}
	total, err := loader(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	if err := c.storeIfCurrent(ctx, vendorID, fiscalYear, gen, total); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// Invalidate drops the cached total and bumps its generation so loads already in
// flight do not write back.
func (c *CumulativeCache) Invalidate(ctx context.Context, vendorID int64, fiscalYear string) error {
	if c == nil || c.client == nil {
		return nil
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey(vendorID, fiscalYear))
		pipe.Del(ctx, cumulativeKey(vendorID, fiscalYear))
		return nil
	})
	return err
}

func (c *CumulativeCache) generation(ctx context.Context, vendorID int64, fiscalYear string) (string, error) {
	gen, err := c.client.Get(ctx, generationKey(vendorID, fiscalYear)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return gen, err
}

func (c *CumulativeCache) storeIfCurrent(ctx context.Context, vendorID int64, fiscalYear, gen string, total decimal.Decimal) error {
	keys := []string{cumulativeKey(vendorID, fiscalYear), generationKey(vendorID, fiscalYear)}
	return storeIfCurrent.Run(ctx, c.client, keys, gen, total.String(), c.ttl.Milliseconds()).Err()
}
