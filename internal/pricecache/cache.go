// Package pricecache keeps short-lived copies of price oracle state in Redis so dashboard
// reads do not hit the node on every request.
package pricecache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"ventry-backend/internal/ledger"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const keyPrefix = "price:state:"

// DefaultTTL is used when Cache.TTL is zero.
const DefaultTTL = 15 * time.Second

// StateReader is the part of ledger.Client the cache reads through to.
type StateReader interface {
	ReadState(ctx context.Context, contractID uint64) (ledger.PriceState, error)
}

// Cache is a read-through cache of oracle state. A nil Rdb disables caching.
type Cache struct {
	Rdb    *redis.Client
	Ledger StateReader
	TTL    time.Duration
}

func key(contractID uint64) string {
	return keyPrefix + strconv.FormatUint(contractID, 10)
}

// State returns the oracle state, from Redis when fresh, otherwise from the ledger.
// Redis failures fall through to the ledger.
func (c *Cache) State(ctx context.Context, contractID uint64) (ledger.PriceState, error) {
	if c.Rdb != nil {
		b, err := c.Rdb.Get(ctx, key(contractID)).Bytes()
		switch {
		case err == nil:
			var st ledger.PriceState
			if jsonErr := json.Unmarshal(b, &st); jsonErr == nil {
				return st, nil
			}
		case !errors.Is(err, redis.Nil):
			log.Warn().Err(err).Uint64("app_id", contractID).Msg("price cache read failed")
		}
	}

	st, err := c.Ledger.ReadState(ctx, contractID)
	if err != nil {
		return ledger.PriceState{}, err
	}
	if c.Rdb != nil {
		ttl := c.TTL
		if ttl <= 0 {
			ttl = DefaultTTL
		}
		b, _ := json.Marshal(st)
		if err := c.Rdb.Set(ctx, key(contractID), b, ttl).Err(); err != nil {
			log.Warn().Err(err).Uint64("app_id", contractID).Msg("price cache write failed")
		}
	}
	return st, nil
}

// Invalidate drops the cached state of a contract after a price write.
func (c *Cache) Invalidate(ctx context.Context, contractID uint64) {
	if c == nil || c.Rdb == nil {
		return
	}
	if err := c.Rdb.Del(ctx, key(contractID)).Err(); err != nil {
		log.Warn().Err(err).Uint64("app_id", contractID).Msg("price cache invalidate failed")
	}
}
