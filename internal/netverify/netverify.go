package netverify

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "qrattend:issuer-addr:"

// Checker records the issuer's network address per token and later reports
// whether a redeemer appears to be on the same network. The hint is
// advisory only and never gates a redemption; when redis is unavailable the
// answer is simply unknown.
type Checker struct {
	client *redis.Client
}

// New creates a checker over the shared redis client. A nil client yields a
// checker that always answers unknown.
func New(client *redis.Client) *Checker {
	return &Checker{client: client}
}

// RememberIssuer caches the issuer's remote address for the token's lifetime.
func (c *Checker) RememberIssuer(ctx context.Context, code, addr string, ttl time.Duration) {
	if c == nil || c.client == nil || addr == "" {
		return
	}
	if err := c.client.Set(ctx, keyPrefix+code, addr, ttl).Err(); err != nil {
		log.Printf("netverify: caching issuer address for token failed: %v", err)
	}
}

// Match compares the redeemer's address with the cached issuer address.
// Returns nil when no verdict is possible.
func (c *Checker) Match(ctx context.Context, code, addr string) *bool {
	if c == nil || c.client == nil || addr == "" {
		return nil
	}
	cached, err := c.client.Get(ctx, keyPrefix+code).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("netverify: lookup failed: %v", err)
		}
		return nil
	}
	match := cached == addr
	return &match
}
