// Package cache provides TTL caching for outbound search results, so that
// the corroboration/refutation query pairs of repeated or multi-claim turns
// don't burn API quota on identical queries.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache is a byte-oriented TTL cache
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key derives a stable cache key from a namespace and a raw value (e.g. a
// search query). Hashing keeps keys bounded regardless of query length.
func Key(namespace, raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return namespace + "-" + hex.EncodeToString(sum[:16])
}
