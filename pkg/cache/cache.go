// Package cache provides the in-process L1 tier used by the pricing API in
// front of the distributed cache. Entries are small decision payloads keyed
// by SKU, so cost accounting is per-item rather than per-byte.
package cache

import "time"

// Cache is the interface for the in-process cache tier.
type Cache interface {
	// Get retrieves a value. Returns (value, true) on a hit.
	Get(key string) (interface{}, bool)

	// Set stores a value with a TTL. Returns false if the entry was
	// rejected by the admission policy.
	Set(key string, value interface{}, ttl time.Duration) bool

	// Delete removes a value.
	Delete(key string)

	// Clear removes all values.
	Clear()

	// Close releases resources.
	Close()
}
