// Package authcache implements the AuthorizationCache collaborator: a
// keyed cache of the central system's last-known authorization verdict per
// id-tag, updated whenever a StartTransaction/StopTransaction response
// carries an idTagInfo, except a StartTransaction verdict of ConcurrentTx.
package authcache

import (
	"fmt"

	"ocpp-chargepoint/internal/store"
	"ocpp-chargepoint/internal/types"
)

// Cache is a thin, synchronization-free wrapper over store.Store's
// authorization-cache methods: the store is itself the source of truth and
// already serializes access at the backend (SQLite/Redis) layer, so no
// additional locking is needed here.
type Cache struct {
	store store.Store
}

// New wraps a Store as an authorization Cache.
func New(s store.Store) *Cache {
	return &Cache{store: s}
}

// Update records the central system's latest verdict for idTag.
func (c *Cache) Update(idTag string, info types.IdTagInfo) error {
	if idTag == "" {
		return fmt.Errorf("id tag cannot be empty")
	}

	entry := &store.AuthCacheEntry{
		IdTag:       idTag,
		Status:      string(info.Status),
		ExpiryDate:  info.ExpiryDate,
		ParentIdTag: info.ParentIdTag,
	}
	if err := c.store.UpsertAuthorizationCache(entry); err != nil {
		return fmt.Errorf("failed to update authorization cache for %s: %w", idTag, err)
	}
	return nil
}

// Get returns the cached verdict for idTag, or nil if there is none.
func (c *Cache) Get(idTag string) (*types.IdTagInfo, error) {
	entry, err := c.store.GetAuthorizationCache(idTag)
	if err != nil {
		return nil, fmt.Errorf("failed to read authorization cache for %s: %w", idTag, err)
	}
	if entry == nil {
		return nil, nil
	}

	return &types.IdTagInfo{
		Status:      types.AuthorizationStatus(entry.Status),
		ExpiryDate:  entry.ExpiryDate,
		ParentIdTag: entry.ParentIdTag,
	}, nil
}

// Delete removes idTag from the cache, e.g. when the central system revokes
// it outright.
func (c *Cache) Delete(idTag string) error {
	if err := c.store.DeleteAuthorizationCache(idTag); err != nil {
		return fmt.Errorf("failed to delete authorization cache entry for %s: %w", idTag, err)
	}
	return nil
}
