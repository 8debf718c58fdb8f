package blacklist

import (
	"context"
	"sync"
	"time"

	"github.com/itchan-dev/accounts/shared/domain"
	"github.com/itchan-dev/accounts/shared/logger"
)

// BlacklistCacheStorage is the read side of the blacklist store needed to
// populate the cache. Writes happen through the backend storage.
type BlacklistCacheStorage interface {
	ActiveBlacklistedTokens(ctx context.Context, now time.Time) ([]domain.BlacklistEntry, error)
}

// Cache keeps the blacklisted tokens that have not expired yet in memory, so
// that request authentication does not hit the database.
type Cache struct {
	storage        BlacklistCacheStorage
	cache          map[string]time.Time // token -> expiry
	mu             sync.RWMutex
	lastUpdateTime time.Time
	now            func() time.Time
}

func NewCache(storage BlacklistCacheStorage) *Cache {
	return &Cache{
		storage: storage,
		cache:   make(map[string]time.Time),
		now:     time.Now,
	}
}

// Update reloads the active entries from storage and replaces the cache.
func (bc *Cache) Update(ctx context.Context) error {
	now := bc.now()
	entries, err := bc.storage.ActiveBlacklistedTokens(ctx, now)
	if err != nil {
		return err
	}

	newCache := make(map[string]time.Time, len(entries))
	for _, entry := range entries {
		newCache[entry.Token] = entry.ExpiresAt
	}

	bc.mu.Lock()
	bc.cache = newCache
	bc.lastUpdateTime = now
	bc.mu.Unlock()

	logger.Log.Debug("blacklist cache updated",
		"component", "blacklist_cache",
		"entries", len(newCache))
	return nil
}

// IsBlacklisted reports whether token is in the cache and still unexpired.
func (bc *Cache) IsBlacklisted(token string) bool {
	bc.mu.RLock()
	expiresAt, ok := bc.cache[token]
	bc.mu.RUnlock()
	return ok && bc.now().Before(expiresAt)
}

func (bc *Cache) LastUpdate() time.Time {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.lastUpdateTime
}

// StartBackgroundUpdate refreshes the cache every interval until ctx is done.
func (bc *Cache) StartBackgroundUpdate(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	logger.Log.Info("started blacklist cache background updates",
		"component", "blacklist_cache",
		"interval", interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := bc.Update(ctx); err != nil {
					logger.Log.Error("blacklist cache update failed",
						"component", "blacklist_cache",
						"error", err)
				}
			case <-ctx.Done():
				logger.Log.Info("blacklist cache shutting down gracefully",
					"component", "blacklist_cache")
				return
			}
		}
	}()
}
