package redis

const (
	keyPrefix   = "linkdeck"
	cachePrefix = keyPrefix + ":cache:"
)

// CacheKey returns the Redis key holding the shared copy of a cache entry
func CacheKey(key string) string {
	return cachePrefix + key
}
