package cache

// NewStandardCache creates a new cache with the given configuration,
// backed by theine's LRU+TTL implementation.
func NewStandardCache[K KeyString, V any](config *Config) (Cache[K, V], error) {
	return NewTheineCache[K, V](config)
}

// NewStandardCacheWithMetrics is NewStandardCache with a name stored on the
// cache for identification; GetMetrics behaves the same either way.
func NewStandardCacheWithMetrics[K KeyString, V any](name string, config *Config) (Cache[K, V], error) {
	return NewTheineCacheWithMetrics[K, V](name, config)
}
