package querycache

// Option applies a configuration option to the Cache.
type Option func(*Cache)

// WithMaxEntries sets how many query results are kept.
// If n > 0: bounded mode, the oldest entry is evicted first.
// If n <= 0: unbounded mode.
func WithMaxEntries(n int) Option {
	return func(c *Cache) {
		c.maxEntries = n
	}
}
