// Package querycache keeps the results of named queries and marks them stale
// when a mutation invalidates their topic.
package querycache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/plushub/pkg/logger"
	"github.com/okian/plushub/pkg/metrics"
)

// Topic names a family of cached queries. Topics can only be created with
// NewTopic, so invalidation targets are checked at compile time.
type Topic struct {
	name string
}

// NewTopic declares a topic. It panics on an empty name.
func NewTopic(name string) Topic {
	if name == "" {
		panic("querycache: empty topic name")
	}
	return Topic{name: name}
}

func (t Topic) String() string { return t.name }

// Invalidator marks topics stale.
type Invalidator interface {
	// Invalidate marks every entry under each distinct topic stale and returns
	// the number of distinct topics invalidated.
	Invalidate(ctx context.Context, topics ...Topic) int
}

// Query describes how to fetch one cached value.
type Query[T any] struct {
	Topic Topic
	// Key distinguishes queries under the same topic, e.g. a user id.
	Key   string
	Fetch func(ctx context.Context) (T, error)
}

// NewQuery creates a Query.
func NewQuery[T any](topic Topic, key string, fetch func(ctx context.Context) (T, error)) Query[T] {
	return Query[T]{Topic: topic, Key: key, Fetch: fetch}
}

type entryKey struct {
	topic Topic
	key   string
}

// node is one cached result in a singly linked list, newest first.
type node struct {
	key       entryKey
	value     any
	stale     bool
	fetchedAt time.Time
	next      *node
}

func (n *node) reset() {
	*n = node{}
}

// Cache stores query results. It is safe for concurrent use.
type Cache struct {
	mu          sync.Mutex
	entries     map[entryKey]*node
	head        *node
	maxEntries  int
	size        atomic.Int64
	nodePool    sync.Pool
	subscribers map[Topic]map[uint64]func(Topic)
	// generations counts invalidations per topic. A fetch that started
	// under an older generation is stored stale.
	generations map[Topic]uint64
	nextSubID   uint64
	now         func() time.Time
}

// New creates a Cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		maxEntries:  256,
		entries:     make(map[entryKey]*node),
		subscribers: make(map[Topic]map[uint64]func(Topic)),
		generations: make(map[Topic]uint64),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.nodePool = sync.Pool{
		New: func() interface{} {
			return &node{}
		},
	}
	return c
}

// Read returns the cached value of q when it is fresh and fetches it
// otherwise. A failed fetch leaves any previous entry untouched.
func Read[T any](ctx context.Context, c *Cache, q Query[T]) (T, error) {
	var zero T
	k := entryKey{topic: q.Topic, key: q.Key}

	c.mu.Lock()
	if n, ok := c.entries[k]; ok && !n.stale {
		v, ok := n.value.(T)
		c.mu.Unlock()
		if !ok {
			return zero, fmt.Errorf("%w: %s/%s", ErrTypeMismatch, q.Topic, q.Key)
		}
		metrics.RecordCacheRead(q.Topic.name, "hit")
		return v, nil
	}
	gen := c.generations[q.Topic]
	c.mu.Unlock()

	metrics.RecordCacheRead(q.Topic.name, "miss")
	v, err := q.Fetch(ctx)
	if err != nil {
		return zero, fmt.Errorf("fetch %s: %w", q.Topic, err)
	}

	c.store(k, v, gen)
	return v, nil
}

// store saves v fetched under generation gen of the topic. The caller still
// gets v, but an invalidation that landed mid-fetch keeps the entry stale.
func (c *Cache) store(k entryKey, v any, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stale := c.generations[k.topic] != gen

	if n, ok := c.entries[k]; ok {
		n.value = v
		n.stale = stale
		n.fetchedAt = c.now()
		return
	}

	if c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}

	n := c.nodePool.Get().(*node)
	n.key = k
	n.value = v
	n.stale = stale
	n.fetchedAt = c.now()
	n.next = c.head
	c.head = n
	c.entries[k] = n
	c.size.Add(1)
	metrics.UpdateCacheEntries(len(c.entries))
}

// evictOldest removes the tail of the list. Must be called with c.mu held.
func (c *Cache) evictOldest() {
	if c.head == nil {
		return
	}

	var prev *node
	current := c.head
	for current.next != nil {
		prev = current
		current = current.next
	}

	if prev == nil {
		c.head = nil
	} else {
		prev.next = nil
	}
	delete(c.entries, current.key)
	current.reset()
	c.nodePool.Put(current)
	c.size.Add(-1)
	metrics.RecordCacheEviction()
}

// Invalidate implements Invalidator. Subscribers of each distinct topic are
// called once, after the cache lock is released.
func (c *Cache) Invalidate(ctx context.Context, topics ...Topic) int {
	seen := make(map[Topic]struct{}, len(topics))
	distinct := make([]Topic, 0, len(topics))
	for _, t := range topics {
		if t.name == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		distinct = append(distinct, t)
	}

	type notification struct {
		topic Topic
		fns   []func(Topic)
	}
	pending := make([]notification, 0, len(distinct))

	c.mu.Lock()
	for _, t := range distinct {
		c.generations[t]++
		for n := c.head; n != nil; n = n.next {
			if n.key.topic == t {
				n.stale = true
			}
		}
		fns := make([]func(Topic), 0, len(c.subscribers[t]))
		for _, fn := range c.subscribers[t] {
			fns = append(fns, fn)
		}
		pending = append(pending, notification{topic: t, fns: fns})
	}
	c.mu.Unlock()

	log := logger.Get().Named("querycache")
	for _, p := range pending {
		metrics.RecordInvalidation(p.topic.name)
		log.Debug(ctx, "topic invalidated", logger.String("topic", p.topic.name), logger.Int("subscribers", len(p.fns)))
		for _, fn := range p.fns {
			fn(p.topic)
		}
	}
	return len(distinct)
}

// Subscribe registers fn to be called whenever topic is invalidated. The
// returned function removes the subscription.
func (c *Cache) Subscribe(topic Topic, fn func(Topic)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextSubID++
	id := c.nextSubID
	if c.subscribers[topic] == nil {
		c.subscribers[topic] = make(map[uint64]func(Topic))
	}
	c.subscribers[topic][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.subscribers[topic], id)
		})
	}
}

// IsStale reports whether the entry for (topic, key) is missing or stale.
func (c *Cache) IsStale(topic Topic, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.entries[entryKey{topic: topic, key: key}]
	return !ok || n.stale
}

// Size returns the number of cached entries.
func (c *Cache) Size() int64 {
	return c.size.Load()
}
