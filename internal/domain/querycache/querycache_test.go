package querycache_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/okian/plushub/internal/domain/querycache"
	"github.com/okian/plushub/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

var (
	alpha = querycache.NewTopic("test.alpha")
	beta  = querycache.NewTopic("test.beta")
)

// countingQuery returns a query whose fetch result is the number of fetches.
func countingQuery(topic querycache.Topic, key string) (querycache.Query[int], *int) {
	calls := 0
	return querycache.NewQuery(topic, key, func(context.Context) (int, error) {
		calls++
		return calls, nil
	}), &calls
}

func TestRead(t *testing.T) {
	Convey("Given an empty cache", t, func() {
		ctx := context.Background()
		c := querycache.New()

		Convey("When reading a query twice", func() {
			q, calls := countingQuery(alpha, "")
			v1, err1 := querycache.Read(ctx, c, q)
			v2, err2 := querycache.Read(ctx, c, q)

			Convey("Then the second read is served from the cache", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(v1, ShouldEqual, 1)
				So(v2, ShouldEqual, 1)
				So(*calls, ShouldEqual, 1)
				So(c.Size(), ShouldEqual, int64(1))
				So(c.IsStale(alpha, ""), ShouldBeFalse)
			})
		})

		Convey("When the fetch fails", func() {
			boom := errors.New("boom")
			q := querycache.NewQuery(alpha, "", func(context.Context) (int, error) { return 0, boom })
			_, err := querycache.Read(ctx, c, q)

			Convey("Then the error is wrapped and nothing is cached", func() {
				So(errors.Is(err, boom), ShouldBeTrue)
				So(c.Size(), ShouldEqual, int64(0))
				So(c.IsStale(alpha, ""), ShouldBeTrue)
			})
		})

		Convey("When two queries share a key but differ in type", func() {
			q, _ := countingQuery(alpha, "k")
			_, _ = querycache.Read(ctx, c, q)
			other := querycache.NewQuery(alpha, "k", func(context.Context) (string, error) { return "x", nil })
			_, err := querycache.Read(ctx, c, other)

			Convey("Then a type mismatch is reported", func() {
				So(errors.Is(err, querycache.ErrTypeMismatch), ShouldBeTrue)
			})
		})
	})
}

func TestInvalidate(t *testing.T) {
	Convey("Given a cache with entries under two topics", t, func() {
		ctx := context.Background()
		c := querycache.New()
		qa, callsA := countingQuery(alpha, "")
		qb, callsB := countingQuery(beta, "")
		_, _ = querycache.Read(ctx, c, qa)
		_, _ = querycache.Read(ctx, c, qb)

		notified := map[string]int{}
		var mu sync.Mutex
		record := func(t querycache.Topic) {
			mu.Lock()
			defer mu.Unlock()
			notified[t.String()]++
		}
		c.Subscribe(alpha, record)
		c.Subscribe(beta, record)

		Convey("When one topic is invalidated with duplicates", func() {
			n := c.Invalidate(ctx, alpha, alpha)

			Convey("Then it is invalidated exactly once", func() {
				So(n, ShouldEqual, 1)
				So(notified["test.alpha"], ShouldEqual, 1)
				So(notified["test.beta"], ShouldEqual, 0)
				So(c.IsStale(alpha, ""), ShouldBeTrue)
				So(c.IsStale(beta, ""), ShouldBeFalse)
			})

			Convey("Then the next read refetches only the stale topic", func() {
				va, _ := querycache.Read(ctx, c, qa)
				vb, _ := querycache.Read(ctx, c, qb)
				So(va, ShouldEqual, 2)
				So(vb, ShouldEqual, 1)
				So(*callsA, ShouldEqual, 2)
				So(*callsB, ShouldEqual, 1)
				So(c.IsStale(alpha, ""), ShouldBeFalse)
			})
		})

		Convey("When no topic is given", func() {
			So(c.Invalidate(ctx), ShouldEqual, 0)
			So(notified, ShouldBeEmpty)
		})

		Convey("When a subscriber unsubscribes", func() {
			var hits int
			unsubscribe := c.Subscribe(alpha, func(querycache.Topic) { hits++ })
			c.Invalidate(ctx, alpha)
			unsubscribe()
			unsubscribe()
			c.Invalidate(ctx, alpha)

			So(hits, ShouldEqual, 1)
			So(notified["test.alpha"], ShouldEqual, 2)
		})

		Convey("When a topic without entries is invalidated", func() {
			gamma := querycache.NewTopic("test.gamma")
			So(c.Invalidate(ctx, gamma), ShouldEqual, 1)
			So(c.IsStale(gamma, "anything"), ShouldBeTrue)
		})
	})
}

func TestInvalidateDuringFetch(t *testing.T) {
	Convey("Given a fetch that is still in flight", t, func() {
		ctx := context.Background()
		c := querycache.New()

		var (
			mu     sync.Mutex
			server = "old"
		)
		fetched := make(chan struct{})
		release := make(chan struct{})
		slow := querycache.NewQuery(alpha, "", func(context.Context) (string, error) {
			mu.Lock()
			v := server
			mu.Unlock()
			close(fetched)
			<-release
			return v, nil
		})

		done := make(chan string, 1)
		go func() {
			v, _ := querycache.Read(ctx, c, slow)
			done <- v
		}()
		<-fetched

		Convey("When the topic is invalidated before the fetch returns", func() {
			mu.Lock()
			server = "new"
			mu.Unlock()
			c.Invalidate(ctx, alpha)
			close(release)
			first := <-done

			Convey("Then the old value is not served as fresh", func() {
				So(first, ShouldEqual, "old")
				So(c.IsStale(alpha, ""), ShouldBeTrue)

				fresh := querycache.NewQuery(alpha, "", func(context.Context) (string, error) {
					mu.Lock()
					defer mu.Unlock()
					return server, nil
				})
				v, err := querycache.Read(ctx, c, fresh)
				So(err, ShouldBeNil)
				So(v, ShouldEqual, "new")
				So(c.IsStale(alpha, ""), ShouldBeFalse)
			})
		})

		Convey("When another topic is invalidated meanwhile", func() {
			c.Invalidate(ctx, beta)
			close(release)
			<-done

			Convey("Then the result is cached as fresh", func() {
				So(c.IsStale(alpha, ""), ShouldBeFalse)
			})
		})
	})
}

func TestEviction(t *testing.T) {
	Convey("Given a cache bounded to two entries", t, func() {
		ctx := context.Background()
		c := querycache.New(querycache.WithMaxEntries(2))

		for i := 0; i < 3; i++ {
			q, _ := countingQuery(alpha, fmt.Sprintf("k%d", i))
			_, err := querycache.Read(ctx, c, q)
			So(err, ShouldBeNil)
		}

		Convey("Then the oldest entry was evicted", func() {
			So(c.Size(), ShouldEqual, int64(2))
			So(c.IsStale(alpha, "k0"), ShouldBeTrue)
			So(c.IsStale(alpha, "k1"), ShouldBeFalse)
			So(c.IsStale(alpha, "k2"), ShouldBeFalse)
		})

		Convey("When refreshing an existing entry", func() {
			c.Invalidate(ctx, alpha)
			q, _ := countingQuery(alpha, "k1")
			_, _ = querycache.Read(ctx, c, q)

			Convey("Then the size does not grow", func() {
				So(c.Size(), ShouldEqual, int64(2))
			})
		})
	})

	Convey("Given an unbounded cache", t, func() {
		ctx := context.Background()
		c := querycache.New(querycache.WithMaxEntries(-1))
		for i := 0; i < 500; i++ {
			q, _ := countingQuery(beta, fmt.Sprintf("k%d", i))
			_, _ = querycache.Read(ctx, c, q)
		}
		So(c.Size(), ShouldEqual, int64(500))
	})
}

func TestConcurrentAccess(t *testing.T) {
	Convey("Given a cache used from many goroutines", t, func() {
		ctx := context.Background()
		c := querycache.New(querycache.WithMaxEntries(16))

		var wg sync.WaitGroup
		for i := 0; i < 32; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				q := querycache.NewQuery(alpha, fmt.Sprintf("k%d", i%20), func(context.Context) (int, error) { return i, nil })
				_, _ = querycache.Read(ctx, c, q)
				c.Invalidate(ctx, alpha)
			}(i)
		}
		wg.Wait()

		So(c.Size(), ShouldBeLessThanOrEqualTo, int64(16))
	})
}

func TestNewTopic(t *testing.T) {
	Convey("Given topic construction", t, func() {
		So(querycache.NewTopic("x").String(), ShouldEqual, "x")
		So(func() { querycache.NewTopic("") }, ShouldPanic)
	})
}
