package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/plushub/internal/adapters/mq/queue"
	worker "github.com/okian/plushub/internal/adapters/mq/worker"
	model "github.com/okian/plushub/internal/domain/model"
	logging "github.com/okian/plushub/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

// Mock implementations for testing.
type mockQueue struct {
	items chan queue.Notification
}

func newMockQueue() *mockQueue {
	return &mockQueue{items: make(chan queue.Notification, 10)}
}

func (mq *mockQueue) Dequeue(ctx context.Context) <-chan queue.Notification {
	return mq.items
}

func (mq *mockQueue) Close() error {
	close(mq.items)
	return nil
}

func (mq *mockQueue) add(n queue.Notification) {
	mq.items <- n
}

type mockSink struct {
	mu        sync.Mutex
	delivered []string
	failOn    map[string]error
}

func newMockSink() *mockSink {
	return &mockSink{failOn: make(map[string]error)}
}

func (ms *mockSink) Deliver(ctx context.Context, n worker.Notification) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if err, ok := ms.failOn[n.Message]; ok {
		return err
	}
	ms.delivered = append(ms.delivered, n.Message)
	return nil
}

func (ms *mockSink) fail(msg string, err error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.failOn[msg] = err
}

func (ms *mockSink) messages() []string {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return append([]string(nil), ms.delivered...)
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a new InMemoryWorker", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		sink := newMockSink()

		convey.Convey("When creating a worker with options", func() {
			w := worker.NewInMemoryWorker(q, sink, worker.WithName("test-worker"), worker.WithLogger(logging.Get()))

			convey.Convey("Then it should be created successfully", func() {
				convey.So(w, convey.ShouldNotBeNil)
				convey.So(w.Delivered(), convey.ShouldEqual, int64(0))
			})
		})

		convey.Convey("When running a worker", func() {
			w := worker.NewInMemoryWorker(q, sink)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			go w.Run(ctx)

			convey.Convey("And when delivering notifications", func() {
				q.add(model.NewNotification(model.NotificationSuccess, "plus.vouch", "Vouched"))
				q.add(model.NewNotification(model.NotificationError, "plus.vouch", "Voting is in progress"))

				time.Sleep(50 * time.Millisecond)

				convey.Convey("Then the sink receives them in order", func() {
					convey.So(sink.messages(), convey.ShouldResemble, []string{"Vouched", "Voting is in progress"})
					convey.So(w.Delivered(), convey.ShouldEqual, int64(2))
				})
			})

			convey.Convey("And when the sink fails", func() {
				sink.fail("broken", errors.New("sink down"))
				q.add(model.NewNotification(model.NotificationInfo, "test", "broken"))
				q.add(model.NewNotification(model.NotificationInfo, "test", "after"))

				time.Sleep(50 * time.Millisecond)

				convey.Convey("Then the worker keeps going", func() {
					convey.So(sink.messages(), convey.ShouldResemble, []string{"after"})
					convey.So(w.Delivered(), convey.ShouldEqual, int64(1))
				})
			})

			convey.Convey("And when shutting down", func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
				defer shutdownCancel()

				err := w.Shutdown(shutdownCtx)

				convey.Convey("Then it should shutdown gracefully", func() {
					convey.So(err, convey.ShouldBeNil)
				})
			})
		})

		convey.Convey("When the queue is closed", func() {
			w := worker.NewInMemoryWorker(q, sink)
			finished := make(chan struct{})
			go func() {
				w.Run(context.Background())
				close(finished)
			}()
			_ = q.Close()

			convey.Convey("Then the worker stops", func() {
				select {
				case <-finished:
					convey.So(true, convey.ShouldBeTrue)
				case <-time.After(time.Second):
					convey.So("worker did not stop", convey.ShouldBeEmpty)
				}
			})
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool over a real queue", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue(queue.WithCapacity(64))
		sink := newMockSink()
		pool := worker.NewPool(3, q, sink)
		ctx := context.Background()
		pool.Start(ctx)

		convey.Convey("When notifications are queued and the pool shuts down", func() {
			for i := 0; i < 20; i++ {
				convey.So(q.Enqueue(ctx, model.NewNotification(model.NotificationInfo, "test", "n")), convey.ShouldBeNil)
			}
			err := pool.Shutdown(ctx)

			convey.Convey("Then everything queued is delivered first", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(pool.Size(), convey.ShouldEqual, 3)
				convey.So(pool.Delivered(), convey.ShouldEqual, int64(20))
				convey.So(len(sink.messages()), convey.ShouldEqual, 20)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given a pool with a non-positive size", t, func() {
		_ = logging.Init()
		pool := worker.NewPool(0, newMockQueue(), newMockSink())
		convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
	})
}
