package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/rocatrun/internal/adapters/mq/queue"
	worker "github.com/okian/rocatrun/internal/adapters/mq/worker"
	model "github.com/okian/rocatrun/internal/domain/model"
	logging "github.com/okian/rocatrun/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockApplier struct {
	mu      sync.Mutex
	applied map[int64]int
	fail    map[int64]error
	block   chan struct{}
}

func newMockApplier() *mockApplier {
	return &mockApplier{applied: make(map[int64]int), fail: make(map[int64]error)}
}

func (m *mockApplier) ApplyGameResult(ctx context.Context, r model.GameResult) (model.LevelUp, error) {
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return model.LevelUp{}, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail[r.CharacterID]; err != nil {
		return model.LevelUp{}, err
	}
	m.applied[r.CharacterID] += r.Experience
	return model.LevelUp{CharacterID: r.CharacterID, OldLevel: 1, NewLevel: 2, HasLeveledUp: true}, nil
}

func (m *mockApplier) total(id int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applied[id]
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool of workers over a queue", t, func() {
		convey.So(logging.Init(), convey.ShouldBeNil)
		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		a := newMockApplier()
		p := worker.NewPool(4, q, a)
		convey.So(p.Size(), convey.ShouldEqual, 4)
		p.Start(ctx)

		convey.Convey("When results are queued and the pool shuts down", func() {
			for i := 0; i < 50; i++ {
				convey.So(q.Enqueue(ctx, model.GameResult{EventID: "r", CharacterID: int64(i % 5), Experience: 2}), convey.ShouldBeNil)
			}
			sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			convey.So(p.Shutdown(sctx), convey.ShouldBeNil)

			convey.Convey("Then every result was applied before returning", func() {
				for id := int64(0); id < 5; id++ {
					convey.So(a.total(id), convey.ShouldEqual, 20)
				}
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})

			convey.Convey("Then a second shutdown is a no-op", func() {
				convey.So(p.Shutdown(sctx), convey.ShouldBeNil)
			})
		})

		convey.Convey("When one character fails to apply", func() {
			a.fail[3] = errors.New("character not found")
			convey.So(q.Enqueue(ctx, model.GameResult{EventID: "bad", CharacterID: 3, Experience: 5}), convey.ShouldBeNil)
			convey.So(q.Enqueue(ctx, model.GameResult{EventID: "good", CharacterID: 4, Experience: 5}), convey.ShouldBeNil)
			convey.So(p.Shutdown(ctx), convey.ShouldBeNil)

			convey.Convey("Then the others are still applied", func() {
				convey.So(a.total(3), convey.ShouldEqual, 0)
				convey.So(a.total(4), convey.ShouldEqual, 5)
			})
		})
	})

	convey.Convey("Given a pool whose applier never finishes", t, func() {
		convey.So(logging.Init(), convey.ShouldBeNil)
		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		a := newMockApplier()
		a.block = make(chan struct{})
		defer close(a.block)

		p := worker.NewPool(1, q, a)
		p.Start(ctx)
		convey.So(q.Enqueue(ctx, model.GameResult{EventID: "stuck", CharacterID: 1, Experience: 1}), convey.ShouldBeNil)
		convey.So(q.Enqueue(ctx, model.GameResult{EventID: "waiting", CharacterID: 1, Experience: 1}), convey.ShouldBeNil)

		convey.Convey("When shutdown times out", func() {
			sctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
			defer cancel()
			err := p.Shutdown(sctx)

			convey.Convey("Then the deadline error is returned", func() {
				convey.So(errors.Is(err, context.DeadlineExceeded), convey.ShouldBeTrue)
			})
		})
	})
}

func TestWorkerStop(t *testing.T) {
	convey.Convey("Given a single worker", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(1))
		w := worker.NewInMemoryWorker(q, newMockApplier(), worker.WithName("solo"), worker.WithLogger(logging.Nop()))
		go w.Run(context.Background())

		convey.Convey("When it is stopped twice", func() {
			w.Stop()
			w.Stop()

			convey.Convey("Then Run returns", func() {
				select {
				case <-w.Done():
				case <-time.After(time.Second):
					t.Fatal("worker did not stop")
				}
			})
		})
	})
}
