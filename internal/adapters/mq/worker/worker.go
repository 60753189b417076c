// Package worker applies queued game results to characters.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/rocatrun/internal/domain/model"
	"github.com/okian/rocatrun/pkg/logger"
	"github.com/okian/rocatrun/pkg/metrics"
)

// Event is what workers read off the queue.
type Event = model.GameResult

// Applier grants the experience of a game result.
type Applier interface {
	ApplyGameResult(ctx context.Context, r model.GameResult) (model.LevelUp, error)
}

// Queue defines how workers receive events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// InMemoryWorker drains a queue into an Applier.
type InMemoryWorker struct {
	queue   Queue
	applier Applier
	name    string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker.
func NewInMemoryWorker(q Queue, a Applier, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		applier:  a,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run processes events until the queue closes, ctx is done or Stop is called.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	events := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := w.process(ctx, e); err != nil {
				w.logger.Error(ctx, "game result not applied",
					logger.String("event_id", e.EventID),
					logger.Int64("character_id", e.CharacterID),
					logger.Error(err),
				)
			}
		}
	}
}

// Stop makes Run return without draining the queue.
func (w *InMemoryWorker) Stop() {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

func (w *InMemoryWorker) process(ctx context.Context, e Event) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	lu, err := w.applier.ApplyGameResult(ctx, e)
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "apply_error")
		return fmt.Errorf("apply game result %s: %w", e.EventID, err)
	}

	metrics.RecordResultApplied()
	if lu.HasLeveledUp {
		w.logger.Debug(ctx, "character leveled up",
			logger.Int64("character_id", lu.CharacterID),
			logger.Int("old_level", lu.OldLevel),
			logger.Int("new_level", lu.NewLevel),
		)
	}
	return nil
}

// Pool runs a fixed set of workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	once    sync.Once
	logger  logger.Logger
}

// NewPool creates a pool. A count below one uses runtime.NumCPU().
func NewPool(count int, q Queue, a Applier) *Pool {
	if count < 1 {
		count = runtime.NumCPU()
	}

	p := &Pool{
		workers: make([]*InMemoryWorker, count),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		p.workers[i] = NewInMemoryWorker(q, a, WithName("worker-"+strconv.Itoa(i)))
	}

	metrics.UpdateWorkerCount(count)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start launches every worker.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Shutdown closes the queue and waits for the workers to drain it. When ctx
// expires first the workers are stopped and the remaining events are dropped.
func (p *Pool) Shutdown(ctx context.Context) error {
	var err error
	p.once.Do(func() {
		if closer, ok := p.queue.(interface{ Close() error }); ok {
			if cerr := closer.Close(); cerr != nil {
				p.logger.Error(ctx, "error closing queue", logger.Error(cerr))
			}
		}

		for i, w := range p.workers {
			select {
			case <-w.Done():
			case <-ctx.Done():
				p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
				for _, rest := range p.workers {
					rest.Stop()
				}
				err = fmt.Errorf("worker pool shutdown: %w", ctx.Err())
				return
			}
		}
	})
	return err
}
