// Package service implements the game operations used by the HTTP API and
// the game result workers.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/okian/rocatrun/internal/adapters/imagestore"
	eventqueue "github.com/okian/rocatrun/internal/adapters/mq/queue"
	workerpool "github.com/okian/rocatrun/internal/adapters/mq/worker"
	"github.com/okian/rocatrun/internal/adapters/repository"
	"github.com/okian/rocatrun/internal/domain/dedupe"
	"github.com/okian/rocatrun/internal/domain/model"
	"github.com/okian/rocatrun/internal/domain/progression"
	"github.com/okian/rocatrun/pkg/logger"
	"github.com/okian/rocatrun/pkg/metrics"
)

// DefaultImage is the image given to new characters.
const DefaultImage = "default.png"

// LevelUpPublisher is notified after every grant that raised a level.
type LevelUpPublisher interface {
	PublishLevelUp(ctx context.Context, lu model.LevelUp)
}

// Service implements the game operations on top of a repository.Store.
type Service struct {
	mu sync.RWMutex

	store   repository.Store
	images  imagestore.Store
	levelUp LevelUpPublisher
	levels  *progression.Table
	ranking *repository.RankIndex
	deduper dedupe.Deduper
	queue   eventqueue.Queue
	pool    *workerpool.Pool

	workerCount    int
	queueSize      int
	dedupeSize     int
	maxRankingSize int
	defaultImage   string

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of game result workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the game result queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many game result ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithMaxRankingSize sets the length of the ranking list.
func WithMaxRankingSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxRankingSize = n
		}
	}
}

// WithDefaultImage sets the image of new characters. It is never deleted.
func WithDefaultImage(name string) Option {
	return func(s *Service) {
		if name != "" {
			s.defaultImage = name
		}
	}
}

// WithImageStore sets where replaced images are deleted from.
func WithImageStore(images imagestore.Store) Option {
	return func(s *Service) {
		s.images = images
	}
}

// WithLevelUpPublisher sets the receiver of level-up events.
func WithLevelUpPublisher(p LevelUpPublisher) Option {
	return func(s *Service) {
		s.levelUp = p
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service over store.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:          store,
		workerCount:    runtime.NumCPU(),
		queueSize:      10_000,
		dedupeSize:     100_000,
		maxRankingSize: 100,
		defaultImage:   DefaultImage,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads the level table, rebuilds the ranking index and starts the
// game result workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	rows, err := s.store.LevelRequirements(ctx)
	if err != nil {
		return fmt.Errorf("load level table: %w", err)
	}
	levels, err := progression.NewTable(rows)
	if err != nil {
		return fmt.Errorf("load level table: %w", err)
	}
	if err := levels.Complete(); err != nil {
		// Grants still fail loudly when they reach a missing level.
		s.logger.Warn(ctx, "level table is incomplete", logger.Error(err))
	}
	s.levels = levels

	characters, err := s.store.Characters(ctx)
	if err != nil {
		return fmt.Errorf("rebuild ranking: %w", err)
	}
	s.ranking = repository.NewRankIndex(ctx)
	s.ranking.Load(ctx, characters)

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "game service started",
		logger.Int("levels", levels.Len()),
		logger.Int("characters", len(characters)),
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.Int("dedupe_size", s.dedupeSize),
	)
	return nil
}

// Stop drains the game result queue and releases background resources. The
// store is owned by the caller and left open.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping game service")

	err := s.pool.Shutdown(ctx)
	if cerr := s.ranking.Close(); cerr != nil && err == nil {
		err = cerr
	}
	s.started = false

	if err != nil {
		return fmt.Errorf("stop service: %w", err)
	}
	s.logger.Info(ctx, "game service stopped")
	return nil
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":        s.started,
		"workerCount":    s.workerCount,
		"queueCapacity":  s.queueSize,
		"dedupeSize":     s.dedupeSize,
		"maxRankingSize": s.maxRankingSize,
	}
	if s.started {
		ranked := s.ranking.Count(ctx)
		stats["queueLength"] = s.queue.Len(ctx)
		stats["rememberedResults"] = s.deduper.Size()
		stats["rankedCharacters"] = ranked
		stats["levels"] = s.levels.Len()
		metrics.UpdateRankedCharacters(ranked)
	}
	return stats
}
