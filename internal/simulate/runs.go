package simulate

import (
	"context"
	"math/rand/v2"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/rocatrun/internal/domain/types"
	"github.com/okian/rocatrun/pkg/logger"
)

const (
	backpressureRetries = 10
	backpressureBackoff = 50 * time.Millisecond
)

// submission outcomes
const (
	outcomeAccepted  = "accepted"
	outcomeDuplicate = "duplicate"
	outcomeRejected  = "rejected"
)

// generateRuns creates the game results of every player in shuffled order.
// A cfg.DuplicateRate share of them is repeated with the same event id.
func generateRuns(cfg *Config, players []*Player) []types.GameResultRequest {
	runs := make([]types.GameResultRequest, 0, len(players)*cfg.RunsPerPlayer)
	for _, p := range players {
		for i := 0; i < cfg.RunsPerPlayer; i++ {
			run := types.GameResultRequest{
				EventID:     uuid.NewString(),
				CharacterID: p.CharacterID,
				Exp:         1 + rand.IntN(cfg.MaxExp),
			}
			runs = append(runs, run)
			if rand.Float64() < cfg.DuplicateRate {
				runs = append(runs, run)
			}
		}
	}
	rand.Shuffle(len(runs), func(i, j int) { runs[i], runs[j] = runs[j], runs[i] })
	return runs
}

// submitRuns posts runs concurrently and credits accepted experience to the
// owning players.
func submitRuns(ctx context.Context, c *client, cfg *Config, players []*Player, runs []types.GameResultRequest, stats *Stats) {
	log := logger.Get()
	log.Info(ctx, "submitting game results", logger.Int("runs", len(runs)), logger.Int("workers", cfg.Workers))

	byCharacter := make(map[int64]*Player, len(players))
	for _, p := range players {
		byCharacter[p.CharacterID] = p
	}

	var (
		mu                                     sync.Mutex
		submitted, accepted, dup, rej, retried int64
	)

	work := make(chan types.GameResultRequest, cfg.Workers*2)
	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for run := range work {
				outcome, retries := submitRun(ctx, c, run)
				atomic.AddInt64(&submitted, 1)
				atomic.AddInt64(&retried, int64(retries))
				switch outcome {
				case outcomeAccepted:
					atomic.AddInt64(&accepted, 1)
					mu.Lock()
					byCharacter[run.CharacterID].GrantedExp += run.Exp
					mu.Unlock()
				case outcomeDuplicate:
					atomic.AddInt64(&dup, 1)
				default:
					atomic.AddInt64(&rej, 1)
				}
				if cfg.Verbose {
					log.Debug(ctx, "game result submitted",
						logger.String("event_id", run.EventID),
						logger.String("outcome", outcome))
				}
			}
		}()
	}

feed:
	for _, run := range runs {
		select {
		case <-ctx.Done():
			break feed
		case work <- run:
		}
	}
	close(work)
	wg.Wait()

	stats.RunsSubmitted = int(submitted)
	stats.RunsAccepted = int(accepted)
	stats.RunsDuplicate = int(dup)
	stats.RunsRejected = int(rej)
	stats.RunsRetried = int(retried)

	log.Info(ctx, "game result submission completed",
		logger.Int("accepted", stats.RunsAccepted),
		logger.Int("duplicate", stats.RunsDuplicate),
		logger.Int("rejected", stats.RunsRejected),
		logger.Int("retried", stats.RunsRetried))
}

// submitRun posts one run, retrying while the service reports backpressure.
func submitRun(ctx context.Context, c *client, run types.GameResultRequest) (string, int) {
	for attempt := 0; ; attempt++ {
		var ack types.AckResponse
		status, err := c.do(ctx, http.MethodPost, "/game-results", run, &ack)
		switch {
		case err == nil && status == http.StatusAccepted:
			return outcomeAccepted, attempt
		case err == nil && ack.Duplicate:
			return outcomeDuplicate, attempt
		case status == http.StatusTooManyRequests && attempt < backpressureRetries:
			select {
			case <-ctx.Done():
				return outcomeRejected, attempt
			case <-time.After(backpressureBackoff * time.Duration(attempt+1)):
			}
		default:
			return outcomeRejected, attempt
		}
	}
}
