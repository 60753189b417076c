package simulate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/rocatrun/internal/domain/types"
	"github.com/okian/rocatrun/pkg/logger"
)

const directoryPermission = 0o750

// Run executes the complete simulation and returns its statistics.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get()

	log.Info(ctx, "starting rocatrun simulation",
		logger.String("base_url", cfg.BaseURL),
		logger.Int("players", cfg.Players),
		logger.Int("runs_per_player", cfg.RunsPerPlayer),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout))

	c := newClient(cfg.BaseURL, cfg.Timeout)

	if _, err := c.do(ctx, http.MethodGet, "/healthz", nil, nil); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	players, err := createPlayers(ctx, c, cfg, stats)
	if err != nil {
		return nil, err
	}

	runs := generateRuns(cfg, players)
	submitRuns(ctx, c, cfg, players, runs, stats)

	if err := waitForDrain(ctx, c, cfg.SettleTimeout); err != nil {
		return nil, err
	}

	if err := verify(ctx, c, players, stats); err != nil {
		return nil, err
	}

	if cfg.OutputFile != "" {
		if err := saveRuns(ctx, cfg.OutputFile, players, runs); err != nil {
			log.Warn(ctx, "failed to save runs to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	return stats, nil
}

// saveRuns writes the players and the submitted runs as JSON.
func saveRuns(ctx context.Context, filename string, players []*Player, runs []types.GameResultRequest) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer func() { _ = file.Close() }()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(struct {
		Players []*Player                 `json:"players"`
		Runs    []types.GameResultRequest `json:"runs"`
	}{players, runs}); err != nil {
		return fmt.Errorf("write runs: %w", err)
	}

	logger.Get().Info(ctx, "runs saved to file", logger.String("filename", filename))
	return nil
}

func displayFinalStats(ctx context.Context, stats *Stats) {
	var runsPerSecond float64
	if stats.Duration > 0 {
		runsPerSecond = float64(stats.RunsSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("players_created", stats.PlayersCreated),
		logger.Int("runs_submitted", stats.RunsSubmitted),
		logger.Int("runs_accepted", stats.RunsAccepted),
		logger.Int("runs_duplicate", stats.RunsDuplicate),
		logger.Int("runs_rejected", stats.RunsRejected),
		logger.Int("runs_retried", stats.RunsRetried),
		logger.Int("rankings_checked", stats.RankingsChecked),
		logger.Duration("duration", stats.Duration),
		logger.Float64("runs_per_second", runsPerSecond))
}
