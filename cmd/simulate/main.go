package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/rocatrun/internal/simulate"
)

// Default configuration constants.
const (
	defaultPlayers       = 100
	defaultRuns          = 20
	defaultMaxExp        = 300
	defaultDuplicateRate = 0.05
	defaultWorkers       = 2 // multiplier for runtime.NumCPU()
	defaultTimeout       = 30 * time.Second
	defaultSettle        = time.Minute
	defaultTestTimeout   = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		players    = flag.Int("players", defaultPlayers, "Number of members and characters to create")
		runs       = flag.Int("runs", defaultRuns, "Game results per character")
		maxExp     = flag.Int("max-exp", defaultMaxExp, "Maximum experience of one run")
		duplicates = flag.Float64("duplicates", defaultDuplicateRate, "Share of runs resubmitted with the same event id")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		settle     = flag.Duration("settle", defaultSettle, "How long to wait for queued results to apply")
		outputFile = flag.String("output", "", "Write players and runs as JSON to this file")
		logFile    = flag.String("log", "", "Log file (default: simulate_TIMESTAMP.log)")
		verbose    = flag.Bool("verbose", false, "Enable debug logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulate.ShowHelp()
		return
	}

	if err := simulate.SetupLogging(*logFile, *verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultTestTimeout)
	defer cancel()

	cfg := &simulate.Config{
		BaseURL:       *baseURL,
		Players:       *players,
		RunsPerPlayer: *runs,
		MaxExp:        *maxExp,
		DuplicateRate: *duplicates,
		Workers:       *workers,
		Timeout:       *timeout,
		SettleTimeout: *settle,
		OutputFile:    *outputFile,
		Verbose:       *verbose,
	}

	if _, err := simulate.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
