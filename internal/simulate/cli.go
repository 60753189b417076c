package simulate

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/rocatrun/pkg/logger"
)

const logFilePermission = 0o600

// SetupLogging initializes the global logger writing to stdout and to
// logFile. If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string, verbose bool) error {
	if logFile == "" {
		logFile = "simulate_" + time.Now().Format("20060102_150405") + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	if err := logger.InitWithWriter(io.MultiWriter(os.Stdout, file), logger.FormatText); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	logger.Get().Info(context.Background(), "logging to file", logger.String("log_file", logFile))
	return nil
}

// ShowHelp prints usage information for the simulator.
func ShowHelp() {
	os.Stdout.WriteString(`rocatrun simulator
==================

Creates players against a running rocatrun service, submits game results
concurrently and verifies that the rankings agree with the granted experience.

Usage:
  go run ./cmd/simulate [options]

Options:
  -url string         Base URL of the service (default "http://localhost:9080")
  -players int        Number of members and characters to create (default 100)
  -runs int           Game results per character (default 20)
  -max-exp int        Maximum experience of one run (default 300)
  -duplicates float   Share of runs resubmitted with the same event id (default 0.05)
  -workers int        Number of concurrent workers (default CPU cores * 2)
  -timeout duration   HTTP request timeout (default 30s)
  -settle duration    How long to wait for queued results to apply (default 1m)
  -output string      Write players and runs as JSON to this file
  -log string         Log file (default: simulate_TIMESTAMP.log)
  -verbose            Enable debug logging
  -help               Show this help message

Examples:
  go run ./cmd/simulate -players 500 -runs 50 -workers 32
`)
}
