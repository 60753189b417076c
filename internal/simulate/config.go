// Package simulate drives a running rocatrun service with simulated players:
// it registers members, creates characters, submits game results
// concurrently and checks that the rankings agree with the experience granted.
package simulate

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig reports an unusable simulation configuration.
var ErrInvalidConfig = errors.New("invalid simulation config")

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL       string        // Base URL of the service
	Players       int           // Number of members/characters to create
	RunsPerPlayer int           // Game results submitted per character
	MaxExp        int           // Upper bound of the experience of one run
	DuplicateRate float64       // Share of runs resubmitted with the same event id
	Workers       int           // Number of concurrent HTTP workers
	Timeout       time.Duration // HTTP request timeout
	SettleTimeout time.Duration // How long to wait for the queue to drain
	OutputFile    string        // Optional JSON dump of the submitted runs
	Verbose       bool          // Enable verbose logging
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: base url is required", ErrInvalidConfig)
	case c.Players < 1:
		return fmt.Errorf("%w: players must be positive", ErrInvalidConfig)
	case c.RunsPerPlayer < 1:
		return fmt.Errorf("%w: runs per player must be positive", ErrInvalidConfig)
	case c.MaxExp < 1:
		return fmt.Errorf("%w: max exp must be positive", ErrInvalidConfig)
	case c.DuplicateRate < 0 || c.DuplicateRate > 1:
		return fmt.Errorf("%w: duplicate rate must be within [0, 1]", ErrInvalidConfig)
	case c.Workers < 1:
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	}
	return nil
}

// Player is one simulated member and its character.
type Player struct {
	MemberID    int64  `json:"member_id"`
	CharacterID int64  `json:"character_id"`
	Nickname    string `json:"nickname"`
	// GrantedExp sums the experience of the runs the service accepted.
	GrantedExp int `json:"granted_exp"`
}

// Stats holds simulation statistics.
type Stats struct {
	PlayersCreated  int
	RunsSubmitted   int
	RunsAccepted    int
	RunsDuplicate   int
	RunsRejected    int
	RunsRetried     int
	RankingsChecked int
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}
