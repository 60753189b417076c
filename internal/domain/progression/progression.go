// Package progression computes character level progression from experience grants.
//
// Apply is pure: it reads requirements through a RequirementLookup and returns
// the new level and leftover experience. Loading and persisting a character's
// progress is the caller's responsibility and must happen in one unit of work
// per character so concurrent grants cannot lose an update.
package progression

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// Level bounds.
const (
	MinLevel = 1
	MaxLevel = 50
)

// Progress is a character's level and the experience accumulated inside it.
type Progress struct {
	Level      int `json:"level"`
	Experience int `json:"experience"`
}

// Result is the outcome of applying an experience grant.
type Result struct {
	Level      int  `json:"level"`
	Experience int  `json:"experience"`
	LeveledUp  bool `json:"leveled_up"`
}

// Progress returns the resulting progress.
func (r Result) Progress() Progress {
	return Progress{Level: r.Level, Experience: r.Experience}
}

// RequirementLookup resolves the experience needed to advance from a level to
// the next one. Undefined levels return an error matching ErrLevelNotFound.
type RequirementLookup interface {
	RequiredExp(ctx context.Context, level int) (int, error)
}

// LookupFunc adapts a function to RequirementLookup.
type LookupFunc func(ctx context.Context, level int) (int, error)

// RequiredExp implements RequirementLookup.
func (f LookupFunc) RequiredExp(ctx context.Context, level int) (int, error) {
	return f(ctx, level)
}

// Validate checks that p is a legal starting point for Apply.
func (p Progress) Validate() error {
	if p.Level < MinLevel || p.Level > MaxLevel {
		return fmt.Errorf("%w: level %d outside [%d, %d]", ErrInvalidProgress, p.Level, MinLevel, MaxLevel)
	}
	if p.Experience < 0 {
		return fmt.Errorf("%w: negative experience %d", ErrInvalidProgress, p.Experience)
	}
	return nil
}

// Apply adds expGained to current and advances levels while the accumulated
// experience reaches the current level's requirement. At MaxLevel the
// experience is clamped to the MaxLevel requirement and the excess is
// discarded.
func Apply(ctx context.Context, current Progress, expGained int, lookup RequirementLookup) (Result, error) {
	if err := current.Validate(); err != nil {
		return Result{}, err
	}
	if expGained < 0 {
		return Result{}, fmt.Errorf("%w: negative experience gain %d", ErrInvalidProgress, expGained)
	}
	if expGained > math.MaxInt-current.Experience {
		return Result{}, fmt.Errorf("%w: experience gain %d overflows %d", ErrInvalidProgress, expGained, current.Experience)
	}
	if lookup == nil {
		return Result{}, &MissingLevelDefinitionError{Level: current.Level, Err: errors.New("no requirement lookup")}
	}

	level := current.Level
	total := current.Experience + expGained
	leveledUp := false

	for {
		required, err := requirement(ctx, lookup, level)
		if err != nil {
			return Result{}, err
		}
		if total < required {
			break
		}
		if level == MaxLevel {
			total = required
			break
		}
		total -= required
		level++
		leveledUp = true
	}

	return Result{Level: level, Experience: total, LeveledUp: leveledUp}, nil
}

// requirement resolves one level's requirement, turning every failure into a
// missing definition. Non-positive requirements count as missing so the loop
// in Apply always makes progress.
func requirement(ctx context.Context, lookup RequirementLookup, level int) (int, error) {
	required, err := lookup.RequiredExp(ctx, level)
	if err != nil {
		return 0, &MissingLevelDefinitionError{Level: level, Err: err}
	}
	if required <= 0 {
		return 0, &MissingLevelDefinitionError{
			Level: level,
			Err:   fmt.Errorf("non-positive requirement %d", required),
		}
	}
	return required, nil
}
