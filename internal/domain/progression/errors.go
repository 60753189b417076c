package progression

import (
	"errors"
	"fmt"
)

// Sentinel kinds for progression errors.
var (
	// ErrInvalidProgress is a precondition violation: level outside
	// [MinLevel, MaxLevel] or negative experience.
	ErrInvalidProgress = errors.New("invalid progress")

	// ErrLevelNotFound is returned by a RequirementLookup for an undefined level.
	ErrLevelNotFound = errors.New("level not found")

	// ErrMissingLevelDefinition means the requirement table is incomplete or
	// corrupt. It is fatal and must not be retried.
	ErrMissingLevelDefinition = errors.New("missing level definition")
)

// MissingLevelDefinitionError reports the level whose requirement could not be resolved.
type MissingLevelDefinitionError struct {
	Level int
	Err   error
}

func (e *MissingLevelDefinitionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("missing level definition for level %d", e.Level)
	}
	return fmt.Sprintf("missing level definition for level %d: %v", e.Level, e.Err)
}

// Is lets errors.Is match ErrMissingLevelDefinition.
func (e *MissingLevelDefinitionError) Is(target error) bool {
	return target == ErrMissingLevelDefinition
}

func (e *MissingLevelDefinitionError) Unwrap() error { return e.Err }
