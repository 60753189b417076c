package progression

import (
	"context"
	"fmt"
)

// Requirement is one row of the level requirement table.
type Requirement struct {
	Level       int `json:"level"`
	RequiredExp int `json:"required_exp"`
}

// Table is an immutable in-memory RequirementLookup.
type Table struct {
	required map[int]int
}

// NewTable builds a table from rows. Levels outside [MinLevel, MaxLevel],
// duplicates and non-positive requirements are rejected. Gaps are allowed
// here and surface as missing definitions when Apply reaches them.
func NewTable(rows []Requirement) (*Table, error) {
	t := &Table{required: make(map[int]int, len(rows))}
	for _, r := range rows {
		if r.Level < MinLevel || r.Level > MaxLevel {
			return nil, fmt.Errorf("%w: level %d outside [%d, %d]", ErrInvalidProgress, r.Level, MinLevel, MaxLevel)
		}
		if r.RequiredExp <= 0 {
			return nil, &MissingLevelDefinitionError{Level: r.Level, Err: fmt.Errorf("non-positive requirement %d", r.RequiredExp)}
		}
		if _, dup := t.required[r.Level]; dup {
			return nil, fmt.Errorf("%w: duplicate level %d", ErrInvalidProgress, r.Level)
		}
		t.required[r.Level] = r.RequiredExp
	}
	return t, nil
}

// RequiredExp implements RequirementLookup.
func (t *Table) RequiredExp(_ context.Context, level int) (int, error) {
	if v, ok := t.required[level]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("%w: %d", ErrLevelNotFound, level)
}

// Complete reports the first level in [MinLevel, MaxLevel] that has no row.
func (t *Table) Complete() error {
	for level := MinLevel; level <= MaxLevel; level++ {
		if _, ok := t.required[level]; !ok {
			return &MissingLevelDefinitionError{Level: level, Err: ErrLevelNotFound}
		}
	}
	return nil
}

// Len returns the number of defined levels.
func (t *Table) Len() int { return len(t.required) }
