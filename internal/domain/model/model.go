// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/rocatrun/internal/domain/progression"
)

// Gender of a member, as collected at character creation.
type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
)

// ParseGender accepts MALE or FEMALE in any case.
func ParseGender(s string) (Gender, error) {
	switch g := Gender(strings.ToUpper(strings.TrimSpace(s))); g {
	case GenderMale, GenderFemale:
		return g, nil
	default:
		return "", fmt.Errorf("unknown gender %q", s)
	}
}

// Member is an account holder. It owns at most one Character.
type Member struct {
	ID        int64
	Height    float64 // cm
	Weight    float64 // kg
	Age       int
	Gender    Gender
	CreatedAt time.Time
}

// BodyProfile is the physical profile a member supplies when creating a character.
type BodyProfile struct {
	Height float64
	Weight float64
	Age    int
	Gender Gender
}

// Character is a member's game character.
type Character struct {
	ID         int64
	MemberID   int64
	Nickname   string
	Level      int
	Experience int
	Image      string
	Coin       int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Progress returns the character's level progress.
func (c Character) Progress() progression.Progress {
	return progression.Progress{Level: c.Level, Experience: c.Experience}
}

// NewCharacter returns a level 1 character with no experience or coins.
func NewCharacter(memberID int64, nickname, image string) Character {
	return Character{
		MemberID:   memberID,
		Nickname:   nickname,
		Level:      progression.MinLevel,
		Experience: 0,
		Image:      image,
	}
}

// Item is a catalog entry that can be owned and sold.
type Item struct {
	ID    int64
	Name  string
	Type  string
	Price int
}

// InventoryItem is one owned copy of an Item.
type InventoryItem struct {
	ID          int64
	CharacterID int64
	Item        Item
	Equipped    bool
	AcquiredAt  time.Time
}

// GameResult carries the experience reward of a finished run.
type GameResult struct {
	EventID     string
	CharacterID int64
	Experience  int
	ReceivedAt  time.Time
}

// LevelUp summarizes an applied experience grant.
type LevelUp struct {
	CharacterID  int64
	OldLevel     int
	NewLevel     int
	Experience   int
	HasLeveledUp bool
}
