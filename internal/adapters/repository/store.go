// Package repository defines the persistence contracts of the game service
// and the in-memory ranking index.
package repository

import (
	"context"

	"github.com/okian/rocatrun/internal/domain/model"
	"github.com/okian/rocatrun/internal/domain/progression"
)

// MemberStore persists members.
type MemberStore interface {
	CreateMember(ctx context.Context) (model.Member, error)
	// Member returns ErrMemberNotFound for unknown ids.
	Member(ctx context.Context, id int64) (model.Member, error)
}

// CharacterStore persists characters and their progress.
type CharacterStore interface {
	// CreateCharacter stores the member's body profile and inserts c in one
	// transaction. It fails with ErrMemberNotFound, ErrCharacterExists or
	// ErrNicknameTaken.
	CreateCharacter(ctx context.Context, profile model.BodyProfile, c model.Character) (model.Character, error)

	NicknameExists(ctx context.Context, nickname string) (bool, error)

	// CharacterByMember returns ErrMemberNotFound when the member is unknown
	// and ErrCharacterNotFound when it has no character.
	CharacterByMember(ctx context.Context, memberID int64) (model.Character, error)
	Character(ctx context.Context, id int64) (model.Character, error)
	Characters(ctx context.Context) ([]model.Character, error)

	// UpdateNickname and UpdateImage return the character as committed.
	UpdateNickname(ctx context.Context, characterID int64, nickname string) (model.Character, error)
	// UpdateImage also returns the image it replaced.
	UpdateImage(ctx context.Context, characterID int64, image string) (model.Character, string, error)
	// ImagesEndingWith lists the images of other characters whose URL ends
	// with suffix.
	ImagesEndingWith(ctx context.Context, suffix string, excludeID int64) ([]string, error)

	// GrantExperience loads the character's progress, applies exp with
	// progression.Apply and writes the result back as one unit of work.
	GrantExperience(ctx context.Context, characterID int64, exp int, lookup progression.RequirementLookup) (model.LevelUp, model.Character, error)
}

// LevelStore reads the experience requirement table.
type LevelStore interface {
	LevelRequirements(ctx context.Context) ([]progression.Requirement, error)
}

// InventoryStore persists owned items.
type InventoryStore interface {
	Items(ctx context.Context) ([]model.Item, error)
	Inventory(ctx context.Context, characterID int64) ([]model.InventoryItem, error)
	AddInventoryItem(ctx context.Context, characterID, itemID int64) (model.InventoryItem, error)
	SetEquipped(ctx context.Context, characterID, inventoryID int64, equipped bool) (model.InventoryItem, error)
	// SellItems removes the items and credits their price in one transaction
	// and returns the new coin balance.
	SellItems(ctx context.Context, characterID int64, inventoryIDs []int64, totalPrice int) (int, error)
}

// Store is everything the application service needs from persistence.
type Store interface {
	MemberStore
	CharacterStore
	LevelStore
	InventoryStore
	Close() error
}
