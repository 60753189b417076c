// Package types contains the request and response shapes of the HTTP API.
package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/okian/rocatrun/internal/domain/model"
)

// MemberResponse is returned when a member is registered.
type MemberResponse struct {
	MemberID int64 `json:"member_id"`
}

// NicknameCheckResponse reports whether a nickname is already in use.
type NicknameCheckResponse struct {
	Nickname  string `json:"nickname"`
	Duplicate bool   `json:"duplicate"`
}

// CreateCharacterRequest is the body of POST /members/{memberID}/character.
type CreateCharacterRequest struct {
	Nickname string  `json:"nickname"`
	Height   float64 `json:"height"`
	Weight   float64 `json:"weight"`
	Age      int     `json:"age"`
	Gender   string  `json:"gender"`
}

// Profile validates and converts the body fields.
func (r CreateCharacterRequest) Profile() (model.BodyProfile, error) {
	switch {
	case r.Height <= 0:
		return model.BodyProfile{}, errors.New("height must be positive")
	case r.Weight <= 0:
		return model.BodyProfile{}, errors.New("weight must be positive")
	case r.Age <= 0:
		return model.BodyProfile{}, errors.New("age must be positive")
	}
	g, err := model.ParseGender(r.Gender)
	if err != nil {
		return model.BodyProfile{}, err
	}
	return model.BodyProfile{Height: r.Height, Weight: r.Weight, Age: r.Age, Gender: g}, nil
}

// NicknameUpdateRequest is the body of PUT .../character/nickname.
type NicknameUpdateRequest struct {
	Nickname string `json:"nickname"`
}

// ImageUpdateRequest is the body of PUT .../character/image.
type ImageUpdateRequest struct {
	ImageURL string `json:"image_url"`
}

// Validate rejects blank URLs.
func (r ImageUpdateRequest) Validate() error {
	if strings.TrimSpace(r.ImageURL) == "" {
		return errors.New("missing image_url")
	}
	return nil
}

// CharacterResponse is a character plus the experience needed for its next level.
// RequiredExp is nil at the max level.
type CharacterResponse struct {
	CharacterID    int64  `json:"character_id"`
	Nickname       string `json:"nickname"`
	Level          int    `json:"level"`
	Experience     int    `json:"experience"`
	RequiredExp    *int   `json:"required_exp"`
	CharacterImage string `json:"character_image"`
	Coin           int    `json:"coin"`
}

// NewCharacterResponse builds a CharacterResponse.
func NewCharacterResponse(c model.Character, requiredExp *int) CharacterResponse {
	return CharacterResponse{
		CharacterID:    c.ID,
		Nickname:       c.Nickname,
		Level:          c.Level,
		Experience:     c.Experience,
		RequiredExp:    requiredExp,
		CharacterImage: c.Image,
		Coin:           c.Coin,
	}
}

// RankingResponse is one ranking row.
type RankingResponse struct {
	Rank           int    `json:"rank"`
	CharacterID    int64  `json:"character_id"`
	Nickname       string `json:"nickname"`
	Level          int    `json:"level"`
	Experience     int    `json:"experience"`
	CharacterImage string `json:"character_image"`
}

// RankingListResponse holds the caller's ranking and the top list without the caller.
type RankingListResponse struct {
	MyRanking RankingResponse   `json:"my_ranking"`
	Rankings  []RankingResponse `json:"rankings"`
}

// MaxExpGain caps a single experience grant accepted over the API. It is far
// above the experience needed to reach the max level.
const MaxExpGain = 1_000_000_000

// ExperienceRequest is the body of POST /characters/{characterID}/experience.
type ExperienceRequest struct {
	Exp int `json:"exp"`
}

// Validate rejects gains outside [0, MaxExpGain].
func (r ExperienceRequest) Validate() error {
	return validateExp(r.Exp)
}

func validateExp(exp int) error {
	switch {
	case exp < 0:
		return errors.New("exp must not be negative")
	case exp > MaxExpGain:
		return fmt.Errorf("exp must not exceed %d", MaxExpGain)
	}
	return nil
}

// LevelUpResponse reports the effect of an experience grant.
type LevelUpResponse struct {
	HasLeveledUp bool `json:"has_leveled_up"`
	OldLevel     int  `json:"old_level"`
	NewLevel     int  `json:"new_level"`
}

// NewLevelUpResponse converts a model.LevelUp.
func NewLevelUpResponse(l model.LevelUp) LevelUpResponse {
	return LevelUpResponse{HasLeveledUp: l.HasLeveledUp, OldLevel: l.OldLevel, NewLevel: l.NewLevel}
}

// GameResultRequest is the body of POST /game-results.
type GameResultRequest struct {
	EventID     string `json:"event_id"`
	CharacterID int64  `json:"character_id"`
	Exp         int    `json:"exp"`
}

// Validate checks required fields. EventID may be empty; the server assigns one.
func (r GameResultRequest) Validate() error {
	switch {
	case r.CharacterID <= 0:
		return errors.New("missing character_id")
	}
	return validateExp(r.Exp)
}

// AckResponse acknowledges an asynchronous game result.
type AckResponse struct {
	Status    string `json:"status"`
	EventID   string `json:"event_id"`
	Duplicate bool   `json:"duplicate"`
}

// InventoryItemResponse is one owned item.
type InventoryItemResponse struct {
	InventoryID int64  `json:"inventory_id"`
	ItemID      int64  `json:"item_id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Price       int    `json:"price"`
	Equipped    bool   `json:"equipped"`
}

// NewInventoryItemResponse converts a model.InventoryItem.
func NewInventoryItemResponse(i model.InventoryItem) InventoryItemResponse {
	return InventoryItemResponse{
		InventoryID: i.ID,
		ItemID:      i.Item.ID,
		Name:        i.Item.Name,
		Type:        i.Item.Type,
		Price:       i.Item.Price,
		Equipped:    i.Equipped,
	}
}

// AddItemRequest is the body of POST /members/{memberID}/inventory.
type AddItemRequest struct {
	ItemID int64 `json:"item_id"`
}

// InventorySellRequest is the body of POST /members/{memberID}/inventory/sell.
type InventorySellRequest struct {
	InventoryIDs []int64 `json:"inventory_ids"`
	TotalPrice   int     `json:"total_price"`
}

// Validate rejects empty, repeated or non-positive ids and negative prices.
func (r InventorySellRequest) Validate() error {
	if len(r.InventoryIDs) == 0 {
		return errors.New("missing inventory_ids")
	}
	if r.TotalPrice < 0 {
		return errors.New("total_price must not be negative")
	}
	seen := make(map[int64]struct{}, len(r.InventoryIDs))
	for _, id := range r.InventoryIDs {
		if id <= 0 {
			return errors.New("inventory ids must be positive")
		}
		if _, dup := seen[id]; dup {
			return errors.New("inventory ids must be distinct")
		}
		seen[id] = struct{}{}
	}
	return nil
}

// InventorySellResponse reports the coin balance after a sale.
type InventorySellResponse struct {
	SoldCount int `json:"sold_count"`
	Coin      int `json:"coin"`
}
