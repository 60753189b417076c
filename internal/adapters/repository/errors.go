package repository

import (
	"errors"
	"fmt"
)

// Sentinel kinds for store errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidLimit = errors.New("invalid ranking limit")

	ErrMemberNotFound    = fmt.Errorf("member %w", ErrNotFound)
	ErrCharacterNotFound = fmt.Errorf("character %w", ErrNotFound)
	ErrItemNotFound      = fmt.Errorf("item %w", ErrNotFound)
	ErrInventoryNotFound = fmt.Errorf("inventory item %w", ErrNotFound)

	ErrCharacterExists = errors.New("member already has a character")
	ErrNicknameTaken   = errors.New("nickname already in use")
	ErrItemEquipped    = errors.New("equipped items cannot be sold")
	ErrPriceMismatch   = errors.New("total price does not match item prices")
)
