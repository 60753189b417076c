package api

import (
	"errors"
	"net/http"

	"github.com/okian/rocatrun/internal/adapters/repository"
	service "github.com/okian/rocatrun/internal/app"
	"github.com/okian/rocatrun/internal/domain/nickname"
	"github.com/okian/rocatrun/internal/domain/progression"
)

// Sentinel kinds for API errors.
var (
	ErrServe      = errors.New("http serve failed")
	ErrBadRequest = errors.New("bad request")
)

// classify maps an error to an HTTP status and an API error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, nickname.ErrDuplicate):
		return http.StatusConflict, nickname.CodeDuplicate
	case nickname.IsNicknameError(err):
		return http.StatusBadRequest, nickname.Code(err)
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrBadRequest),
		errors.Is(err, progression.ErrInvalidProgress):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, repository.ErrMemberNotFound):
		return http.StatusNotFound, "member_not_found"
	case errors.Is(err, repository.ErrCharacterNotFound):
		return http.StatusNotFound, "character_not_found"
	case errors.Is(err, repository.ErrItemNotFound):
		return http.StatusNotFound, "item_not_found"
	case errors.Is(err, repository.ErrInventoryNotFound):
		return http.StatusNotFound, "inventory_not_found"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, repository.ErrCharacterExists):
		return http.StatusConflict, "character_exists"
	case errors.Is(err, repository.ErrPriceMismatch):
		return http.StatusUnprocessableEntity, "price_mismatch"
	case errors.Is(err, repository.ErrItemEquipped):
		return http.StatusUnprocessableEntity, "item_equipped"
	case errors.Is(err, service.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, progression.ErrMissingLevelDefinition):
		return http.StatusInternalServerError, "missing_level_definition"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
