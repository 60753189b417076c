package api

import (
	"fmt"
	"net/http"

	"github.com/okian/rocatrun/internal/domain/model"
	"github.com/okian/rocatrun/internal/domain/types"
)

// CharacterHandler handles character requests.
type CharacterHandler struct {
	deps CharacterService
}

// NewCharacterHandler creates a new character handler.
func NewCharacterHandler(deps CharacterService) *CharacterHandler {
	return &CharacterHandler{deps: deps}
}

func (h *CharacterHandler) respond(w http.ResponseWriter, r *http.Request, status int, c model.Character) {
	resp, err := h.deps.CharacterResponse(r.Context(), c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, resp)
}

// HandleCreate handles POST /members/{memberID}/character.
func (h *CharacterHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	memberID, err := pathID(r, "memberID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req types.CreateCharacterRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.deps.CreateCharacter(r.Context(), memberID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusCreated, c)
}

// HandleGet handles GET /members/{memberID}/character.
func (h *CharacterHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	memberID, err := pathID(r, "memberID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := h.deps.GetCharacterResponse(r.Context(), memberID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleUpdateNickname handles PUT /members/{memberID}/character/nickname.
func (h *CharacterHandler) HandleUpdateNickname(w http.ResponseWriter, r *http.Request) {
	memberID, err := pathID(r, "memberID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req types.NicknameUpdateRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.deps.UpdateNickname(r.Context(), memberID, req.Nickname)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, c)
}

// HandleUpdateImage handles PUT /members/{memberID}/character/image.
func (h *CharacterHandler) HandleUpdateImage(w http.ResponseWriter, r *http.Request) {
	memberID, err := pathID(r, "memberID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req types.ImageUpdateRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.deps.UpdateCharacterImage(r.Context(), memberID, req.ImageURL)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, c)
}

// HandleAddExperience handles POST /characters/{characterID}/experience.
func (h *CharacterHandler) HandleAddExperience(w http.ResponseWriter, r *http.Request) {
	characterID, err := pathID(r, "characterID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req types.ExperienceRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	lu, err := h.deps.AddExperience(r.Context(), characterID, req.Exp)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.NewLevelUpResponse(lu))
}
