package api

import (
	"net/http"

	"github.com/okian/rocatrun/internal/domain/types"
)

// MemberHandler handles member registration and nickname checks.
type MemberHandler struct {
	deps MemberService
}

// NewMemberHandler creates a new member handler.
func NewMemberHandler(deps MemberService) *MemberHandler {
	return &MemberHandler{deps: deps}
}

// HandleRegister handles POST /members.
func (h *MemberHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	m, err := h.deps.RegisterMember(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, types.MemberResponse{MemberID: m.ID})
}

// HandleCheckNickname handles GET /characters/nickname/check?nickname=.
func (h *MemberHandler) HandleCheckNickname(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("nickname")
	dup, err := h.deps.CheckNicknameDuplicate(r.Context(), name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.NicknameCheckResponse{Nickname: name, Duplicate: dup})
}
