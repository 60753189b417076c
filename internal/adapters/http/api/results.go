package api

import (
	"net/http"

	"github.com/okian/rocatrun/internal/domain/types"
)

// ResultHandler accepts game results for asynchronous processing.
type ResultHandler struct {
	deps ResultService
}

// NewResultHandler creates a new result handler.
func NewResultHandler(deps ResultService) *ResultHandler {
	return &ResultHandler{deps: deps}
}

// HandleSubmit handles POST /game-results. New results are answered with
// 202, repeated event ids with 200 and a full queue with 429.
func (h *ResultHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req types.GameResultRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id, dup, err := h.deps.SubmitGameResult(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if dup {
		writeJSON(w, http.StatusOK, types.AckResponse{Status: "duplicate", EventID: id, Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, types.AckResponse{Status: "accepted", EventID: id})
}
