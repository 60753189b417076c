package api

import "net/http"

// RankingHandler handles ranking requests.
type RankingHandler struct {
	deps RankingService
}

// NewRankingHandler creates a new ranking handler.
func NewRankingHandler(deps RankingService) *RankingHandler {
	return &RankingHandler{deps: deps}
}

// HandleGetRankings handles GET /members/{memberID}/rankings.
func (h *RankingHandler) HandleGetRankings(w http.ResponseWriter, r *http.Request) {
	memberID, err := pathID(r, "memberID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.deps.GetRankings(r.Context(), memberID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
