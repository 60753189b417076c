// Package api registers the HTTP routes of the game service.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/rocatrun/internal/domain/model"
	"github.com/okian/rocatrun/internal/domain/types"
	"github.com/okian/rocatrun/pkg/logger"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// MemberService registers members and checks nicknames.
type MemberService interface {
	RegisterMember(ctx context.Context) (model.Member, error)
	CheckNicknameDuplicate(ctx context.Context, nickname string) (bool, error)
}

// CharacterService manages a member's character.
type CharacterService interface {
	CreateCharacter(ctx context.Context, memberID int64, req types.CreateCharacterRequest) (model.Character, error)
	GetCharacterResponse(ctx context.Context, memberID int64) (types.CharacterResponse, error)
	CharacterResponse(ctx context.Context, c model.Character) (types.CharacterResponse, error)
	UpdateNickname(ctx context.Context, memberID int64, nickname string) (model.Character, error)
	UpdateCharacterImage(ctx context.Context, memberID int64, imageURL string) (model.Character, error)
	AddExperience(ctx context.Context, characterID int64, exp int) (model.LevelUp, error)
}

// RankingService reads rankings.
type RankingService interface {
	GetRankings(ctx context.Context, memberID int64) (types.RankingListResponse, error)
}

// InventoryService manages owned items.
type InventoryService interface {
	Items(ctx context.Context) ([]model.Item, error)
	ListInventory(ctx context.Context, memberID int64) ([]model.InventoryItem, error)
	AddItem(ctx context.Context, memberID, itemID int64) (model.InventoryItem, error)
	EquipItem(ctx context.Context, memberID, inventoryID int64, equipped bool) (model.InventoryItem, error)
	SellItems(ctx context.Context, memberID int64, req types.InventorySellRequest) (types.InventorySellResponse, error)
}

// ResultService accepts finished runs.
type ResultService interface {
	SubmitGameResult(ctx context.Context, req types.GameResultRequest) (eventID string, duplicate bool, err error)
}

// Dependencies bundles everything the handlers call.
type Dependencies interface {
	MemberService
	CharacterService
	RankingService
	InventoryService
	ResultService
}

// Server wires HTTP routes for the game API.
type Server struct {
	health    *HealthHandler
	stats     *StatsHandler
	members   *MemberHandler
	character *CharacterHandler
	rankings  *RankingHandler
	inventory *InventoryHandler
	results   *ResultHandler
}

// NewServer creates the API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		health:    NewHealthHandler(),
		stats:     NewStatsHandler(statsProvider),
		members:   NewMemberHandler(deps),
		character: NewCharacterHandler(deps),
		rankings:  NewRankingHandler(deps),
		inventory: NewInventoryHandler(deps),
		results:   NewResultHandler(deps),
	}
}

// Register attaches all routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	route := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, MetricsMiddleware(h, endpoint))
	}

	route("GET /healthz", "healthz", s.health.HandleHealth)
	route("GET /stats", "stats", s.stats.HandleStats)

	route("POST /members", "members", s.members.HandleRegister)
	route("GET /characters/nickname/check", "nickname_check", s.members.HandleCheckNickname)

	route("POST /members/{memberID}/character", "character", s.character.HandleCreate)
	route("GET /members/{memberID}/character", "character", s.character.HandleGet)
	route("PUT /members/{memberID}/character/nickname", "character_nickname", s.character.HandleUpdateNickname)
	route("PUT /members/{memberID}/character/image", "character_image", s.character.HandleUpdateImage)
	route("POST /characters/{characterID}/experience", "experience", s.character.HandleAddExperience)

	route("GET /members/{memberID}/rankings", "rankings", s.rankings.HandleGetRankings)

	route("GET /items", "items", s.inventory.HandleListItems)
	route("GET /members/{memberID}/inventory", "inventory", s.inventory.HandleList)
	route("POST /members/{memberID}/inventory", "inventory", s.inventory.HandleAdd)
	route("PUT /members/{memberID}/inventory/{inventoryID}/equip", "inventory_equip", s.inventory.HandleEquip)
	route("POST /members/{memberID}/inventory/sell", "inventory_sell", s.inventory.HandleSell)

	route("POST /game-results", "game_results", s.results.HandleSubmit)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes err as {code, message}. Server errors are logged and
// their details are not sent to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logger.Get().Error(r.Context(), "request failed",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.String("code", code),
			logger.Error(err),
		)
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %w", ErrBadRequest, err)
	}
	return nil
}

// pathID parses a positive integer path value.
func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", ErrBadRequest, name, raw)
	}
	return id, nil
}
