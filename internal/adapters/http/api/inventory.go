package api

import (
	"net/http"

	"github.com/okian/rocatrun/internal/domain/model"
	"github.com/okian/rocatrun/internal/domain/types"
)

// InventoryHandler handles item and inventory requests.
type InventoryHandler struct {
	deps InventoryService
}

// NewInventoryHandler creates a new inventory handler.
func NewInventoryHandler(deps InventoryService) *InventoryHandler {
	return &InventoryHandler{deps: deps}
}

type itemResponse struct {
	ItemID int64  `json:"item_id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Price  int    `json:"price"`
}

type equipRequest struct {
	Equipped bool `json:"equipped"`
}

// HandleListItems handles GET /items.
func (h *InventoryHandler) HandleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.deps.Items(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]itemResponse, len(items))
	for i, it := range items {
		out[i] = itemResponse{ItemID: it.ID, Name: it.Name, Type: it.Type, Price: it.Price}
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleList handles GET /members/{memberID}/inventory.
func (h *InventoryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	memberID, err := pathID(r, "memberID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := h.deps.ListInventory(r.Context(), memberID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inventoryResponse(items))
}

// HandleAdd handles POST /members/{memberID}/inventory.
func (h *InventoryHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	memberID, err := pathID(r, "memberID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req types.AddItemRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	item, err := h.deps.AddItem(r.Context(), memberID, req.ItemID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, types.NewInventoryItemResponse(item))
}

// HandleEquip handles PUT /members/{memberID}/inventory/{inventoryID}/equip.
func (h *InventoryHandler) HandleEquip(w http.ResponseWriter, r *http.Request) {
	memberID, err := pathID(r, "memberID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	inventoryID, err := pathID(r, "inventoryID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req equipRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	item, err := h.deps.EquipItem(r.Context(), memberID, inventoryID, req.Equipped)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.NewInventoryItemResponse(item))
}

// HandleSell handles POST /members/{memberID}/inventory/sell.
func (h *InventoryHandler) HandleSell(w http.ResponseWriter, r *http.Request) {
	memberID, err := pathID(r, "memberID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req types.InventorySellRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := h.deps.SellItems(r.Context(), memberID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func inventoryResponse(items []model.InventoryItem) []types.InventoryItemResponse {
	out := make([]types.InventoryItemResponse, len(items))
	for i, it := range items {
		out[i] = types.NewInventoryItemResponse(it)
	}
	return out
}
