package service

import (
	"context"
	"fmt"

	"github.com/okian/rocatrun/internal/domain/model"
	"github.com/okian/rocatrun/internal/domain/types"
	"github.com/okian/rocatrun/pkg/logger"
	"github.com/okian/rocatrun/pkg/metrics"
)

// Items returns the item catalog.
func (s *Service) Items(ctx context.Context) ([]model.Item, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.store.Items(ctx)
}

// ListInventory returns the items owned by the member's character.
func (s *Service) ListInventory(ctx context.Context, memberID int64) ([]model.InventoryItem, error) {
	c, err := s.GetCharacterByMemberID(ctx, memberID)
	if err != nil {
		return nil, err
	}
	return s.store.Inventory(ctx, c.ID)
}

// AddItem gives one catalog item to the member's character.
func (s *Service) AddItem(ctx context.Context, memberID, itemID int64) (model.InventoryItem, error) {
	if itemID <= 0 {
		return model.InventoryItem{}, fmt.Errorf("%w: missing item_id", ErrBadRequest)
	}
	c, err := s.GetCharacterByMemberID(ctx, memberID)
	if err != nil {
		return model.InventoryItem{}, err
	}
	return s.store.AddInventoryItem(ctx, c.ID, itemID)
}

// EquipItem sets whether an owned item is equipped.
func (s *Service) EquipItem(ctx context.Context, memberID, inventoryID int64, equipped bool) (model.InventoryItem, error) {
	c, err := s.GetCharacterByMemberID(ctx, memberID)
	if err != nil {
		return model.InventoryItem{}, err
	}
	return s.store.SetEquipped(ctx, c.ID, inventoryID, equipped)
}

// SellItems sells owned, unequipped items for coins. The request total must
// match the item prices.
func (s *Service) SellItems(ctx context.Context, memberID int64, req types.InventorySellRequest) (types.InventorySellResponse, error) {
	if err := req.Validate(); err != nil {
		return types.InventorySellResponse{}, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	c, err := s.GetCharacterByMemberID(ctx, memberID)
	if err != nil {
		return types.InventorySellResponse{}, err
	}

	coin, err := s.store.SellItems(ctx, c.ID, req.InventoryIDs, req.TotalPrice)
	if err != nil {
		return types.InventorySellResponse{}, err
	}

	metrics.RecordInventorySale(len(req.InventoryIDs), req.TotalPrice)
	s.logger.Info(ctx, "inventory items sold",
		logger.Int64("character_id", c.ID),
		logger.Int("items", len(req.InventoryIDs)),
		logger.Int("total_price", req.TotalPrice),
	)
	return types.InventorySellResponse{SoldCount: len(req.InventoryIDs), Coin: coin}, nil
}
