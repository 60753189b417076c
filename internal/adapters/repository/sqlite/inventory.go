package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/rocatrun/internal/adapters/repository"
	"github.com/okian/rocatrun/internal/domain/model"
)

const inventoryColumns = `inv.id, inv.character_id, inv.equipped, inv.acquired_at, it.id, it.name, it.type, it.price`

func scanInventoryItem(r rowScanner) (model.InventoryItem, error) {
	var (
		i          model.InventoryItem
		acquiredAt int64
	)
	if err := r.Scan(&i.ID, &i.CharacterID, &i.Equipped, &acquiredAt, &i.Item.ID, &i.Item.Name, &i.Item.Type, &i.Item.Price); err != nil {
		return model.InventoryItem{}, err
	}
	i.AcquiredAt = fromMillis(acquiredAt)
	return i, nil
}

func inventoryItem(ctx context.Context, q querier, characterID, inventoryID int64) (model.InventoryItem, error) {
	i, err := scanInventoryItem(q.QueryRowContext(ctx,
		`SELECT `+inventoryColumns+`
		   FROM inventories inv JOIN items it ON it.id = inv.item_id
		  WHERE inv.id = ? AND inv.character_id = ?`,
		inventoryID, characterID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return model.InventoryItem{}, repository.ErrInventoryNotFound
	}
	if err != nil {
		return model.InventoryItem{}, fmt.Errorf("get inventory item: %w", err)
	}
	return i, nil
}

// Items returns the item catalog.
func (s *Store) Items(ctx context.Context) (out []model.Item, err error) {
	defer observe("list_items", time.Now(), &err)

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, type, price FROM items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it model.Item
		if err := rows.Scan(&it.ID, &it.Name, &it.Type, &it.Price); err != nil {
			return nil, fmt.Errorf("list items: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return out, nil
}

// Inventory returns the items owned by a character, oldest first.
func (s *Store) Inventory(ctx context.Context, characterID int64) (out []model.InventoryItem, err error) {
	defer observe("list_inventory", time.Now(), &err)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+inventoryColumns+`
		   FROM inventories inv JOIN items it ON it.id = inv.item_id
		  WHERE inv.character_id = ?
		  ORDER BY inv.id`,
		characterID,
	)
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	defer rows.Close()

	out = []model.InventoryItem{}
	for rows.Next() {
		i, err := scanInventoryItem(rows)
		if err != nil {
			return nil, fmt.Errorf("list inventory: %w", err)
		}
		out = append(out, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	return out, nil
}

// AddInventoryItem gives one copy of a catalog item to a character.
func (s *Store) AddInventoryItem(ctx context.Context, characterID, itemID int64) (i model.InventoryItem, err error) {
	defer observe("add_inventory_item", time.Now(), &err)

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := characterByID(ctx, tx, characterID); err != nil {
			return err
		}
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM items WHERE id = ?)`, itemID).Scan(&exists); err != nil {
			return fmt.Errorf("check item: %w", err)
		}
		if !exists {
			return repository.ErrItemNotFound
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO inventories (character_id, item_id, equipped, acquired_at) VALUES (?, ?, 0, ?)`,
			characterID, itemID, toMillis(time.Now()),
		)
		if err != nil {
			return fmt.Errorf("insert inventory item: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("insert inventory item: %w", err)
		}
		i, err = inventoryItem(ctx, tx, characterID, id)
		return err
	})
	if err != nil {
		return model.InventoryItem{}, err
	}
	return i, nil
}

// SetEquipped marks an owned item as equipped or not.
func (s *Store) SetEquipped(ctx context.Context, characterID, inventoryID int64, equipped bool) (i model.InventoryItem, err error) {
	defer observe("set_equipped", time.Now(), &err)

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE inventories SET equipped = ? WHERE id = ? AND character_id = ?`,
			equipped, inventoryID, characterID,
		)
		if err != nil {
			return fmt.Errorf("set equipped: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return repository.ErrInventoryNotFound
		}
		i, err = inventoryItem(ctx, tx, characterID, inventoryID)
		return err
	})
	if err != nil {
		return model.InventoryItem{}, err
	}
	return i, nil
}

// SellItems deletes the given items and credits their summed price. Every id
// must be owned by the character and unequipped, and totalPrice must equal
// the sum of the item prices.
func (s *Store) SellItems(ctx context.Context, characterID int64, inventoryIDs []int64, totalPrice int) (coin int, err error) {
	defer observe("sell_items", time.Now(), &err)

	if len(inventoryIDs) == 0 {
		return 0, fmt.Errorf("%w: no items to sell", repository.ErrInventoryNotFound)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(inventoryIDs)), ",")
	args := make([]any, 0, len(inventoryIDs)+1)
	args = append(args, characterID)
	for _, id := range inventoryIDs {
		args = append(args, id)
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var (
			found, equipped int
			sum             sql.NullInt64
		)
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*), COALESCE(SUM(inv.equipped), 0), SUM(it.price)
			   FROM inventories inv JOIN items it ON it.id = inv.item_id
			  WHERE inv.character_id = ? AND inv.id IN (`+placeholders+`)`,
			args...,
		).Scan(&found, &equipped, &sum)
		if err != nil {
			return fmt.Errorf("load items to sell: %w", err)
		}
		switch {
		case found != len(inventoryIDs):
			return repository.ErrInventoryNotFound
		case equipped > 0:
			return repository.ErrItemEquipped
		case int(sum.Int64) != totalPrice:
			return fmt.Errorf("%w: expected %d, got %d", repository.ErrPriceMismatch, sum.Int64, totalPrice)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM inventories WHERE character_id = ? AND id IN (`+placeholders+`)`, args...,
		); err != nil {
			return fmt.Errorf("delete sold items: %w", err)
		}
		if err := tx.QueryRowContext(ctx,
			`UPDATE characters SET coin = coin + ?, updated_at = ? WHERE id = ? RETURNING coin`,
			totalPrice, toMillis(time.Now()), characterID,
		).Scan(&coin); err != nil {
			return fmt.Errorf("credit coins: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return coin, nil
}
