package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ObjectDef holds the PAD vector an object carries and the domain it is linked to.
type ObjectDef struct {
	ObjectID string `db:"object_id" json:"object_id"`
	Name     string `db:"name" json:"name"`
	PAD
	LinkedDomainID *string `db:"linked_domain_id" json:"linked_domain_id,omitempty"`
}

// InventoryItem is an owned object joined to its definition.
type InventoryItem struct {
	ID                int64  `db:"id" json:"id"`
	CharacterID       string `db:"character_id" json:"character_id"`
	ObjectID          string `db:"object_id" json:"object_id"`
	AcquiredAt        int64  `db:"acquired_at" json:"acquired_at"`
	AcquisitionMethod string `db:"acquisition_method" json:"acquisition_method"`
	InteractionCount  int    `db:"interaction_count" json:"interaction_count"`

	// From object_defs.
	PAD
	LinkedDomainID *string `db:"linked_domain_id" json:"linked_domain_id,omitempty"`
}

// PutObjectDef creates or replaces an object definition.
func (db *DB) PutObjectDef(ctx context.Context, def ObjectDef) error {
	if def.ObjectID == "" {
		return fmt.Errorf("put object def: object_id required")
	}
	_, err := db.NamedExecContext(ctx, `
		INSERT INTO object_defs (object_id, name, p, a, d, linked_domain_id)
		VALUES (:object_id, :name, :p, :a, :d, :linked_domain_id)
		ON CONFLICT(object_id) DO UPDATE SET
			name = excluded.name,
			p = excluded.p,
			a = excluded.a,
			d = excluded.d,
			linked_domain_id = excluded.linked_domain_id
	`, def)
	if err != nil {
		return fmt.Errorf("put object def: %w", err)
	}
	return nil
}

// GetObjectDef returns an object definition, or nil if unknown.
func (db *DB) GetObjectDef(ctx context.Context, objectID string) (*ObjectDef, error) {
	var def ObjectDef
	err := db.GetContext(ctx, &def, `
		SELECT object_id, name, p, a, d, linked_domain_id
		FROM object_defs WHERE object_id = ?
	`, objectID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get object def: %w", err)
	}
	return &def, nil
}

// AddInventoryItem gives objectID to a character. AcquiredAt defaults to now.
func (db *DB) AddInventoryItem(ctx context.Context, item *InventoryItem) error {
	if item.CharacterID == "" || item.ObjectID == "" {
		return fmt.Errorf("add inventory item: character_id and object_id required")
	}
	if item.AcquiredAt == 0 {
		item.AcquiredAt = time.Now().UnixMilli()
	}
	result, err := db.ExecContext(ctx, `
		INSERT INTO inventory (character_id, object_id, acquired_at, acquisition_method, interaction_count)
		VALUES (?, ?, ?, ?, ?)
	`, item.CharacterID, item.ObjectID, item.AcquiredAt, item.AcquisitionMethod, item.InteractionCount)
	if err != nil {
		return fmt.Errorf("add inventory item: %w", err)
	}
	item.ID, _ = result.LastInsertId()
	return nil
}

// RemoveInventoryItem deletes an owned item. Returns false if the character
// does not own an item with that id.
func (db *DB) RemoveInventoryItem(ctx context.Context, characterID string, itemID int64) (bool, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM inventory WHERE id = ? AND character_id = ?`, itemID, characterID)
	if err != nil {
		return false, fmt.Errorf("remove inventory item: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// TouchInventoryItem records one interaction with an owned item.
func (db *DB) TouchInventoryItem(ctx context.Context, characterID string, itemID int64) (bool, error) {
	result, err := db.ExecContext(ctx, `
		UPDATE inventory SET interaction_count = interaction_count + 1
		WHERE id = ? AND character_id = ?
	`, itemID, characterID)
	if err != nil {
		return false, fmt.Errorf("touch inventory item: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// GetInventory returns a character's owned items joined to their object
// definitions, oldest acquisition first.
func (db *DB) GetInventory(ctx context.Context, characterID string) ([]InventoryItem, error) {
	var items []InventoryItem
	if err := db.SelectContext(ctx, &items, `
		SELECT i.id, i.character_id, i.object_id, i.acquired_at, i.acquisition_method,
		       i.interaction_count, o.p, o.a, o.d, o.linked_domain_id
		FROM inventory i
		JOIN object_defs o ON o.object_id = i.object_id
		WHERE i.character_id = ?
		ORDER BY i.acquired_at, i.id
	`, characterID); err != nil {
		return nil, fmt.Errorf("get inventory: %w", err)
	}
	return items, nil
}

// InfluenceSubjects returns every character that owns an item or still has
// an influence row, i.e. every character whose bias may need recomputing.
func (db *DB) InfluenceSubjects(ctx context.Context) ([]string, error) {
	var ids []string
	if err := db.SelectContext(ctx, &ids, `
		SELECT character_id FROM inventory
		UNION
		SELECT character_id FROM object_influences
		ORDER BY 1
	`); err != nil {
		return nil, fmt.Errorf("influence subjects: %w", err)
	}
	return ids, nil
}
