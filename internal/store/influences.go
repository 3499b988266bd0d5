package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// DomainWeights maps a linked domain to the summed weight of items bound to it.
type DomainWeights map[string]float64

// Value implements driver.Valuer, storing the map as JSON text.
func (w DomainWeights) Value() (driver.Value, error) {
	if w == nil {
		return "{}", nil
	}
	data, err := json.Marshal(map[string]float64(w))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (w *DomainWeights) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*w = DomainWeights{}
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("scan domain weights: unsupported type %T", src)
	}
	m := map[string]float64{}
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("scan domain weights: %w", err)
	}
	*w = m
	return nil
}

// ObjectInfluence is the affective bias a character's inventory exerts.
// Recomputed in full on every inventory change.
type ObjectInfluence struct {
	CharacterID string `db:"character_id" json:"character_id"`
	PAD
	TotalWeight   float64       `db:"total_weight" json:"total_weight"`
	DomainWeights DomainWeights `db:"domain_weights" json:"domain_weights"`
	ComputedAt    int64         `db:"computed_at" json:"computed_at"`
}

// GetInfluence returns the stored influence for a character, or nil.
func (db *DB) GetInfluence(ctx context.Context, characterID string) (*ObjectInfluence, error) {
	var oi ObjectInfluence
	err := db.GetContext(ctx, &oi, `
		SELECT character_id, p, a, d, total_weight, domain_weights, computed_at
		FROM object_influences WHERE character_id = ?
	`, characterID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get influence: %w", err)
	}
	return &oi, nil
}

// UpsertInfluence replaces the influence row for oi.CharacterID.
func (db *DB) UpsertInfluence(ctx context.Context, oi *ObjectInfluence) error {
	if oi.CharacterID == "" {
		return fmt.Errorf("upsert influence: character_id required")
	}
	_, err := db.NamedExecContext(ctx, `
		INSERT INTO object_influences (character_id, p, a, d, total_weight, domain_weights, computed_at)
		VALUES (:character_id, :p, :a, :d, :total_weight, :domain_weights, :computed_at)
		ON CONFLICT(character_id) DO UPDATE SET
			p = excluded.p,
			a = excluded.a,
			d = excluded.d,
			total_weight = excluded.total_weight,
			domain_weights = excluded.domain_weights,
			computed_at = excluded.computed_at
	`, oi)
	if err != nil {
		return fmt.Errorf("upsert influence: %w", err)
	}
	return nil
}

// DeleteInfluence removes the influence row for a character. Deleting a
// missing row is not an error.
func (db *DB) DeleteInfluence(ctx context.Context, characterID string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM object_influences WHERE character_id = ?`, characterID); err != nil {
		return fmt.Errorf("delete influence: %w", err)
	}
	return nil
}
