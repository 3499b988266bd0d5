package store

import (
	"context"
	"fmt"
)

// ProximityEdge is an undirected weighted edge between two characters.
type ProximityEdge struct {
	CharacterA            string  `db:"character_a" json:"character_a"`
	CharacterB            string  `db:"character_b" json:"character_b"`
	PsychologicalDistance float64 `db:"psychological_distance" json:"psychological_distance"`
	EmotionalResonance    float64 `db:"emotional_resonance" json:"emotional_resonance"`
}

// Neighbor is one side of a ProximityEdge seen from a given character.
type Neighbor struct {
	CharacterID string  `db:"neighbor" json:"character_id"`
	Distance    float64 `db:"psychological_distance" json:"psychological_distance"`
	Resonance   float64 `db:"emotional_resonance" json:"emotional_resonance"`
}

// PutEdge creates or replaces the edge between two characters. The pair is
// stored in lexicographic order so (a,b) and (b,a) address the same row.
func (db *DB) PutEdge(ctx context.Context, e ProximityEdge) error {
	if e.CharacterA == "" || e.CharacterB == "" {
		return fmt.Errorf("put edge: both characters required")
	}
	if e.CharacterA == e.CharacterB {
		return fmt.Errorf("put edge: self-edge for %s", e.CharacterA)
	}
	if e.CharacterB < e.CharacterA {
		e.CharacterA, e.CharacterB = e.CharacterB, e.CharacterA
	}
	_, err := db.NamedExecContext(ctx, `
		INSERT INTO proximity_edges (character_a, character_b, psychological_distance, emotional_resonance)
		VALUES (:character_a, :character_b, :psychological_distance, :emotional_resonance)
		ON CONFLICT(character_a, character_b) DO UPDATE SET
			psychological_distance = excluded.psychological_distance,
			emotional_resonance = excluded.emotional_resonance
	`, e)
	if err != nil {
		return fmt.Errorf("put edge: %w", err)
	}
	return nil
}

// Neighbors returns every character adjacent to characterID, regardless of
// which column the edge stores it in. Self-edges are excluded. Edges written
// by other tools in both orientations collapse to the first one found.
func (db *DB) Neighbors(ctx context.Context, characterID string) ([]Neighbor, error) {
	var rows []Neighbor
	if err := db.SelectContext(ctx, &rows, `
		SELECT character_b AS neighbor, psychological_distance, emotional_resonance
		FROM proximity_edges WHERE character_a = ? AND character_b <> ?
		UNION ALL
		SELECT character_a AS neighbor, psychological_distance, emotional_resonance
		FROM proximity_edges WHERE character_b = ? AND character_a <> ?
		ORDER BY neighbor
	`, characterID, characterID, characterID, characterID); err != nil {
		return nil, fmt.Errorf("neighbors: %w", err)
	}

	seen := make(map[string]bool, len(rows))
	out := rows[:0]
	for _, n := range rows {
		if seen[n.CharacterID] {
			continue
		}
		seen[n.CharacterID] = true
		out = append(out, n)
	}
	return out, nil
}
