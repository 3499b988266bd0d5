package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EmotionalEvent is the audit row written when a contagion delta lands on a character.
type EmotionalEvent struct {
	EventID         string          `db:"event_id" json:"event_id"`
	FrameID         string          `db:"frame_id" json:"frame_id"`
	EventType       string          `db:"event_type" json:"event_type"`
	TargetCharacter string          `db:"target_character" json:"target_character"`
	InfluenceData   json.RawMessage `db:"influence_data" json:"influence_data"`
	CreatedAt       int64           `db:"created_at" json:"created_at"`
}

// LogEvent inserts an event. EventID and CreatedAt are filled in when empty.
func (db *DB) LogEvent(ctx context.Context, ev *EmotionalEvent) error {
	if ev.FrameID == "" || ev.TargetCharacter == "" {
		return fmt.Errorf("log event: frame_id and target_character required")
	}
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	if ev.CreatedAt == 0 {
		ev.CreatedAt = time.Now().UnixMilli()
	}
	data := string(ev.InfluenceData)
	if data == "" {
		data = "{}"
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO emotional_events (event_id, frame_id, event_type, target_character, influence_data, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ev.EventID, ev.FrameID, ev.EventType, ev.TargetCharacter, data, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("log event: %w", err)
	}
	return nil
}

// ListEvents returns up to limit events targeting a character, newest first.
func (db *DB) ListEvents(ctx context.Context, characterID string, limit int) ([]EmotionalEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	var events []EmotionalEvent
	if err := db.SelectContext(ctx, &events, `
		SELECT event_id, frame_id, event_type, target_character,
		       CAST(influence_data AS BLOB) AS influence_data, created_at
		FROM emotional_events WHERE target_character = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, characterID, limit); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}
