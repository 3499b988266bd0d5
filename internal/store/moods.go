package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// PAD is a Pleasure-Arousal-Dominance vector.
type PAD struct {
	P float64 `db:"p" json:"p"`
	A float64 `db:"a" json:"a"`
	D float64 `db:"d" json:"d"`
}

// MoodState is the current mood of a character. Exactly one row per character.
type MoodState struct {
	CharacterID string `db:"character_id" json:"character_id"`
	PAD
	SampleCount int   `db:"sample_count" json:"sample_count"`
	UpdatedAt   int64 `db:"updated_at" json:"updated_at"`
}

// MoodFrame is an immutable mood snapshot in a character's history.
type MoodFrame struct {
	FrameID     string `db:"frame_id" json:"frame_id"`
	CharacterID string `db:"character_id" json:"character_id"`
	PAD
	CreatedAt int64 `db:"created_at" json:"timestamp"`
}

// GetMood returns the current mood for a character, or nil if none was ever written.
func (db *DB) GetMood(ctx context.Context, characterID string) (*MoodState, error) {
	var m MoodState
	err := db.GetContext(ctx, &m, `
		SELECT character_id, p, a, d, sample_count, updated_at
		FROM mood_states WHERE character_id = ?
	`, characterID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get mood: %w", err)
	}
	return &m, nil
}

// UpsertMood writes the current mood row for m.CharacterID. On conflict the
// values are replaced and sample_count is incremented. The stored row comes
// back from the same statement, so a caller that retries never counts a
// sample twice on a failed follow-up read.
func (db *DB) UpsertMood(ctx context.Context, m MoodState) (*MoodState, error) {
	if m.CharacterID == "" {
		return nil, fmt.Errorf("upsert mood: character_id required")
	}
	m.UpdatedAt = time.Now().UnixMilli()

	query, args, err := sqlx.Named(`
		INSERT INTO mood_states (character_id, p, a, d, sample_count, updated_at)
		VALUES (:character_id, :p, :a, :d, 1, :updated_at)
		ON CONFLICT(character_id) DO UPDATE SET
			p = excluded.p,
			a = excluded.a,
			d = excluded.d,
			sample_count = mood_states.sample_count + 1,
			updated_at = excluded.updated_at
		RETURNING character_id, p, a, d, sample_count, updated_at
	`, m)
	if err != nil {
		return nil, fmt.Errorf("upsert mood: %w", err)
	}

	var stored MoodState
	if err := db.GetContext(ctx, &stored, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("upsert mood: %w", err)
	}
	return &stored, nil
}

// ListMoods returns every current mood row, ordered by character.
func (db *DB) ListMoods(ctx context.Context) ([]MoodState, error) {
	var moods []MoodState
	if err := db.SelectContext(ctx, &moods, `
		SELECT character_id, p, a, d, sample_count, updated_at
		FROM mood_states ORDER BY character_id
	`); err != nil {
		return nil, fmt.Errorf("list moods: %w", err)
	}
	return moods, nil
}

// AppendFrame inserts a new frame. FrameID and CreatedAt are filled in when
// empty. Frames are never updated once written.
func (db *DB) AppendFrame(ctx context.Context, f *MoodFrame) error {
	if f.CharacterID == "" {
		return fmt.Errorf("append frame: character_id required")
	}
	if f.FrameID == "" {
		f.FrameID = uuid.NewString()
	}
	if f.CreatedAt == 0 {
		f.CreatedAt = time.Now().UnixMilli()
	}

	_, err := db.NamedExecContext(ctx, `
		INSERT INTO mood_frames (frame_id, character_id, p, a, d, created_at, seq)
		VALUES (:frame_id, :character_id, :p, :a, :d, :created_at,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM mood_frames WHERE character_id = :character_id))
	`, f)
	if err != nil {
		return fmt.Errorf("append frame: %w", err)
	}
	return nil
}

// LatestFrame returns the most recent frame for a character, or nil if the
// character has no history.
func (db *DB) LatestFrame(ctx context.Context, characterID string) (*MoodFrame, error) {
	var f MoodFrame
	err := db.GetContext(ctx, &f, `
		SELECT frame_id, character_id, p, a, d, created_at
		FROM mood_frames WHERE character_id = ?
		ORDER BY created_at DESC, seq DESC LIMIT 1
	`, characterID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest frame: %w", err)
	}
	return &f, nil
}

// FrameHistory returns up to limit frames for a character, newest first.
func (db *DB) FrameHistory(ctx context.Context, characterID string, limit int) ([]MoodFrame, error) {
	if limit <= 0 {
		limit = 50
	}
	var frames []MoodFrame
	if err := db.SelectContext(ctx, &frames, `
		SELECT frame_id, character_id, p, a, d, created_at
		FROM mood_frames WHERE character_id = ?
		ORDER BY created_at DESC, seq DESC LIMIT ?
	`, characterID, limit); err != nil {
		return nil, fmt.Errorf("frame history: %w", err)
	}
	return frames, nil
}
