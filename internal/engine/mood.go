package engine

import (
	"context"
	"fmt"
	"math"

	"github.com/lazypower/psyche/internal/store"
)

// minSmoothing is the floor of the smoother's blend factor. Early samples are
// averaged; once sample_count passes 9 the current mood behaves like an EMA.
const minSmoothing = 0.1

// Clamp bounds v to the PAD range [-1, 1].
func Clamp(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}

// ClampPAD bounds every dimension of p to [-1, 1].
func ClampPAD(p store.PAD) store.PAD {
	return store.PAD{P: Clamp(p.P), A: Clamp(p.A), D: Clamp(p.D)}
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

// smooth blends an observed sample into the current mood.
func smooth(cur *store.MoodState, sample store.PAD) store.PAD {
	if cur == nil {
		return ClampPAD(sample)
	}
	alpha := math.Max(1/float64(cur.SampleCount+1), minSmoothing)
	return ClampPAD(store.PAD{
		P: cur.P + alpha*(sample.P-cur.P),
		A: cur.A + alpha*(sample.A-cur.A),
		D: cur.D + alpha*(sample.D-cur.D),
	})
}

// RecordMood folds an observed mood sample into the character's current mood.
// This is the only writer of current mood besides SpreadEmotion.
func (e *Engine) RecordMood(ctx context.Context, characterID string, sample store.PAD) (*store.MoodState, error) {
	if characterID == "" {
		return nil, fmt.Errorf("record mood: character id required")
	}

	var out *store.MoodState
	err := e.actors.do(ctx, characterID, func(ctx context.Context) error {
		cur, err := retry(ctx, e.cfg, func(ctx context.Context) (*store.MoodState, error) {
			return e.Repo.GetMood(ctx, characterID)
		})
		if err != nil {
			return err
		}

		next := store.MoodState{CharacterID: characterID, PAD: smooth(cur, sample)}
		out, err = retry(ctx, e.cfg, func(ctx context.Context) (*store.MoodState, error) {
			return e.Repo.UpsertMood(ctx, next)
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("record mood %s: %w", characterID, err)
	}
	return out, nil
}

// RecordFrame appends a snapshot to a character's history, e.g. when a
// story beat resolves. Existing frames are never touched.
func (e *Engine) RecordFrame(ctx context.Context, characterID string, pad store.PAD) (*store.MoodFrame, error) {
	if characterID == "" {
		return nil, fmt.Errorf("record frame: character id required")
	}

	frame := &store.MoodFrame{
		CharacterID: characterID,
		PAD:         ClampPAD(pad),
	}
	err := e.actors.do(ctx, characterID, func(ctx context.Context) error {
		frame.CreatedAt = e.now().UnixMilli()
		return retryDo(ctx, e.cfg, func(ctx context.Context) error {
			return e.Repo.AppendFrame(ctx, frame)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("record frame %s: %w", characterID, err)
	}
	return frame, nil
}
