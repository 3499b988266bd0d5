package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/lazypower/psyche/internal/store"
)

// Contagion constants. A neighbor only responds when
// intensity × resonance × ContagionStrength × ContagionDecay exceeds
// ContagionThreshold.
const (
	ContagionStrength  = 0.3
	ContagionDecay     = 0.5
	ContagionThreshold = 0.05
)

// Convergence constants for SpreadEmotion.
const (
	SpreadMaxDistance    = 0.5
	SpreadInfluenceScale = 0.2
)

// Event types understood by PropagateEmotion. Anything else propagates
// (frames and events are still written) but applies no delta.
const (
	EventTrauma = "trauma"
	EventThreat = "threat"
	EventJoy    = "joy"
)

// ContagionIntensity is the intensity that reaches a neighbor across an edge.
func ContagionIntensity(intensity, resonance float64) float64 {
	return intensity * resonance * ContagionStrength * ContagionDecay
}

// EventDelta returns the PAD change an event type causes at a given intensity.
func EventDelta(eventType string, intensity float64) store.PAD {
	switch eventType {
	case EventTrauma:
		return store.PAD{P: -0.2 * intensity, A: 0.2 * intensity}
	case EventThreat:
		return store.PAD{A: 0.3 * intensity}
	case EventJoy:
		return store.PAD{P: 0.3 * intensity}
	default:
		return store.PAD{}
	}
}

// Response is one neighbor's sympathetic reaction to a propagated event.
type Response struct {
	CharacterID string                `json:"character_id"`
	Intensity   float64               `json:"intensity"`
	Frame       *store.MoodFrame      `json:"frame"`
	Event       *store.EmotionalEvent `json:"event"`
}

// PropagationResult summarizes a PropagateEmotion call.
type PropagationResult struct {
	Source    string     `json:"source"`
	EventType string     `json:"event_type"`
	Responses []Response `json:"responses"`
	// BelowThreshold lists neighbors the event did not reach.
	BelowThreshold []string `json:"below_threshold"`
	// NoHistory lists neighbors skipped because they have no frame yet.
	NoHistory []string `json:"no_history"`
}

type influenceData struct {
	Source    string    `json:"source"`
	Intensity float64   `json:"intensity"`
	Resonance float64   `json:"resonance"`
	Delta     store.PAD `json:"delta"`
}

// PropagateEmotion distributes an event felt by sourceID to every adjacent
// character. Neighbors are processed independently: a failure on one is
// reported in the joined error while the others still update.
func (e *Engine) PropagateEmotion(ctx context.Context, sourceID, eventType string, intensity float64) (*PropagationResult, error) {
	neighbors, err := retry(ctx, e.cfg, func(ctx context.Context) ([]store.Neighbor, error) {
		return e.Repo.Neighbors(ctx, sourceID)
	})
	if err != nil {
		return nil, fmt.Errorf("propagate %s from %s: %w", eventType, sourceID, err)
	}

	result := &PropagationResult{Source: sourceID, EventType: eventType}
	var errs []error
	for _, n := range neighbors {
		ci := ContagionIntensity(intensity, n.Resonance)
		if ci <= ContagionThreshold {
			result.BelowThreshold = append(result.BelowThreshold, n.CharacterID)
			continue
		}

		resp, err := e.applySympatheticResponse(ctx, sourceID, n, eventType, ci)
		if err != nil {
			log.Printf("contagion: %s -> %s: %v", sourceID, n.CharacterID, err)
			errs = append(errs, fmt.Errorf("%s: %w", n.CharacterID, err))
			continue
		}
		if resp == nil {
			result.NoHistory = append(result.NoHistory, n.CharacterID)
			continue
		}
		result.Responses = append(result.Responses, *resp)
	}

	if err := errors.Join(errs...); err != nil {
		return result, fmt.Errorf("propagate %s from %s: %w", eventType, sourceID, err)
	}
	return result, nil
}

// applySympatheticResponse appends a new frame for the neighbor with the
// event delta applied to its latest frame, and logs the event against it.
// A neighbor with no frame yet is skipped and nil is returned.
func (e *Engine) applySympatheticResponse(ctx context.Context, sourceID string, n store.Neighbor, eventType string, intensity float64) (*Response, error) {
	var resp *Response
	err := e.actors.do(ctx, n.CharacterID, func(ctx context.Context) error {
		latest, err := retry(ctx, e.cfg, func(ctx context.Context) (*store.MoodFrame, error) {
			return e.Repo.LatestFrame(ctx, n.CharacterID)
		})
		if err != nil {
			return fmt.Errorf("latest frame: %w", err)
		}
		if latest == nil {
			return nil
		}

		delta := EventDelta(eventType, intensity)
		frame := &store.MoodFrame{
			CharacterID: n.CharacterID,
			PAD: ClampPAD(store.PAD{
				P: latest.P + delta.P,
				A: latest.A + delta.A,
				D: latest.D + delta.D,
			}),
			CreatedAt: e.now().UnixMilli(),
		}
		if err := retryDo(ctx, e.cfg, func(ctx context.Context) error {
			return e.Repo.AppendFrame(ctx, frame)
		}); err != nil {
			return fmt.Errorf("append frame: %w", err)
		}

		data, err := json.Marshal(influenceData{
			Source:    sourceID,
			Intensity: intensity,
			Resonance: n.Resonance,
			Delta:     delta,
		})
		if err != nil {
			return fmt.Errorf("encode influence data: %w", err)
		}
		ev := &store.EmotionalEvent{
			FrameID:         frame.FrameID,
			EventType:       eventType,
			TargetCharacter: n.CharacterID,
			InfluenceData:   data,
			CreatedAt:       frame.CreatedAt,
		}
		if err := retryDo(ctx, e.cfg, func(ctx context.Context) error {
			return e.Repo.LogEvent(ctx, ev)
		}); err != nil {
			return fmt.Errorf("log event: %w", err)
		}

		resp = &Response{CharacterID: n.CharacterID, Intensity: intensity, Frame: frame, Event: ev}
		return nil
	})
	return resp, err
}

// SpreadResult summarizes a SpreadEmotion call.
type SpreadResult struct {
	Source  string            `json:"source"`
	Updated []store.MoodState `json:"updated"`
}

// SpreadEmotion pulls the current mood of each close neighbor (distance
// below SpreadMaxDistance) toward the source's current mood:
//
//	new = old + (source − old) × distance × SpreadInfluenceScale
//
// It only touches current mood, never frames. Neighbors without a current
// mood are left alone, as is everyone when the source has none.
func (e *Engine) SpreadEmotion(ctx context.Context, sourceID string) (*SpreadResult, error) {
	src, err := e.CurrentMood(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("spread from %s: %w", sourceID, err)
	}
	result := &SpreadResult{Source: sourceID}
	if src == nil {
		return result, nil
	}

	neighbors, err := retry(ctx, e.cfg, func(ctx context.Context) ([]store.Neighbor, error) {
		return e.Repo.Neighbors(ctx, sourceID)
	})
	if err != nil {
		return nil, fmt.Errorf("spread from %s: %w", sourceID, err)
	}

	var errs []error
	for _, n := range neighbors {
		if n.Distance >= SpreadMaxDistance {
			continue
		}
		influence := n.Distance * SpreadInfluenceScale

		var updated *store.MoodState
		err := e.actors.do(ctx, n.CharacterID, func(ctx context.Context) error {
			cur, err := retry(ctx, e.cfg, func(ctx context.Context) (*store.MoodState, error) {
				return e.Repo.GetMood(ctx, n.CharacterID)
			})
			if err != nil || cur == nil {
				return err
			}
			next := store.MoodState{
				CharacterID: n.CharacterID,
				PAD: ClampPAD(store.PAD{
					P: cur.P + (src.P-cur.P)*influence,
					A: cur.A + (src.A-cur.A)*influence,
					D: cur.D + (src.D-cur.D)*influence,
				}),
			}
			updated, err = retry(ctx, e.cfg, func(ctx context.Context) (*store.MoodState, error) {
				return e.Repo.UpsertMood(ctx, next)
			})
			return err
		})
		if err != nil {
			log.Printf("spread: %s -> %s: %v", sourceID, n.CharacterID, err)
			errs = append(errs, fmt.Errorf("%s: %w", n.CharacterID, err))
			continue
		}
		if updated != nil {
			result.Updated = append(result.Updated, *updated)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return result, fmt.Errorf("spread from %s: %w", sourceID, err)
	}
	return result, nil
}
