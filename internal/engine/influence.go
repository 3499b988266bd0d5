package engine

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/lazypower/psyche/internal/store"
)

// Object influence weighting.
//
//	weight     = baseWeight × attunement × methodMultiplier
//	attunement = min(1, 0.5 × hoursOwned/24) + min(0.5, 0.1 × interactions)
//
// Time attunement saturates at 48h and interaction attunement at 5
// interactions, so attunement lies in [0, 1.5] without further clamping.
const (
	baseWeight                = 1.0
	timeAttunementPerDay      = 0.5
	maxTimeAttunement         = 1.0
	interactionAttunementStep = 0.1
	maxInteractionAttunement  = 0.5
	defaultMethodMultiplier   = 0.5
)

var methodMultipliers = map[string]float64{
	"gift":      1.0,
	"created":   0.9,
	"stolen":    0.8,
	"inherited": 0.8,
	"traded":    0.7,
	"conjured":  0.7,
	"found":     0.6,
	"purchased": 0.5,
}

// MethodMultiplier returns the weight multiplier for an acquisition method.
// Unknown methods get the purchased rate.
func MethodMultiplier(method string) float64 {
	if m, ok := methodMultipliers[strings.ToLower(strings.TrimSpace(method))]; ok {
		return m
	}
	return defaultMethodMultiplier
}

// Attunement is the bond strength to an owned object.
func Attunement(hoursOwned float64, interactions int) float64 {
	hoursOwned = math.Max(0, hoursOwned)
	interactions = max(0, interactions)

	timeAtt := math.Min(maxTimeAttunement, timeAttunementPerDay*hoursOwned/24)
	interactionAtt := math.Min(maxInteractionAttunement, interactionAttunementStep*float64(interactions))
	return timeAtt + interactionAtt
}

// ItemWeight returns the influence weight of an owned item at time now.
func ItemWeight(item store.InventoryItem, now time.Time) float64 {
	hours := now.Sub(time.UnixMilli(item.AcquiredAt)).Hours()
	return baseWeight * Attunement(hours, item.InteractionCount) * MethodMultiplier(item.AcquisitionMethod)
}

// AggregateInfluence computes the weighted-average PAD bias and per-domain
// weights of an inventory. It returns nil for an empty inventory.
func AggregateInfluence(characterID string, items []store.InventoryItem, now time.Time) *store.ObjectInfluence {
	if len(items) == 0 {
		return nil
	}

	var sum store.PAD
	var totalWeight float64
	domains := store.DomainWeights{}
	for _, item := range items {
		w := ItemWeight(item, now)
		sum.P += w * item.P
		sum.A += w * item.A
		sum.D += w * item.D
		totalWeight += math.Abs(w)

		if item.LinkedDomainID != nil && *item.LinkedDomainID != "" {
			domains[*item.LinkedDomainID] += w
		}
	}
	for k, v := range domains {
		domains[k] = round(v, 3)
	}

	oi := &store.ObjectInfluence{
		CharacterID:   characterID,
		TotalWeight:   round(totalWeight, 3),
		DomainWeights: domains,
		ComputedAt:    now.UnixMilli(),
	}
	if totalWeight == 0 {
		return oi
	}
	oi.PAD = store.PAD{
		P: round(sum.P/totalWeight, 2),
		A: round(sum.A/totalWeight, 2),
		D: round(sum.D/totalWeight, 2),
	}
	return oi
}

// ComputeObjectInfluence recomputes a character's object influence from its
// inventory and stores it. An empty inventory deletes any stored influence
// and returns nil. Call whenever the inventory changes.
func (e *Engine) ComputeObjectInfluence(ctx context.Context, characterID string) (*store.ObjectInfluence, error) {
	if characterID == "" {
		return nil, fmt.Errorf("compute object influence: character id required")
	}

	var out *store.ObjectInfluence
	err := e.actors.do(ctx, characterID, func(ctx context.Context) error {
		items, err := retry(ctx, e.cfg, func(ctx context.Context) ([]store.InventoryItem, error) {
			return e.Repo.GetInventory(ctx, characterID)
		})
		if err != nil {
			return fmt.Errorf("load inventory: %w", err)
		}

		out = AggregateInfluence(characterID, items, e.now())
		if out == nil {
			return retryDo(ctx, e.cfg, func(ctx context.Context) error {
				return e.Repo.DeleteInfluence(ctx, characterID)
			})
		}
		return retryDo(ctx, e.cfg, func(ctx context.Context) error {
			return e.Repo.UpsertInfluence(ctx, out)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("compute object influence %s: %w", characterID, err)
	}
	return out, nil
}
