package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lazypower/psyche/internal/store"
)

// PassStats reports what one scheduled pass did.
type PassStats struct {
	Influences int           `json:"influences"`
	Spreads    int           `json:"spreads"`
	Failures   int           `json:"failures"`
	Duration   time.Duration `json:"duration"`
}

// RunPass is the scheduled housekeeping pass. It recomputes object influence
// for every character that has (or had) an inventory, since attunement grows
// with time, then runs SpreadEmotion from every character with a current
// mood. Characters are processed independently with bounded concurrency; a
// failed character is logged and counted, never rolled back, and picked up
// again on the next pass.
func (e *Engine) RunPass(ctx context.Context) (PassStats, error) {
	start := e.now()
	var stats PassStats
	var mu sync.Mutex
	var errs []error

	fail := func(stage, id string, err error) {
		mu.Lock()
		defer mu.Unlock()
		stats.Failures++
		errs = append(errs, fmt.Errorf("%s %s: %w", stage, id, err))
		log.Printf("pass: %s %s: %v", stage, id, err)
	}

	subjects, err := retry(ctx, e.cfg, func(ctx context.Context) ([]string, error) {
		return e.Repo.InfluenceSubjects(ctx)
	})
	if err != nil {
		return stats, fmt.Errorf("pass: list influence subjects: %w", err)
	}

	var g errgroup.Group
	g.SetLimit(e.cfg.PassWorkers)
	for _, id := range subjects {
		g.Go(func() error {
			if _, err := e.ComputeObjectInfluence(ctx, id); err != nil {
				fail("influence", id, err)
				return nil
			}
			mu.Lock()
			stats.Influences++
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	moods, err := retry(ctx, e.cfg, func(ctx context.Context) ([]store.MoodState, error) {
		return e.Repo.ListMoods(ctx)
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("pass: list moods: %w", err))
		stats.Duration = e.now().Sub(start)
		return stats, errors.Join(errs...)
	}

	for _, m := range moods {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			if _, err := e.SpreadEmotion(ctx, m.CharacterID); err != nil {
				fail("spread", m.CharacterID, err)
				return nil
			}
			mu.Lock()
			stats.Spreads++
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	stats.Duration = e.now().Sub(start)
	return stats, errors.Join(errs...)
}
