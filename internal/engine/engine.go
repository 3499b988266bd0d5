package engine

import (
	"context"
	"time"

	"github.com/lazypower/psyche/internal/config"
	"github.com/lazypower/psyche/internal/store"
)

// MoodRepository is the single access path to the three views of affect:
// current mood (upserted), frame history (appended) and object bias
// (upserted or deleted). Callers never touch storage directly.
type MoodRepository interface {
	GetMood(ctx context.Context, characterID string) (*store.MoodState, error)
	UpsertMood(ctx context.Context, m store.MoodState) (*store.MoodState, error)
	ListMoods(ctx context.Context) ([]store.MoodState, error)

	LatestFrame(ctx context.Context, characterID string) (*store.MoodFrame, error)
	FrameHistory(ctx context.Context, characterID string, limit int) ([]store.MoodFrame, error)
	AppendFrame(ctx context.Context, f *store.MoodFrame) error
	LogEvent(ctx context.Context, ev *store.EmotionalEvent) error

	GetInfluence(ctx context.Context, characterID string) (*store.ObjectInfluence, error)
	UpsertInfluence(ctx context.Context, oi *store.ObjectInfluence) error
	DeleteInfluence(ctx context.Context, characterID string) error
}

// InventorySource reads owned items joined with their object definitions.
type InventorySource interface {
	GetInventory(ctx context.Context, characterID string) ([]store.InventoryItem, error)
	InfluenceSubjects(ctx context.Context) ([]string, error)
}

// ProximityGraph reads the undirected character relationship graph.
type ProximityGraph interface {
	Neighbors(ctx context.Context, characterID string) ([]store.Neighbor, error)
}

// Repository is everything the engine reads and writes. *store.DB satisfies it.
type Repository interface {
	MoodRepository
	InventorySource
	ProximityGraph
}

// Engine computes object influence, propagates emotional contagion and runs
// the scheduled housekeeping pass. Every mutation of a character's affect is
// serialized through that character's mailbox.
type Engine struct {
	Repo   Repository
	cfg    config.EngineConfig
	now    func() time.Time
	actors *actors
}

// New creates a new Engine.
func New(repo Repository, cfg config.EngineConfig) *Engine {
	if cfg.PassWorkers < 1 {
		cfg.PassWorkers = 1
	}
	return &Engine{
		Repo:   repo,
		cfg:    cfg,
		now:    time.Now,
		actors: newActors(),
	}
}

// WithClock swaps the time source. Used by tests to pin attunement.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	if clock != nil {
		e.now = clock
	}
	return e
}

// CurrentMood returns the current mood of a character, or nil.
func (e *Engine) CurrentMood(ctx context.Context, characterID string) (*store.MoodState, error) {
	return retry(ctx, e.cfg, func(ctx context.Context) (*store.MoodState, error) {
		return e.Repo.GetMood(ctx, characterID)
	})
}

// History returns a character's frames, newest first.
func (e *Engine) History(ctx context.Context, characterID string, limit int) ([]store.MoodFrame, error) {
	return retry(ctx, e.cfg, func(ctx context.Context) ([]store.MoodFrame, error) {
		return e.Repo.FrameHistory(ctx, characterID, limit)
	})
}

// Influence returns the stored object influence of a character, or nil.
func (e *Engine) Influence(ctx context.Context, characterID string) (*store.ObjectInfluence, error) {
	return retry(ctx, e.cfg, func(ctx context.Context) (*store.ObjectInfluence, error) {
		return e.Repo.GetInfluence(ctx, characterID)
	})
}
