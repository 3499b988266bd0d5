package engine

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lazypower/psyche/internal/config"
)

//go:generate go tool mockgen -destination=./mocks/settings_mock.go -package=mocks . SettingsStore

// UpdateIntervalKey is the settings key holding the scheduler interval in milliseconds.
const UpdateIntervalKey = "scheduler.update_interval_ms"

// DefaultUpdateInterval is used when no interval is persisted or it cannot be read.
const DefaultUpdateInterval = 30 * time.Second

// SettingsStore is the key-value configuration store the scheduler persists to.
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
}

// PassFunc is one unit of scheduled work.
type PassFunc func(ctx context.Context) error

// Scheduler runs a PassFunc on a timer whose interval is persisted in a
// SettingsStore. At most one pass runs at a time; a tick that arrives while
// a pass is still running is skipped.
type Scheduler struct {
	settings     SettingsStore
	pass         PassFunc
	fallback     time.Duration
	storeTimeout time.Duration

	mu       sync.Mutex
	interval time.Duration
	parent   context.Context
	cancel   context.CancelFunc
	done     chan struct{}

	busy atomic.Bool
}

// NewScheduler creates a stopped Scheduler. cfg.TickInterval is the fallback
// interval when nothing valid is persisted.
func NewScheduler(settings SettingsStore, pass PassFunc, cfg config.EngineConfig) *Scheduler {
	fallback := cfg.TickInterval
	if fallback <= 0 {
		fallback = DefaultUpdateInterval
	}
	timeout := cfg.StoreTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Scheduler{
		settings:     settings,
		pass:         pass,
		fallback:     fallback,
		storeTimeout: timeout,
		interval:     fallback,
	}
}

// Start loads the persisted interval and starts the timer. Calling Start on
// a running scheduler is a no-op. The timer stops when ctx ends or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	s.interval = s.loadInterval(ctx)
	s.parent = ctx
	s.startLoop()
	log.Printf("scheduler: started, interval %s", s.interval)
}

// Stop cancels the timer and waits for an in-flight pass to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return
	}
	cancel, done := s.detachLoop()
	s.mu.Unlock()

	cancel()
	<-done
	log.Printf("scheduler: stopped")
}

// Interval returns the interval currently in effect.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Running reports whether the timer is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// SetUpdateInterval persists a new interval and, if the timer is running,
// restarts it with the new value.
func (s *Scheduler) SetUpdateInterval(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("update interval must be positive, got %s", d)
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	if err := s.settings.SetSetting(storeCtx, UpdateIntervalKey, strconv.FormatInt(d.Milliseconds(), 10)); err != nil {
		return fmt.Errorf("persist update interval: %w", err)
	}

	s.mu.Lock()
	s.interval = d
	if s.cancel == nil {
		s.mu.Unlock()
		return nil
	}
	stopOld, done := s.detachLoop()
	s.startLoop()
	s.mu.Unlock()

	// A pass still running in the old loop keeps the busy flag, so the new
	// loop skips ticks until it returns.
	stopOld()
	<-done
	log.Printf("scheduler: restarted, interval %s", d)
	return nil
}

// RunNow runs one pass unless one is already in flight, in which case it
// returns ran=false without waiting.
func (s *Scheduler) RunNow(ctx context.Context) (ran bool, err error) {
	if !s.busy.CompareAndSwap(false, true) {
		return false, nil
	}
	defer s.busy.Store(false)

	start := time.Now()
	err = s.pass(ctx)
	if err != nil {
		log.Printf("scheduler: pass failed after %s: %v", time.Since(start).Round(time.Millisecond), err)
	} else {
		log.Printf("scheduler: pass completed in %s", time.Since(start).Round(time.Millisecond))
	}
	return true, err
}

func (s *Scheduler) loadInterval(ctx context.Context) time.Duration {
	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	raw, ok, err := s.settings.GetSetting(storeCtx, UpdateIntervalKey)
	if err != nil {
		log.Printf("scheduler: load interval: %v (using %s)", err, s.fallback)
		return s.fallback
	}
	if !ok {
		return s.fallback
	}
	d, err := parseInterval(raw)
	if err != nil {
		log.Printf("scheduler: bad persisted interval %q: %v (using %s)", raw, err, s.fallback)
		return s.fallback
	}
	return d
}

// parseInterval accepts milliseconds ("900000") or a Go duration ("15m").
func parseInterval(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	var d time.Duration
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		d = time.Duration(ms) * time.Millisecond
	} else {
		d, err = time.ParseDuration(raw)
		if err != nil {
			return 0, err
		}
	}
	if d <= 0 {
		return 0, fmt.Errorf("non-positive interval %s", d)
	}
	return d, nil
}

// startLoop and detachLoop must be called with s.mu held.
func (s *Scheduler) startLoop() {
	ctx, cancel := context.WithCancel(s.parent)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	go s.loop(ctx, s.interval, done)
}

// detachLoop forgets the running loop and hands back what is needed to stop
// it. The caller cancels and waits after releasing s.mu.
func (s *Scheduler) detachLoop() (context.CancelFunc, chan struct{}) {
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.done = nil
	return cancel, done
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if ran, _ := s.RunNow(ctx); !ran {
				log.Printf("scheduler: tick skipped, previous pass still running")
			}
		case <-ctx.Done():
			return
		}
	}
}
