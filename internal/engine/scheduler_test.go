package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/lazypower/psyche/internal/engine/mocks"
)

func noopPass(context.Context) error { return nil }

func TestSchedulerLoadsPersistedInterval(t *testing.T) {
	ctrl := gomock.NewController(t)
	settings := mocks.NewMockSettingsStore(ctrl)
	settings.EXPECT().GetSetting(gomock.Any(), UpdateIntervalKey).Return("900000", true, nil)

	s := NewScheduler(settings, noopPass, testConfig())
	s.Start(context.Background())
	defer s.Stop()

	if got := s.Interval(); got != 15*time.Minute {
		t.Errorf("Interval = %s, want 15m", got)
	}
	if !s.Running() {
		t.Error("scheduler should be running")
	}
}

func TestSchedulerFallsBack(t *testing.T) {
	tests := []struct {
		name  string
		value string
		ok    bool
		err   error
	}{
		{"load error", "", false, errors.New("no such table: settings")},
		{"unset", "", false, nil},
		{"garbage", "soon", true, nil},
		{"zero", "0", true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			settings := mocks.NewMockSettingsStore(ctrl)
			settings.EXPECT().GetSetting(gomock.Any(), UpdateIntervalKey).Return(tt.value, tt.ok, tt.err)

			cfg := testConfig()
			cfg.TickInterval = 0 // falls through to DefaultUpdateInterval
			s := NewScheduler(settings, noopPass, cfg)
			s.Start(context.Background())
			defer s.Stop()

			if got := s.Interval(); got != DefaultUpdateInterval {
				t.Errorf("Interval = %s, want %s", got, DefaultUpdateInterval)
			}
		})
	}
}

func TestSchedulerTicks(t *testing.T) {
	ctrl := gomock.NewController(t)
	settings := mocks.NewMockSettingsStore(ctrl)
	settings.EXPECT().GetSetting(gomock.Any(), UpdateIntervalKey).Return("10ms", true, nil)

	var passes atomic.Int32
	s := NewScheduler(settings, func(context.Context) error {
		passes.Add(1)
		return errors.New("tick failures are logged, not fatal")
	}, testConfig())
	s.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for passes.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("only %d passes ran", passes.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()
	if s.Running() {
		t.Error("scheduler still running after Stop")
	}

	after := passes.Load()
	time.Sleep(50 * time.Millisecond)
	if passes.Load() != after {
		t.Error("passes ran after Stop")
	}
}

func TestSetUpdateIntervalPersistsAndRestarts(t *testing.T) {
	ctrl := gomock.NewController(t)
	settings := mocks.NewMockSettingsStore(ctrl)
	gomock.InOrder(
		settings.EXPECT().GetSetting(gomock.Any(), UpdateIntervalKey).Return("", false, nil),
		settings.EXPECT().SetSetting(gomock.Any(), UpdateIntervalKey, "20").Return(nil),
	)

	var passes atomic.Int32
	s := NewScheduler(settings, func(context.Context) error {
		passes.Add(1)
		return nil
	}, testConfig())
	s.Start(context.Background())
	defer s.Stop()

	if err := s.SetUpdateInterval(context.Background(), 20*time.Millisecond); err != nil {
		t.Fatalf("SetUpdateInterval: %v", err)
	}
	if got := s.Interval(); got != 20*time.Millisecond {
		t.Errorf("Interval = %s, want 20ms", got)
	}

	deadline := time.Now().Add(2 * time.Second)
	for passes.Load() < 1 {
		if time.Now().After(deadline) {
			t.Fatal("no pass ran after restart")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSetUpdateIntervalRejectsAndReports(t *testing.T) {
	ctrl := gomock.NewController(t)
	settings := mocks.NewMockSettingsStore(ctrl)
	settings.EXPECT().SetSetting(gomock.Any(), UpdateIntervalKey, "60000").Return(errors.New("readonly database"))

	s := NewScheduler(settings, noopPass, testConfig())

	if err := s.SetUpdateInterval(context.Background(), 0); err == nil {
		t.Error("expected error for zero interval")
	}
	if err := s.SetUpdateInterval(context.Background(), time.Minute); err == nil {
		t.Error("expected persist error")
	}
	if got := s.Interval(); got != time.Second {
		t.Errorf("Interval = %s, want unchanged 1s", got)
	}
}

func TestRunNowSkipsWhileBusy(t *testing.T) {
	ctrl := gomock.NewController(t)
	settings := mocks.NewMockSettingsStore(ctrl)

	started := make(chan struct{})
	release := make(chan struct{})
	s := NewScheduler(settings, func(context.Context) error {
		close(started)
		<-release
		return nil
	}, testConfig())

	first := make(chan bool, 1)
	go func() {
		ran, _ := s.RunNow(context.Background())
		first <- ran
	}()
	<-started

	ran, err := s.RunNow(context.Background())
	if err != nil || ran {
		t.Errorf("overlapping RunNow: ran=%v err=%v, want skipped", ran, err)
	}

	close(release)
	if !<-first {
		t.Error("first RunNow should have run")
	}
}

func TestStatusReadableWhileStopDrainsPass(t *testing.T) {
	ctrl := gomock.NewController(t)
	settings := mocks.NewMockSettingsStore(ctrl)
	settings.EXPECT().GetSetting(gomock.Any(), UpdateIntervalKey).Return("5ms", true, nil)

	var once sync.Once
	started := make(chan struct{})
	release := make(chan struct{})
	s := NewScheduler(settings, func(context.Context) error {
		once.Do(func() { close(started) })
		<-release
		return nil
	}, testConfig())
	s.Start(context.Background())
	<-started

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	// Stop is waiting on the pass; status reads must not wait with it.
	idle := make(chan struct{})
	go func() {
		for s.Running() {
			time.Sleep(time.Millisecond)
		}
		_ = s.Interval()
		close(idle)
	}()
	select {
	case <-idle:
	case <-time.After(2 * time.Second):
		t.Fatal("Running/Interval blocked behind an in-flight pass")
	}

	select {
	case <-stopped:
		t.Fatal("Stop returned before the pass finished")
	default:
	}
	close(release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the pass finished")
	}
}

func TestSchedulerWithStore(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	s := NewScheduler(db, noopPass, testConfig())
	if err := s.SetUpdateInterval(ctx, 15*time.Minute); err != nil {
		t.Fatalf("SetUpdateInterval: %v", err)
	}

	// A fresh scheduler picks up the persisted value.
	s2 := NewScheduler(db, noopPass, testConfig())
	s2.Start(ctx)
	defer s2.Stop()
	if got := s2.Interval(); got != 15*time.Minute {
		t.Errorf("Interval = %s, want 15m", got)
	}
}
