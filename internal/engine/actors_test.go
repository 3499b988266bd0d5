package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestActorsSerializePerCharacter(t *testing.T) {
	a := newActors()
	ctx := context.Background()

	var inflight, maxInflight atomic.Int32
	counter := 0 // only touched inside the mailbox

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := a.do(ctx, "ada", func(context.Context) error {
				n := inflight.Add(1)
				for {
					m := maxInflight.Load()
					if n <= m || maxInflight.CompareAndSwap(m, n) {
						break
					}
				}
				counter++
				time.Sleep(100 * time.Microsecond)
				inflight.Add(-1)
				return nil
			})
			if err != nil {
				t.Errorf("do: %v", err)
			}
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("counter = %d, want 50", counter)
	}
	if maxInflight.Load() != 1 {
		t.Errorf("max concurrent jobs = %d, want 1", maxInflight.Load())
	}

	deadline := time.Now().Add(2 * time.Second)
	for a.active() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("mailboxes not torn down: %d active", a.active())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestActorsIndependentCharacters(t *testing.T) {
	a := newActors()
	ctx := context.Background()

	release := make(chan struct{})
	started := make(chan struct{})
	go a.do(ctx, "ada", func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	// bo is not blocked behind ada.
	done := make(chan error, 1)
	go func() { done <- a.do(ctx, "bo", func(context.Context) error { return nil }) }()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("do bo: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("bo blocked behind ada")
	}
	close(release)
}

func TestActorsPropagateErrorAndContext(t *testing.T) {
	a := newActors()
	boom := errors.New("boom")
	if err := a.do(context.Background(), "ada", func(context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}

	release := make(chan struct{})
	started := make(chan struct{})
	go a.do(context.Background(), "ada", func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	defer close(release)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := a.do(ctx, "ada", func(context.Context) error { return nil }); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}
