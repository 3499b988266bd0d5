package engine

import (
	"context"
	"sync"
)

// actors runs work for a character on a single goroutine at a time. A
// mailbox exists only while it has queued work; its goroutine exits when
// the queue drains.
type actors struct {
	mu    sync.Mutex
	boxes map[string]*mailbox
}

type mailbox struct {
	queue []func()
}

func newActors() *actors {
	return &actors{boxes: make(map[string]*mailbox)}
}

// do enqueues fn on the mailbox for id and waits for its result. If ctx ends
// first, do returns ctx.Err() while fn still runs to completion in order.
func (a *actors) do(ctx context.Context, id string, fn func(context.Context) error) error {
	done := make(chan error, 1)
	job := func() { done <- fn(ctx) }

	a.mu.Lock()
	mb, ok := a.boxes[id]
	if !ok {
		mb = &mailbox{}
		a.boxes[id] = mb
	}
	mb.queue = append(mb.queue, job)
	if !ok {
		go a.serve(id, mb)
	}
	a.mu.Unlock()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *actors) serve(id string, mb *mailbox) {
	for {
		a.mu.Lock()
		if len(mb.queue) == 0 {
			delete(a.boxes, id)
			a.mu.Unlock()
			return
		}
		job := mb.queue[0]
		mb.queue[0] = nil
		mb.queue = mb.queue[1:]
		a.mu.Unlock()

		job()
	}
}

// active returns the number of characters with queued or running work.
func (a *actors) active() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.boxes)
}
