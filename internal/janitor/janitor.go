// Package janitor runs periodic cleanup work for in-memory stores.
package janitor

import (
	"context"
	"sync"
	"time"
)

// Janitor calls a sweep function on a fixed interval until stopped.
type Janitor struct {
	interval time.Duration
	sweep    func()

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// New returns a janitor that calls sweep every interval.
func New(interval time.Duration, sweep func()) *Janitor {
	return &Janitor{
		interval: interval,
		sweep:    sweep,
	}
}

// Start launches the sweep loop. It returns immediately; calling Start on a
// running janitor is a no-op.
func (j *Janitor) Start(ctx context.Context) {
	if j == nil || j.sweep == nil || j.interval <= 0 {
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.done = make(chan struct{})
	j.running = true

	go j.loop(ctx, j.done)
}

// Stop ends the sweep loop and waits for it to exit.
func (j *Janitor) Stop() {
	if j == nil {
		return
	}

	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	cancel, done := j.cancel, j.done
	j.running = false
	j.mu.Unlock()

	cancel()
	<-done
}

func (j *Janitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer j.finish(done)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

// finish clears running when the loop exits on its own, so a janitor whose
// parent ctx was cancelled can be started again. A newer loop is left alone.
func (j *Janitor) finish(done chan struct{}) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.done == done {
		j.running = false
	}
}
