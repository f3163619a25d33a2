package session

import (
	"sync"
	"time"
)

// restTimer drives Engine ticks from its own goroutine until cancelled.
type restTimer struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func startRestTimer(interval time.Duration, tick func(*restTimer)) *restTimer {
	t := &restTimer{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go t.run(interval, tick)
	return t
}

func (t *restTimer) run(interval time.Duration, tick func(*restTimer)) {
	defer close(t.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			tick(t)
		}
	}
}

// cancel signals the goroutine to exit. Safe to call more than once and
// from inside tick.
func (t *restTimer) cancel() {
	t.once.Do(func() { close(t.stop) })
}

// wait blocks until the goroutine has exited. Must not be called while
// holding the Engine lock.
func (t *restTimer) wait() {
	<-t.done
}
