package ring

import "sync"

// Gate is a broadcast wake-up for readers waiting on new records.
//
// A waiter takes a channel from Watch while it still observes the state it
// is waiting to change, and blocks on it. Broadcast closes the channel handed
// out since the previous broadcast, waking every waiter. Wake-ups can be
// spurious: waiters re-check their condition. Broadcast does not allocate.
type Gate struct {
	mu sync.Mutex
	ch chan struct{}
}

// Watch returns a channel closed by the next Broadcast.
func (g *Gate) Watch() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ch == nil {
		g.ch = make(chan struct{})
	}
	return g.ch
}

// Broadcast wakes all current watchers.
func (g *Gate) Broadcast() {
	g.mu.Lock()
	if g.ch != nil {
		close(g.ch)
		g.ch = nil
	}
	g.mu.Unlock()
}
