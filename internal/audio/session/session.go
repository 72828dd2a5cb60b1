// Package session arbitrates the single platform audio resource shared by
// capture and playback. Only one engine may hold it at a time; acquiring
// while the other holds it stops the other first.
package session

import "sync"

// Owner identifies an engine holding the audio session.
type Owner string

const (
	OwnerNone     Owner = ""
	OwnerCapture  Owner = "capture"
	OwnerPlayback Owner = "playback"
)

// Guard is the exclusive audio session lock.
type Guard struct {
	mu     sync.Mutex
	holder Owner
	stops  map[Owner]func()
}

// NewGuard creates an unheld Guard.
func NewGuard() *Guard {
	return &Guard{stops: make(map[Owner]func())}
}

// RegisterStop registers the hook invoked to evict owner when another engine
// acquires the session. The hook must leave owner released and idle.
func (g *Guard) RegisterStop(owner Owner, stop func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stops[owner] = stop
}

// Acquire grants the session to owner, stopping the current holder first if
// it is a different engine. Re-acquiring while already held is a no-op.
func (g *Guard) Acquire(owner Owner) {
	for {
		g.mu.Lock()
		current := g.holder
		if current == OwnerNone || current == owner {
			g.holder = owner
			g.mu.Unlock()
			return
		}
		stop := g.stops[current]
		g.mu.Unlock()

		// The eviction hook calls back into Release, so it runs unlocked.
		if stop != nil {
			stop()
		} else {
			g.mu.Lock()
			if g.holder == current {
				g.holder = OwnerNone
			}
			g.mu.Unlock()
		}
	}
}

// Release clears the session if owner still holds it.
func (g *Guard) Release(owner Owner) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.holder == owner {
		g.holder = OwnerNone
	}
}

// Holder returns the current session holder.
func (g *Guard) Holder() Owner {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.holder
}
