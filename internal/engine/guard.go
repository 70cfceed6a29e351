package engine

import "sync"

// RunGuard serializes import batches across the whole process. A second
// batch started while one is running fails fast instead of interleaving
// writes.
type RunGuard struct {
	mu      sync.Mutex
	running bool
}

func (g *RunGuard) TryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return false
	}
	g.running = true
	return true
}

func (g *RunGuard) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.running = false
}
