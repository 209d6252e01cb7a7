package janitor

import "sync"

// Media handed to workers and not finished yet
// Producer skips it until a worker releases it
type inFlight struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func newInFlight() *inFlight {
	return &inFlight{ids: make(map[string]struct{})}
}

// Returns false if publicID is taken already
func (f *inFlight) acquire(publicID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.ids[publicID]; ok {
		return false
	}
	f.ids[publicID] = struct{}{}
	return true
}

func (f *inFlight) release(publicID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.ids, publicID)
}
