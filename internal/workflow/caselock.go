package workflow

import "sync"

// caseLocks serializes mutating operations per case. Operations on distinct
// cases proceed concurrently; two submissions for the same case are applied
// one after the other.
type caseLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newCaseLocks() *caseLocks {
	return &caseLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the mutex for caseID and returns the unlock function.
func (c *caseLocks) acquire(caseID string) func() {
	c.mu.Lock()
	lock, ok := c.locks[caseID]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[caseID] = lock
	}
	c.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
