package memory

import (
	"sync"
	"time"

	"ipzy-gateway/internal/app"
)

// AttemptRegistry is an in-memory implementation of app.AttemptRegistry.
// Entries idle longer than the TTL are removed by Sweep.
type AttemptRegistry struct {
	mu       sync.RWMutex
	ttl      time.Duration
	clock    func() time.Time
	attempts map[string]*registeredAttempt
}

type registeredAttempt struct {
	attempt  *app.Attempt
	lastSeen time.Time
}

func NewAttemptRegistry(ttl time.Duration) *AttemptRegistry {
	return &AttemptRegistry{
		ttl:      ttl,
		clock:    time.Now,
		attempts: make(map[string]*registeredAttempt),
	}
}

func (r *AttemptRegistry) Put(tabID string, attempt *app.Attempt) *app.Attempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	var previous *app.Attempt
	if entry, ok := r.attempts[tabID]; ok {
		previous = entry.attempt
	}
	r.attempts[tabID] = &registeredAttempt{attempt: attempt, lastSeen: r.clock()}
	return previous
}

func (r *AttemptRegistry) Get(tabID string) (*app.Attempt, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.attempts[tabID]
	if !ok {
		return nil, false
	}
	entry.lastSeen = r.clock()
	return entry.attempt, true
}

func (r *AttemptRegistry) Delete(tabID string) {
	r.mu.Lock()
	entry, ok := r.attempts[tabID]
	delete(r.attempts, tabID)
	r.mu.Unlock()
	if ok {
		entry.attempt.Teardown()
	}
}

// Len reports the number of registered attempts.
func (r *AttemptRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.attempts)
}

// Sweep tears down and drops attempts not touched within the TTL. It returns how many were removed.
func (r *AttemptRegistry) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	cutoff := r.clock().Add(-r.ttl)

	r.mu.Lock()
	var expired []*app.Attempt
	for tabID, entry := range r.attempts {
		if entry.lastSeen.Before(cutoff) {
			expired = append(expired, entry.attempt)
			delete(r.attempts, tabID)
		}
	}
	r.mu.Unlock()

	for _, attempt := range expired {
		attempt.Teardown()
	}
	return len(expired)
}
