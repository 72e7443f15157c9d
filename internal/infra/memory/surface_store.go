package memory

import (
	"sync"
	"time"

	"ipzy-gateway/internal/app"
)

// SurfaceStore keeps one key/value bag per tab session in process memory.
// A bag idle for longer than the TTL is treated as gone, like storage of a closed tab.
type SurfaceStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	clock func() time.Time
	bags  map[string]*bag
}

type bag struct {
	values  map[string]string
	touched time.Time
}

func NewSurfaceStore(ttl time.Duration) *SurfaceStore {
	return &SurfaceStore{
		ttl:   ttl,
		clock: time.Now,
		bags:  make(map[string]*bag),
	}
}

// Open returns the Surface of tabID. Nothing is allocated until the first write.
func (s *SurfaceStore) Open(tabID string) app.Surface {
	return &surface{store: s, tabID: tabID}
}

func (s *SurfaceStore) Clear(tabID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bags, tabID)
}

// Sweep drops expired bags and returns how many were removed.
func (s *SurfaceStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	now := s.clock()
	for id, b := range s.bags {
		if s.expired(b, now) {
			delete(s.bags, id)
			removed++
		}
	}
	return removed
}

func (s *SurfaceStore) expired(b *bag, now time.Time) bool {
	return s.ttl > 0 && now.Sub(b.touched) > s.ttl
}

// bagLocked returns the live bag for tabID, creating it when create is set.
func (s *SurfaceStore) bagLocked(tabID string, create bool) *bag {
	now := s.clock()
	b, ok := s.bags[tabID]
	if ok && s.expired(b, now) {
		delete(s.bags, tabID)
		ok = false
	}
	if !ok {
		if !create {
			return nil
		}
		b = &bag{values: make(map[string]string)}
		s.bags[tabID] = b
	}
	b.touched = now
	return b
}

type surface struct {
	store *SurfaceStore
	tabID string
}

func (s *surface) Get(key string) (string, bool) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	b := s.store.bagLocked(s.tabID, false)
	if b == nil {
		return "", false
	}
	v, ok := b.values[key]
	return v, ok
}

func (s *surface) Set(key, value string) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	s.store.bagLocked(s.tabID, true).values[key] = value
}

func (s *surface) Remove(key string) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	if b := s.store.bagLocked(s.tabID, false); b != nil {
		delete(b.values, key)
	}
}

func (s *surface) Keys(prefix string) []string {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	b := s.store.bagLocked(s.tabID, false)
	if b == nil {
		return nil
	}
	return app.FilterKeys(b.values, prefix)
}
