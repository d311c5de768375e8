package dedup

import "sync"

// SeenSet records source keys admitted during this process run.
// It only grows; nothing is evicted or persisted.
type SeenSet struct {
	mu   sync.RWMutex
	keys map[string]struct{}
}

func NewSeenSet() *SeenSet {
	return &SeenSet{keys: make(map[string]struct{})}
}

// Admit records key and returns true the first time it is seen.
func (s *SeenSet) Admit(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; ok {
		return false
	}
	s.keys[key] = struct{}{}
	return true
}

// Seen reports whether key was admitted, without recording it.
func (s *SeenSet) Seen(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.keys[key]
	return ok
}

func (s *SeenSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}
