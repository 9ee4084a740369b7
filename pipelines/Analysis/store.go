package analysis

import (
	"fmt"
	"sort"
	"sync"
)

// Store keeps completed analysis results in memory so the HTTP layer can
// serve retrieval and export requests after the upload response returns.
// Results live only for the process lifetime; nothing is persisted.
type Store struct {
	mu      sync.RWMutex
	results map[string]*Result
	maxSize int
}

// NewStore creates a store retaining at most maxSize results; older results
// are evicted first
func NewStore(maxSize int) *Store {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &Store{
		results: make(map[string]*Result),
		maxSize: maxSize,
	}
}

// Put stores a completed result
func (s *Store) Put(result *Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.results) >= s.maxSize {
		s.evictOldest()
	}
	s.results[result.ID] = result
}

// Get retrieves a result by ID
func (s *Store) Get(id string) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result, ok := s.results[id]
	if !ok {
		return nil, fmt.Errorf("analysis not found: %s", id)
	}
	return result, nil
}

// List returns summaries of all stored results, newest first
func (s *Store) List() []*Result {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]*Result, 0, len(s.results))
	for _, r := range s.results {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	return results
}

// Delete removes a result by ID
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.results[id]; !ok {
		return fmt.Errorf("analysis not found: %s", id)
	}
	delete(s.results, id)
	return nil
}

// evictOldest removes the oldest result; callers hold the write lock
func (s *Store) evictOldest() {
	oldestID := ""
	for id, r := range s.results {
		if oldestID == "" || r.CreatedAt.Before(s.results[oldestID].CreatedAt) {
			oldestID = id
		}
	}
	if oldestID != "" {
		delete(s.results, oldestID)
	}
}
