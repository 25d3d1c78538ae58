package handlers

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/suPer8Hu/sentinel-chat/internal/chat"
)

// States keeps the live SessionState of each identity. Evicted identities
// start over with a new chat on their next request.
type States struct {
	mu      sync.Mutex
	cache   *lru.Cache
	catalog *chat.Catalog
}

func NewStates(size int, catalog *chat.Catalog) (*States, error) {
	if size <= 0 {
		size = 1024
	}
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &States{cache: c, catalog: catalog}, nil
}

// Get returns the state for identity, opening a new chat the first time.
func (s *States) Get(identity string) (*chat.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.cache.Get(identity); ok {
		return v.(*chat.SessionState), nil
	}
	st, err := s.catalog.Open(identity)
	if err != nil {
		return nil, err
	}
	s.cache.Add(identity, st)
	return st, nil
}

// Replace installs st as the state of identity.
func (s *States) Replace(identity string, st *chat.SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Add(identity, st)
}
