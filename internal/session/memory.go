package session

import (
	"context"
	"sync"
)

// MemoryProvider keeps sessions in process memory. Sessions never expire.
type MemoryProvider struct {
	mu       sync.RWMutex
	sessions map[string]map[string][]byte
}

// NewMemoryProvider creates an empty in-memory provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{sessions: make(map[string]map[string][]byte)}
}

// Open returns the named in-memory session.
func (p *MemoryProvider) Open(name string) Store {
	return &memoryStore{p: p, name: name}
}

// Len returns the number of non-empty sessions held by the provider.
func (p *MemoryProvider) Len() int {
	p.mu.RLock()
	n := len(p.sessions)
	p.mu.RUnlock()
	return n
}

type memoryStore struct {
	p    *MemoryProvider
	name string
}

func (s *memoryStore) Name() string { return s.name }

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.p.mu.RLock()
	defer s.p.mu.RUnlock()
	val, ok := s.p.sessions[s.name][key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), val...), nil
}

func (s *memoryStore) Set(_ context.Context, key string, value []byte) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	slots, ok := s.p.sessions[s.name]
	if !ok {
		slots = make(map[string][]byte)
		s.p.sessions[s.name] = slots
	}
	slots[key] = append([]byte(nil), value...)
	return nil
}

func (s *memoryStore) Destroy(_ context.Context) error {
	s.p.mu.Lock()
	delete(s.p.sessions, s.name)
	s.p.mu.Unlock()
	return nil
}

func (s *memoryStore) All(_ context.Context) (map[string][]byte, error) {
	s.p.mu.RLock()
	defer s.p.mu.RUnlock()
	out := make(map[string][]byte, len(s.p.sessions[s.name]))
	for k, v := range s.p.sessions[s.name] {
		out[k] = append([]byte(nil), v...)
	}
	return out, nil
}
