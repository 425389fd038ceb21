package graph

import "sync"

// SymbolTable interns unit names to dense integer ids.
type SymbolTable struct {
	mu    sync.RWMutex
	ids   map[string]int
	names []string
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{ids: make(map[string]int)}
}

// Intern returns the id for name, assigning the next one if needed.
func (s *SymbolTable) Intern(name string) int {
	s.mu.RLock()
	id, ok := s.ids[name]
	s.mu.RUnlock()
	if ok {
		return id
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.ids[name]; ok {
		return id
	}
	id = len(s.names)
	s.ids[name] = id
	s.names = append(s.names, name)
	return id
}

func (s *SymbolTable) Lookup(name string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.ids[name]
	return id, ok
}

// Name returns the string for id, or "" when id was never assigned.
func (s *SymbolTable) Name(id int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id < 0 || id >= len(s.names) {
		return ""
	}
	return s.names[id]
}

func (s *SymbolTable) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.names)
}
