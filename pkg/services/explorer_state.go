package services

import "sync"

// ExplorerState tracks which tree nodes are expanded, keyed by the
// deterministic node keys the tree builder emits. One instance is owned per
// top-level explorer view (in this server, per catalog database) so the
// state survives rebuilds of the tree without leaking across catalogs.
type ExplorerState struct {
	mu       sync.RWMutex
	expanded map[string]bool
}

// NewExplorerState creates an empty expand/collapse state.
func NewExplorerState() *ExplorerState {
	return &ExplorerState{expanded: make(map[string]bool)}
}

// IsExpanded reports whether the node is expanded. Unknown keys default to
// collapsed.
func (s *ExplorerState) IsExpanded(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expanded[key]
}

// SetExpanded records an explicit expand/collapse choice for a node.
func (s *ExplorerState) SetExpanded(key string, expanded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expanded[key] = expanded
}

// Toggle flips a node's state and returns the new value.
func (s *ExplorerState) Toggle(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expanded[key] = !s.expanded[key]
	return s.expanded[key]
}

// ExpandAll expands several nodes at once (e.g. every database node).
func (s *ExplorerState) ExpandAll(keys []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		s.expanded[key] = true
	}
}

// HasExplicitState reports whether the node was ever explicitly set, as
// opposed to using the collapsed default.
func (s *ExplorerState) HasExplicitState(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.expanded[key]
	return ok
}

// ExpandedKeys returns the keys currently expanded, in unspecified order.
func (s *ExplorerState) ExpandedKeys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.expanded))
	for key, expanded := range s.expanded {
		if expanded {
			keys = append(keys, key)
		}
	}
	return keys
}
