package roles

import (
	"context"
	"sync"
)

// StaticSource is an in-memory RoleSource, used in tests and as the bottom
// of a cache chain in single-node deployments.
type StaticSource struct {
	mu    sync.RWMutex
	roles map[string][]Role
}

func NewStaticSource() *StaticSource {
	return &StaticSource{roles: make(map[string][]Role)}
}

// Grant adds a role to an agent. Idempotent.
func (s *StaticSource) Grant(agentID string, role Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.roles[agentID] {
		if r == role {
			return
		}
	}
	s.roles[agentID] = append(s.roles[agentID], role)
}

func (s *StaticSource) GetRoles(_ context.Context, agentID string) ([]Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	held := s.roles[agentID]
	out := make([]Role, len(held))
	copy(out, held)
	return out, nil
}
