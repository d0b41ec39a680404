package quota

import (
	"context"
	"sync"
)

// MemorySource is an in-memory plan source for tests and examples.
type MemorySource struct {
	mu      sync.Mutex
	plans   map[string]Plan
	PlanErr error
}

func NewMemorySource() *MemorySource {
	return &MemorySource{plans: make(map[string]Plan)}
}

func (s *MemorySource) SetPlan(userID string, p Plan) {
	s.mu.Lock()
	s.plans[userID] = p
	s.mu.Unlock()
}

func (s *MemorySource) Plan(ctx context.Context, userID string) (Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.PlanErr != nil {
		return Plan{}, s.PlanErr
	}
	p, ok := s.plans[userID]
	if !ok {
		return Plan{PlanType: "free", MinutesQuota: 600}, nil
	}
	return p, nil
}

func (s *MemorySource) AddUsage(ctx context.Context, userID string, minutes int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.plans[userID]
	p.MinutesUsed += minutes
	s.plans[userID] = p
	return nil
}

var (
	_ Source   = (*MemorySource)(nil)
	_ Recorder = (*MemorySource)(nil)
)
