package store

import (
	"context"
	"sort"
	"sync"

	"cylroute/internal/model"
)

// Memory is a simple in-memory store used when no database is configured.
type Memory struct {
	mu      sync.Mutex
	plans   map[string]model.Plan
	planIDs []string // sorted
	runs    map[string]model.TuneRun
}

func NewMemory() *Memory {
	return &Memory{
		plans: map[string]model.Plan{},
		runs:  map[string]model.TuneRun{},
	}
}

func (m *Memory) SavePlan(ctx context.Context, p model.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.plans[p.ID]; !ok {
		i := sort.SearchStrings(m.planIDs, p.ID)
		m.planIDs = append(m.planIDs, "")
		copy(m.planIDs[i+1:], m.planIDs[i:])
		m.planIDs[i] = p.ID
	}
	m.plans[p.ID] = p
	return nil
}

func (m *Memory) GetPlan(ctx context.Context, id string) (model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[id]
	if !ok {
		return model.Plan{}, ErrNotFound
	}
	return p, nil
}

func (m *Memory) ListPlans(ctx context.Context, cursor string, limit int) ([]model.PlanSummary, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	limit = clampLimit(limit)
	start := 0
	if cursor != "" {
		start = sort.SearchStrings(m.planIDs, cursor)
		if start < len(m.planIDs) && m.planIDs[start] == cursor {
			start++
		}
	}
	out := []model.PlanSummary{}
	for i := start; i < len(m.planIDs) && len(out) < limit; i++ {
		out = append(out, m.plans[m.planIDs[i]].Summary())
	}
	next := ""
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

func (m *Memory) SaveTuneRun(ctx context.Context, run model.TuneRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	return nil
}

func (m *Memory) GetTuneRun(ctx context.Context, id string) (model.TuneRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return model.TuneRun{}, ErrNotFound
	}
	return r, nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
