package memory

import (
	"context"
	"sync"

	"github.com/appclacks/sloworker/pkg/slo"
	"github.com/appclacks/sloworker/pkg/slo/aggregates"
)

// Store keeps the SLI counters in process memory. Counters are lost on
// restart.
type Store struct {
	mu       sync.RWMutex
	counters map[string]*aggregates.Counters
}

var _ slo.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		counters: make(map[string]*aggregates.Counters),
	}
}

func (m *Store) ensureRow(url string) *aggregates.Counters {
	row, ok := m.counters[url]
	if !ok {
		row = &aggregates.Counters{URL: url}
		m.counters[url] = row
	}
	return row
}

func (m *Store) EnsureRow(ctx context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureRow(url)
	return nil
}

func increment(row *aggregates.Counters, outcome aggregates.Outcome) {
	if outcome.Successful {
		row.Successful++
	}
	if outcome.Fast {
		row.Fast++
	}
	row.Total++
}

func (m *Store) RecordOutcome(ctx context.Context, outcome aggregates.Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.counters[outcome.URL]
	if !ok {
		// same as an UPDATE matching no row
		return nil
	}
	increment(row, outcome)
	return nil
}

func (m *Store) RecordBatch(ctx context.Context, outcomes []aggregates.Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, outcome := range outcomes {
		increment(m.ensureRow(outcome.URL), outcome)
	}
	return nil
}

func (m *Store) ListCounters(ctx context.Context) ([]aggregates.Counters, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]aggregates.Counters, 0, len(m.counters))
	for _, row := range m.counters {
		out = append(out, *row)
	}
	return out, nil
}

func (m *Store) Close() error {
	return nil
}
