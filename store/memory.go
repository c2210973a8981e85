package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/use-agent/bughunter/models"
)

// DefaultMaxEntries bounds a memory store built with a non-positive size.
const DefaultMaxEntries = 1000

// Memory is an in-memory Store. When full, the oldest record is evicted.
type Memory struct {
	mu         sync.RWMutex
	records    map[string]*models.ScanRecord
	order      []string // insertion order, oldest first
	maxEntries int
}

// NewMemory creates a Memory store holding at most maxEntries records.
func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Memory{
		records:    make(map[string]*models.ScanRecord),
		maxEntries: maxEntries,
	}
}

// Save implements Store.
func (m *Memory) Save(_ context.Context, rec *models.ScanRecord) error {
	cp := *rec

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[rec.ID]; !ok {
		if len(m.order) >= m.maxEntries {
			delete(m.records, m.order[0])
			m.order = m.order[1:]
		}
		m.order = append(m.order, rec.ID)
	}
	m.records[rec.ID] = &cp
	return nil
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, id string) (*models.ScanRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

// List implements Store.
func (m *Memory) List(_ context.Context, limit, offset int) ([]models.ScanListItem, int, error) {
	m.mu.RLock()
	recs := make([]*models.ScanRecord, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		recs = append(recs, m.records[m.order[i]])
	}
	m.mu.RUnlock()

	slices.SortStableFunc(recs, func(a, b *models.ScanRecord) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	start, end := pageBounds(limit, offset, len(recs))
	items := make([]models.ScanListItem, 0, end-start)
	for _, r := range recs[start:end] {
		items = append(items, listItem(r))
	}
	return items, len(recs), nil
}

// Stats implements Store.
func (m *Memory) Stats(_ context.Context) (*models.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := &models.Stats{TotalScans: len(m.records)}
	var last time.Time
	for _, r := range m.records {
		c := r.Counts()
		st.TotalBugs += c.Total
		st.SeverityBreakdown.Critical += c.Critical
		st.SeverityBreakdown.High += c.High
		st.SeverityBreakdown.Medium += c.Medium
		st.SeverityBreakdown.Low += c.Low
		if r.CreatedAt.After(last) {
			last = r.CreatedAt
		}
	}
	st.SeverityBreakdown.Total = st.TotalBugs
	if st.TotalScans > 0 {
		st.AvgBugsPerScan = roundAvg(st.TotalBugs, st.TotalScans)
		st.LastScan = &last
	}
	return st, nil
}

// ToggleShare implements Store.
func (m *Memory) ToggleShare(_ context.Context, id string) (*models.ScanRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	r.IsPublic = !r.IsPublic
	if r.ShareToken == "" {
		r.ShareToken = newShareToken()
	}
	cp := *r
	return &cp, nil
}

// GetShared implements Store.
func (m *Memory) GetShared(_ context.Context, token string) (*models.ScanRecord, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range m.records {
		if r.IsPublic && r.ShareToken == token {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// Close implements Store.
func (m *Memory) Close() error { return nil }

// roundAvg is total/n rounded to two decimals.
func roundAvg(total, n int) float64 {
	return float64(int64(float64(total)/float64(n)*100+0.5)) / 100
}
