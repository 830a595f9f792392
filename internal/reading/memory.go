package reading

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepository implements Repository in process memory.
// Ids start at 1 and are never reused, matching the SQL store.
type MemoryRepository struct {
	mu       sync.RWMutex
	readings map[int64]Reading
	nextID   int64
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		readings: make(map[int64]Reading),
		nextID:   1,
	}
}

// Query returns every reading matching f, ordered by id.
func (m *MemoryRepository) Query(_ context.Context, f Filter) ([]Reading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Reading
	for _, r := range m.readings {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetByID retrieves a reading by id.
func (m *MemoryRepository) GetByID(_ context.Context, id int64) (*Reading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.readings[id]
	if !ok {
		return nil, ErrReadingNotFound
	}
	return &r, nil
}

// CreateBatch stores all readings under a single lock.
func (m *MemoryRepository) CreateBatch(ctx context.Context, readings []Reading) ([]Reading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	created := make([]Reading, 0, len(readings))
	for _, r := range readings {
		r.ID = m.nextID
		r.LoggedAt = r.LoggedAt.UTC()
		m.nextID++
		m.readings[r.ID] = r
		created = append(created, r)
	}
	return created, nil
}

// Update overwrites the stored reading with r.ID.
func (m *MemoryRepository) Update(_ context.Context, r *Reading) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.readings[r.ID]; !ok {
		return ErrReadingNotFound
	}
	r.LoggedAt = r.LoggedAt.UTC()
	m.readings[r.ID] = *r
	return nil
}

// Delete removes the reading with the given id.
func (m *MemoryRepository) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.readings[id]; !ok {
		return ErrReadingNotFound
	}
	delete(m.readings, id)
	return nil
}

// Count returns the number of stored readings.
func (m *MemoryRepository) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.readings), nil
}
