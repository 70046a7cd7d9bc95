package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ArashiWander/Argus-sub001/internal/cache"
	"github.com/ArashiWander/Argus-sub001/internal/models"
)

type mapProvider struct {
	mu      sync.Mutex
	entries map[string][]byte
	failGet bool
}

func newMapProvider() *mapProvider {
	return &mapProvider{entries: make(map[string][]byte)}
}

func (p *mapProvider) Get(_ context.Context, key string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failGet {
		return nil, errors.New("cache down")
	}
	data, ok := p.entries[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return data, nil
}

func (p *mapProvider) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[key] = value
	return nil
}

func (p *mapProvider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.entries, key)
	return nil
}

func (p *mapProvider) Close() error { return nil }

type countingQuerier struct {
	backend Querier
	calls   int
}

func (q *countingQuerier) QueryWindow(ctx context.Context, metricName, service string, start, end time.Time) ([]models.MetricPoint, error) {
	q.calls++
	return q.backend.QueryWindow(ctx, metricName, service, start, end)
}

func seedMetric(t *testing.T, store *MemoryStorage, value float64, at time.Time) {
	t.Helper()
	err := store.InsertMetric(context.Background(), models.Metric{
		Name: "cpu.usage", Service: "api", Value: value, Timestamp: at,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
}

func TestCachedQuerierServesSecondReadFromCache(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	backend := &countingQuerier{backend: store}
	q := NewCachedQuerier(backend, newMapProvider(), time.Minute, nil)

	at := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	seedMetric(t, store, 42, at)

	start, end := at.Add(-time.Minute), at.Add(time.Minute)
	first, err := q.QueryWindow(ctx, "cpu.usage", "api", start, end)
	if err != nil {
		t.Fatalf("first query: %v", err)
	}
	second, err := q.QueryWindow(ctx, "cpu.usage", "api", start, end)
	if err != nil {
		t.Fatalf("second query: %v", err)
	}
	if backend.calls != 1 {
		t.Fatalf("expected 1 backend call, got %d", backend.calls)
	}
	if len(first) != 1 || len(second) != 1 || second[0].Value != 42 {
		t.Fatalf("cached result mismatch: %v vs %v", first, second)
	}
}

func TestCachedQuerierDistinctWindowsDistinctKeys(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	backend := &countingQuerier{backend: store}
	q := NewCachedQuerier(backend, newMapProvider(), time.Minute, nil)

	at := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	seedMetric(t, store, 42, at)

	if _, err := q.QueryWindow(ctx, "cpu.usage", "api", at.Add(-time.Minute), at); err != nil {
		t.Fatalf("query: %v", err)
	}
	if _, err := q.QueryWindow(ctx, "cpu.usage", "api", at.Add(-2*time.Minute), at); err != nil {
		t.Fatalf("query: %v", err)
	}
	if backend.calls != 2 {
		t.Fatalf("different windows must not share a key, got %d backend calls", backend.calls)
	}
}

func TestCachedQuerierFallsThroughOnCacheFailure(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	provider := newMapProvider()
	provider.failGet = true
	q := NewCachedQuerier(store, provider, time.Minute, nil)

	at := time.Now()
	seedMetric(t, store, 42, at)

	points, err := q.QueryWindow(ctx, "cpu.usage", "api", at.Add(-time.Minute), at.Add(time.Minute))
	if err != nil {
		t.Fatalf("cache failure must fall through to the backend: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("expected backend result, got %v", points)
	}
}

func TestCachedQuerierCorruptEntryDropped(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	provider := newMapProvider()
	q := NewCachedQuerier(store, provider, time.Minute, nil)

	at := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	seedMetric(t, store, 42, at)
	start, end := at.Add(-time.Minute), at.Add(time.Minute)

	// Pre-poison the key this window hashes to.
	if _, err := q.QueryWindow(ctx, "cpu.usage", "api", start, end); err != nil {
		t.Fatalf("prime: %v", err)
	}
	for key := range provider.entries {
		provider.entries[key] = []byte("{not json")
	}

	points, err := q.QueryWindow(ctx, "cpu.usage", "api", start, end)
	if err != nil {
		t.Fatalf("corrupt entry must fall through: %v", err)
	}
	if len(points) != 1 || points[0].Value != 42 {
		t.Fatalf("expected backend result after corrupt entry, got %v", points)
	}
}

func TestCachedQuerierNilProviderNoops(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	q := NewCachedQuerier(store, nil, time.Minute, nil)

	at := time.Now()
	seedMetric(t, store, 7, at)
	points, err := q.QueryWindow(ctx, "cpu.usage", "api", at.Add(-time.Minute), at.Add(time.Minute))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("expected backend result, got %v", points)
	}
}
