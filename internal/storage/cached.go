package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ArashiWander/Argus-sub001/internal/cache"
	"github.com/ArashiWander/Argus-sub001/internal/models"
)

// CachedQuerier wraps a Querier with short-TTL caching so the evaluator
// sweeps do not hammer the backend for the same window. Cache failures fall
// through to the backend.
type CachedQuerier struct {
	backend  Querier
	provider cache.Provider
	ttl      time.Duration
	logger   *slog.Logger
}

// NewCachedQuerier constructs a caching wrapper around backend.
func NewCachedQuerier(backend Querier, provider cache.Provider, ttl time.Duration, logger *slog.Logger) *CachedQuerier {
	if provider == nil {
		provider = cache.NoopProvider{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedQuerier{backend: backend, provider: provider, ttl: ttl, logger: logger}
}

// QueryWindow serves from cache when possible, otherwise queries the backend
// and stores the result.
func (q *CachedQuerier) QueryWindow(ctx context.Context, metricName, service string, start, end time.Time) ([]models.MetricPoint, error) {
	key := fmt.Sprintf("window:%s:%s:%d:%d", metricName, service, start.Unix(), end.Unix())

	if data, err := q.provider.Get(ctx, key); err == nil {
		var points []models.MetricPoint
		if err := json.Unmarshal(data, &points); err == nil {
			return points, nil
		}
		// Corrupt entry; drop it and fall through.
		_ = q.provider.Del(ctx, key)
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		q.logger.Warn("window cache read failed", slog.Any("error", err))
	}

	points, err := q.backend.QueryWindow(ctx, metricName, service, start, end)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(points); err == nil {
		if err := q.provider.Set(ctx, key, data, q.ttl); err != nil {
			q.logger.Warn("window cache write failed", slog.Any("error", err))
		}
	}
	return points, nil
}
