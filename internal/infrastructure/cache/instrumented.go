package cache

import (
	"context"
	"time"

	"github.com/hilthontt/repochat/internal/infrastructure/metrics"
)

// Instrumented counts hits and misses per kind.
type Instrumented struct {
	Cache
	metrics *metrics.Metrics
}

func NewInstrumented(c Cache, m *metrics.Metrics) *Instrumented {
	return &Instrumented{Cache: c, metrics: m}
}

func (i *Instrumented) Get(ctx context.Context, kind Kind, key string, maxAge time.Duration) ([]byte, bool) {
	data, ok := i.Cache.Get(ctx, kind, key, maxAge)
	i.metrics.CacheLookup(string(kind), ok)
	return data, ok
}
