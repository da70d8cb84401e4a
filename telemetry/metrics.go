package telemetry

import (
	"context"

	"github.com/agentuity/go-entitycache/cache"
	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/metric"
)

// Metric names.
const (
	MetricHits    = "entitycache.hits"
	MetricMisses  = "entitycache.misses"
	MetricAdded   = "entitycache.items.added"
	MetricRemoved = "entitycache.items.removed"
	unitEvents    = "{event}"
)

// MetricsObserver counts cache events. Subscribe it to an EntityCache:
//
//	obs, err := telemetry.NewMetricsObserver(c.Name())
//	unsubscribe := c.Subscribe(obs)
type MetricsObserver struct {
	hits    metric.Int64Counter
	misses  metric.Int64Counter
	added   metric.Int64Counter
	removed metric.Int64Counter
	attrs   metric.MeasurementOption
}

var _ cache.Observer = (*MetricsObserver)(nil)

// NewMetricsObserver returns an observer recording counters tagged with
// cacheName.
func NewMetricsObserver(cacheName string, opts ...Option) (*MetricsObserver, error) {
	cfg := applyOptions(opts)
	meter := cfg.meterProvider.Meter(InstrumentationName)

	var o MetricsObserver
	for _, c := range []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&o.hits, MetricHits, "Reads answered from the cache"},
		{&o.misses, MetricMisses, "Reads that called the loader"},
		{&o.added, MetricAdded, "Entities stored"},
		{&o.removed, MetricRemoved, "Entities removed or evicted"},
	} {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(unitEvents))
		if err != nil {
			return nil, errors.Wrapf(err, "telemetry: creating counter %s", c.name)
		}
		*c.dst = counter
	}
	o.attrs = metric.WithAttributes(CacheNameKey.String(cacheName))
	return &o, nil
}

func (o *MetricsObserver) OnCacheEvent(e cache.Event) {
	ctx := context.Background()
	kind := metric.WithAttributes(KindKey.String(e.ID.Kind))
	switch e.Type {
	case cache.EventCacheHit:
		o.hits.Add(ctx, 1, o.attrs, kind)
	case cache.EventCacheMiss:
		o.misses.Add(ctx, 1, o.attrs, kind)
	case cache.EventItemAdded:
		o.added.Add(ctx, 1, o.attrs, kind)
	case cache.EventItemRemoved:
		o.removed.Add(ctx, 1, o.attrs, kind)
	}
}
