package telemetry

import (
	"context"
	"fmt"

	"github.com/agentuity/go-entitycache/cache"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// KindKey and KeyKey carry the identity of the entity a span or measurement
// is about.
const (
	KindKey = attribute.Key("entitycache.kind")
	KeyKey  = attribute.Key("entitycache.key")
)

// SpanLoad is the name of the span TraceLoader starts.
const SpanLoad = "entitycache.load"

// TraceLoader wraps loader so every call runs in a span, child of the span
// in ctx if any. A failing load marks the span as errored.
func TraceLoader[E cache.Entity](ctx context.Context, loader cache.Loader[E], opts ...Option) cache.Loader[E] {
	tracer := applyOptions(opts).tracerProvider.Tracer(InstrumentationName)
	return func(id cache.Identity) (E, error) {
		_, span := tracer.Start(ctx, SpanLoad,
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(
				KindKey.String(id.Kind),
				KeyKey.String(fmt.Sprint(id.Value)),
			),
		)
		defer span.End()
		entity, err := loader(id)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return entity, err
	}
}
