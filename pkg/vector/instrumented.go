package vector

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aileronlabs/aileron/pkg/observability"
)

// instrumentedProvider wraps a Provider with spans and query metrics.
// The factory applies it to every provider, so the read paths record
// uniformly regardless of backend.
type instrumentedProvider struct {
	inner Provider
}

func instrument(p Provider) Provider {
	return &instrumentedProvider{inner: p}
}

func (ip *instrumentedProvider) ListCollections(ctx context.Context) ([]CollectionStat, error) {
	var stats []CollectionStat
	err := ip.observe(ctx, "list_collections", "", func(ctx context.Context) error {
		var err error
		stats, err = ip.inner.ListCollections(ctx)
		return err
	})
	return stats, err
}

func (ip *instrumentedProvider) SimilaritySearch(ctx context.Context, collection string, vector []float32, k int, filter map[string]string) ([]Document, error) {
	var docs []Document
	err := ip.observe(ctx, "similarity_search", collection, func(ctx context.Context) error {
		var err error
		docs, err = ip.inner.SimilaritySearch(ctx, collection, vector, k, filter)
		return err
	})
	return docs, err
}

func (ip *instrumentedProvider) MetadataLookup(ctx context.Context, collection string, filter map[string]string, limit int) ([]Document, error) {
	var docs []Document
	err := ip.observe(ctx, "metadata_lookup", collection, func(ctx context.Context) error {
		var err error
		docs, err = ip.inner.MetadataLookup(ctx, collection, filter, limit)
		return err
	})
	return docs, err
}

func (ip *instrumentedProvider) Name() string {
	return ip.inner.Name()
}

func (ip *instrumentedProvider) Close() error {
	return ip.inner.Close()
}

// observe runs op inside a store.query span and reports its duration
// to the recorder.
func (ip *instrumentedProvider) observe(ctx context.Context, operation, collection string, op func(context.Context) error) error {
	start := time.Now()

	attrs := []attribute.KeyValue{
		attribute.String(observability.AttrStoreProvider, ip.inner.Name()),
		attribute.String("store.operation", operation),
	}
	if collection != "" {
		attrs = append(attrs, attribute.String(observability.AttrStoreCollection, collection))
	}

	tracer := observability.GetTracer("aileron.vector")
	ctx, span := tracer.Start(ctx, observability.SpanStoreQuery, trace.WithAttributes(attrs...))
	defer span.End()

	err := op(ctx)
	duration := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "success")
	}

	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordStoreQuery(ctx, ip.inner.Name(), operation, duration, err)
	}

	return err
}
