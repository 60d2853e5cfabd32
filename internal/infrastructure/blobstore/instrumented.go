package blobstore

import (
	"context"
	"errors"
	"time"

	"github.com/hilthontt/repochat/internal/domain"
	"github.com/hilthontt/repochat/internal/infrastructure/metrics"
	"github.com/hilthontt/repochat/internal/infrastructure/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Instrumented wraps a Client with a span and a metrics sample per call.
type Instrumented struct {
	next    Client
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

func NewInstrumented(next Client, m *metrics.Metrics) *Instrumented {
	return &Instrumented{
		next:    next,
		metrics: m,
		tracer:  tracing.GetTracer("blobstore"),
	}
}

func (i *Instrumented) observe(ctx context.Context, op Op, owner, path string, fn func(ctx context.Context) error) error {
	ctx, span := i.tracer.Start(ctx, "blobstore."+string(op), trace.WithAttributes(
		attribute.String("blobstore.owner", owner),
		attribute.String("blobstore.path", path),
	))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	i.metrics.ObserveBlobCall(string(op), err, time.Since(start))

	// Absent blobs are an expected answer, not a failure.
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (i *Instrumented) Get(ctx context.Context, owner, path string) (blob Blob, err error) {
	err = i.observe(ctx, OpGet, owner, path, func(ctx context.Context) error {
		blob, err = i.next.Get(ctx, owner, path)
		return err
	})
	return blob, err
}

func (i *Instrumented) Put(ctx context.Context, owner, path, content string, version Version) (v Version, err error) {
	err = i.observe(ctx, OpPut, owner, path, func(ctx context.Context) error {
		v, err = i.next.Put(ctx, owner, path, content, version)
		return err
	})
	return v, err
}

func (i *Instrumented) Create(ctx context.Context, owner, path, content string) (v Version, err error) {
	err = i.observe(ctx, OpCreate, owner, path, func(ctx context.Context) error {
		v, err = i.next.Create(ctx, owner, path, content)
		return err
	})
	return v, err
}

func (i *Instrumented) List(ctx context.Context, owner, dir string) (entries []Entry, err error) {
	err = i.observe(ctx, OpList, owner, dir, func(ctx context.Context) error {
		entries, err = i.next.List(ctx, owner, dir)
		return err
	})
	return entries, err
}

func (i *Instrumented) Delete(ctx context.Context, owner, path string) error {
	return i.observe(ctx, OpDelete, owner, path, func(ctx context.Context) error {
		return i.next.Delete(ctx, owner, path)
	})
}

func (i *Instrumented) ContainerExists(ctx context.Context, owner string) (ok bool, err error) {
	err = i.observe(ctx, OpContainerExists, owner, "", func(ctx context.Context) error {
		ok, err = i.next.ContainerExists(ctx, owner)
		return err
	})
	return ok, err
}

func (i *Instrumented) CreateContainer(ctx context.Context, owner string) error {
	return i.observe(ctx, OpCreateContainer, owner, "", func(ctx context.Context) error {
		return i.next.CreateContainer(ctx, owner)
	})
}
