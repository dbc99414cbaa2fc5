package otelemit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	oteltrace "go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/growdu/pg-ferret/internal/replay"
)

// Options configure the adapter.
type Options struct {
	// Endpoint is the OTLP gRPC collector address, host:port.
	Endpoint string

	// ServiceName becomes the service.name resource attribute. Defaults to
	// "postgres", the service the capture pipeline instruments.
	ServiceName string

	// Insecure disables transport security on the exporter connection.
	Insecure bool
}

// Emitter implements replay.Emitter over the OpenTelemetry SDK. Batching and
// transport live here, on the exporter side of the scope contract, where the
// traversal cannot depend on them.
type Emitter struct {
	provider *sdktrace.TracerProvider
	tracer   oteltrace.Tracer
	idgen    *replayIDGenerator
}

// New dials an OTLP gRPC exporter and builds the adapter around it.
func New(ctx context.Context, opts Options) (*Emitter, error) {
	grpcOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(opts.Endpoint)}
	if opts.Insecure {
		grpcOpts = append(grpcOpts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
	}
	exp, err := otlptracegrpc.New(ctx, grpcOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP exporter: %w", err)
	}
	return NewWithExporter(ctx, exp, opts)
}

// NewWithExporter builds the adapter around an explicit span exporter. Tests
// use this with an in-memory exporter.
func NewWithExporter(ctx context.Context, exp sdktrace.SpanExporter, opts Options) (*Emitter, error) {
	service := opts.ServiceName
	if service == "" {
		service = "postgres"
	}

	// replay.run_id distinguishes repeated imports of the same capture.
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(service),
			attribute.String("replay.run_id", uuid.NewString()),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("building resource: %w", err)
	}

	idgen := &replayIDGenerator{}
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithIDGenerator(idgen),
	)

	return &Emitter{
		provider: provider,
		tracer:   provider.Tracer("pg-ferret/span-import"),
		idgen:    idgen,
	}, nil
}

// Begin opens an SDK span carrying the captured identity. A nil parent starts
// a new trace; otherwise the span nests under the given open scope.
func (e *Emitter) Begin(ctx context.Context, id replay.Identity, parent replay.Scope, name string, startUnixNano int64) (replay.Scope, error) {
	spanCtx := ctx
	if parent != nil {
		ps, ok := parent.(*scope)
		if !ok {
			return nil, fmt.Errorf("parent scope %T was not created by this emitter", parent)
		}
		spanCtx = ps.ctx
	}

	e.idgen.stage(id.TraceID, id.SpanID)
	spanCtx, span := e.tracer.Start(spanCtx, name,
		oteltrace.WithSpanKind(oteltrace.SpanKindInternal),
		oteltrace.WithTimestamp(time.Unix(0, startUnixNano)),
	)
	return &scope{ctx: spanCtx, span: span}, nil
}

// Shutdown flushes buffered spans and stops the provider.
func (e *Emitter) Shutdown(ctx context.Context) error {
	return e.provider.Shutdown(ctx)
}

type scope struct {
	ctx  context.Context
	span oteltrace.Span
	done bool
}

func (s *scope) SetAttribute(key string, value any) error {
	kv, err := toKeyValue(key, value)
	if err != nil {
		return err
	}
	s.span.SetAttributes(kv)
	return nil
}

func (s *scope) End(endUnixNano int64) error {
	if s.done {
		return nil
	}
	s.done = true
	s.span.End(oteltrace.WithTimestamp(time.Unix(0, endUnixNano)))
	return nil
}
