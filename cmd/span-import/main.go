package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/growdu/pg-ferret/internal/client"
	"github.com/growdu/pg-ferret/internal/config"
	"github.com/growdu/pg-ferret/internal/loader"
	"github.com/growdu/pg-ferret/internal/metrics"
	"github.com/growdu/pg-ferret/internal/model"
	"github.com/growdu/pg-ferret/internal/otelemit"
	"github.com/growdu/pg-ferret/internal/replay"
)

func main() {
	var (
		file       = flag.String("file", "", "capture file (NDJSON, optionally .gz); overrides config")
		endpoint   = flag.String("endpoint", "", "OTLP gRPC endpoint; overrides config")
		strategy   = flag.String("strategy", "", "reconstruction strategy (tree or stack); overrides config")
		timePolicy = flag.String("time-policy", "", "timestamp policy (global-offset or per-span-rebase); overrides config")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *file != "" {
		cfg.Import.File = *file
	}
	if *endpoint != "" {
		cfg.OTLP.Endpoint = *endpoint
	}
	if *strategy != "" {
		cfg.Import.Strategy = *strategy
	}
	if *timePolicy != "" {
		cfg.Import.TimePolicy = *timePolicy
	}
	if err := config.Finalize(cfg); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}
	if cfg.Import.File == "" {
		slog.Error("no capture file given; set -file or import.file")
		os.Exit(1)
	}

	m := metrics.New(cfg.Namespace)
	if cfg.MetricsAddr != "" {
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.MetricsAddr, nil); err != nil {
				slog.Error("metrics listener failed", "error", err)
			}
		}()
	}

	ctx := context.Background()

	ld := loader.New(loader.Policy(cfg.Import.OnMalformed), m)
	records, err := ld.LoadFile(cfg.Import.File)
	if err != nil {
		slog.Error("failed to load capture", "file", cfg.Import.File, "error", err)
		os.Exit(1)
	}
	slog.Info("loaded records", "file", cfg.Import.File, "count", len(records))

	emitter, err := otelemit.New(ctx, otelemit.Options{
		Endpoint:    cfg.OTLP.Endpoint,
		ServiceName: cfg.OTLP.ServiceName,
		Insecure:    cfg.OTLP.Insecure,
	})
	if err != nil {
		slog.Error("failed to create OTLP emitter", "error", err)
		os.Exit(1)
	}

	em := replay.Throttled(emitter, cfg.Import.SpansPerSecond)
	if cfg.Import.SpansPerSecond > 0 {
		slog.Info("throttling emission", "spans_per_second", cfg.Import.SpansPerSecond)
	}

	// One "now", captured once, so the whole run rebases consistently.
	now := time.Now().UnixNano()
	var tp replay.TimePolicy
	switch cfg.Import.TimePolicy {
	case config.TimePolicyGlobalOffset:
		tp = replay.NewGlobalOffset(now, records)
	case config.TimePolicyPerSpanRebase:
		tp = replay.NewPerSpanRebase(nil)
	}
	slog.Info("replaying capture", "strategy", cfg.Import.Strategy, "time_policy", cfg.Import.TimePolicy)

	start := time.Now()
	var emitted int
	switch cfg.Import.Strategy {
	case config.StrategyTree:
		forest := replay.BuildForest(records, m)
		slog.Info("reconstructed forest", "roots", len(forest.Roots))
		emitted, err = replay.EmitForest(ctx, forest, em, tp)
	case config.StrategyStack:
		emitted, err = replay.EmitByThread(ctx, records, em, tp)
	}
	m.SpansEmitted.Add(float64(emitted))
	m.EmitDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		_ = emitter.Shutdown(ctx)
		slog.Error("emission failed", "emitted", emitted, "error", err)
		os.Exit(1)
	}

	if err := emitter.Shutdown(ctx); err != nil {
		slog.Error("exporter shutdown failed", "error", err)
		os.Exit(1)
	}
	slog.Info("import complete", "spans", emitted, "duration", time.Since(start))

	if cfg.Verify.Enabled {
		verify(ctx, cfg, records)
	}
}

// verify fetches each imported trace back from the query frontend and logs
// whether it arrived. Failures are reported, never fatal.
func verify(ctx context.Context, cfg *config.Config, records []model.Record) {
	tc, err := client.NewTempoClient(cfg.Verify.QueryEndpoint, cfg.Verify.TenantID, cfg.Verify.TokenPath)
	if err != nil {
		slog.Error("failed to create verification client", "error", err)
		return
	}

	seen := make(map[trace.TraceID]struct{})
	for i := range records {
		id := records[i].TraceID
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		resp, err := tc.TraceByID(ctx, id.String())
		if errors.Is(err, client.ErrTraceNotFound) {
			slog.Warn("trace not found after import", "trace_id", id.String())
			continue
		}
		if err != nil {
			slog.Warn("trace verification failed", "trace_id", id.String(), "error", err)
			continue
		}
		slog.Info("verified trace", "trace_id", id.String(), "spans", resp.SpanCount())
	}
}
