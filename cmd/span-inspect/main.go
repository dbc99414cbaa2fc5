package main

import (
	"encoding/json"
	"flag"
	"log/slog"
	"os"

	"github.com/growdu/pg-ferret/internal/inspect"
	"github.com/growdu/pg-ferret/internal/loader"
)

func main() {
	var (
		file   = flag.String("file", "", "capture file (NDJSON, optionally .gz)")
		format = flag.String("format", "text", "output format: text or json")
	)
	flag.Parse()

	if *file == "" {
		slog.Error("no capture file given; set -file")
		os.Exit(1)
	}

	// Inspection tolerates partial data; malformed lines are skipped.
	ld := loader.New(loader.Skip, nil)
	records, err := ld.LoadFile(*file)
	if err != nil {
		slog.Error("failed to load capture", "file", *file, "error", err)
		os.Exit(1)
	}

	report := inspect.Analyze(records)

	switch *format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			slog.Error("failed to encode report", "error", err)
			os.Exit(1)
		}
	default:
		slog.Info("capture summary", "file", *file,
			"records", report.Records,
			"traces", report.Traces,
			"roots", report.Roots,
			"max_depth", report.MaxDepth)
		slog.Info("data loss", "orphans", report.Orphans, "severity", report.Severity)
		for _, parent := range report.MissingParents {
			slog.Warn("referenced parent span missing from capture", "parent_span_id", parent)
		}
		for thread, count := range report.ThreadSpans {
			slog.Info("thread spans", "thread", thread, "count", count)
		}
	}
}
