package metrics

import (
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the span importer
type Metrics struct {
	// Records accepted from the capture file
	RecordsLoaded prometheus.Counter

	// Records rejected as malformed, labelled by reason
	RecordsRejected *prometheus.CounterVec

	// Records whose declared parent was missing and were promoted to roots
	OrphansPromoted prometheus.Counter

	// Scopes emitted into the downstream pipeline
	SpansEmitted prometheus.Counter

	// Wall time spent in one emission pass
	EmitDuration prometheus.Histogram
}

// New initializes all Prometheus metrics once at startup
func New(namespace string) *Metrics {
	// Sanitize namespace for metric names
	sanitizedNs := strings.ReplaceAll(namespace, "-", "_")

	recordsLoaded := promauto.NewCounter(prometheus.CounterOpts{
		Namespace: sanitizedNs,
		Subsystem: "import",
		Name:      "records_loaded_total",
		Help:      "Total records accepted from the capture file",
	})

	recordsRejected := promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: sanitizedNs,
		Subsystem: "import",
		Name:      "records_rejected_total",
		Help:      "Total malformed records rejected during loading",
	}, []string{"reason"})

	orphansPromoted := promauto.NewCounter(prometheus.CounterOpts{
		Namespace: sanitizedNs,
		Subsystem: "import",
		Name:      "orphans_promoted_total",
		Help:      "Total records promoted to roots because their parent was absent",
	})

	spansEmitted := promauto.NewCounter(prometheus.CounterOpts{
		Namespace: sanitizedNs,
		Subsystem: "import",
		Name:      "spans_emitted_total",
		Help:      "Total scopes emitted into the downstream pipeline",
	})

	emitDuration := promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: sanitizedNs,
		Subsystem: "import",
		Name:      "emit_duration_seconds",
		Help:      "Wall time of one emission pass",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
	})

	slog.Info("metrics initialized", "namespace", namespace, "sanitized_namespace", sanitizedNs)

	return &Metrics{
		RecordsLoaded:   recordsLoaded,
		RecordsRejected: recordsRejected,
		OrphansPromoted: orphansPromoted,
		SpansEmitted:    spansEmitted,
		EmitDuration:    emitDuration,
	}
}
