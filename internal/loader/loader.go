package loader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/valyala/fastjson"
	"go.opentelemetry.io/otel/trace"

	"github.com/growdu/pg-ferret/internal/metrics"
	"github.com/growdu/pg-ferret/internal/model"
)

// sentinelParentHex is the all-zero parent id meaning "no parent".
const sentinelParentHex = "0000000000000000"

// Policy controls what happens when a line cannot be turned into a record.
type Policy string

const (
	// Skip drops the malformed record, logs it and keeps going. Safer when
	// partial data loss is tolerable.
	Skip Policy = "skip"

	// Fail aborts the whole run on the first malformed record. Safer when a
	// global time offset will be computed from every timestamp.
	Fail Policy = "fail"
)

// RejectError describes why a single record was rejected. Reason doubles as
// the metric label.
type RejectError struct {
	Reason string
	msg    string
}

func (e *RejectError) Error() string { return e.msg }

func rejectf(reason, format string, args ...any) *RejectError {
	return &RejectError{Reason: reason, msg: fmt.Sprintf(format, args...)}
}

// Loader reads NDJSON capture files into memory.
type Loader struct {
	policy  Policy
	metrics *metrics.Metrics
	pool    fastjson.ParserPool
}

// New creates a Loader with the given malformed-record policy. m may be nil.
func New(policy Policy, m *metrics.Metrics) *Loader {
	return &Loader{policy: policy, metrics: m}
}

// LoadFile loads a capture file. Files ending in .gz are decompressed
// transparently.
func (l *Loader) LoadFile(path string) ([]model.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening capture file: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("opening gzip stream: %w", err)
		}
		defer zr.Close()
		r = zr
	}
	return l.Load(r)
}

// Load reads one record per line. Blank lines are skipped. An empty input
// yields zero records and no error.
func (l *Loader) Load(r io.Reader) ([]model.Record, error) {
	p := l.pool.Get()
	defer l.pool.Put(p)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var records []model.Record
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		rec, err := parseLine(p, line)
		if err != nil {
			if l.policy == Fail {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			slog.Warn("skipping malformed record", "line", lineNo, "error", err)
			if l.metrics != nil {
				l.metrics.RecordsRejected.WithLabelValues(reasonOf(err)).Inc()
			}
			continue
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading capture input: %w", err)
	}
	if l.metrics != nil {
		l.metrics.RecordsLoaded.Add(float64(len(records)))
	}
	return records, nil
}

func reasonOf(err error) string {
	var rej *RejectError
	if errors.As(err, &rej) {
		return rej.Reason
	}
	return "unknown"
}

func parseLine(p *fastjson.Parser, line []byte) (model.Record, error) {
	var rec model.Record

	v, err := p.ParseBytes(line)
	if err != nil {
		return rec, rejectf("bad_json", "invalid JSON: %v", err)
	}

	traceHex := string(v.GetStringBytes("traceId"))
	if traceHex == "" {
		return rec, rejectf("missing_field", "missing traceId")
	}
	rec.TraceID, err = trace.TraceIDFromHex(traceHex)
	if err != nil {
		return rec, rejectf("bad_id", "traceId %q: %v", traceHex, err)
	}

	spanHex := string(v.GetStringBytes("spanId"))
	if spanHex == "" {
		return rec, rejectf("missing_field", "missing spanId")
	}
	rec.SpanID, err = trace.SpanIDFromHex(spanHex)
	if err != nil {
		return rec, rejectf("bad_id", "spanId %q: %v", spanHex, err)
	}

	rec.Name = string(v.GetStringBytes("name"))
	if rec.Name == "" {
		return rec, rejectf("missing_field", "missing name")
	}

	rec.Start, err = nanos(v.Get("startTimeUnixNano"))
	if err != nil {
		return rec, rejectf("bad_timestamp", "startTimeUnixNano: %v", err)
	}
	rec.End, err = nanos(v.Get("endTimeUnixNano"))
	if err != nil {
		return rec, rejectf("bad_timestamp", "endTimeUnixNano: %v", err)
	}
	if rec.End < rec.Start {
		return rec, rejectf("negative_duration", "end %d precedes start %d", rec.End, rec.Start)
	}

	// Missing, empty or all-zero parent ids all collapse to the sentinel.
	if parentHex := string(v.GetStringBytes("parentSpanId")); parentHex != "" && parentHex != sentinelParentHex {
		rec.ParentSpanID, err = trace.SpanIDFromHex(parentHex)
		if err != nil {
			return rec, rejectf("bad_id", "parentSpanId %q: %v", parentHex, err)
		}
	}

	rec.ThreadID, err = threadID(v.Get("threadId"))
	if err != nil {
		return rec, rejectf("bad_thread", "threadId: %v", err)
	}

	rec.Attrs, err = attributes(v.Get("attributes"))
	if err != nil {
		return rec, rejectf("bad_attribute", "attributes: %v", err)
	}
	return rec, nil
}

// nanos accepts a timestamp as a JSON number or, as OTLP JSON encodes 64-bit
// integers, a decimal string.
func nanos(v *fastjson.Value) (int64, error) {
	if v == nil {
		return 0, errors.New("missing")
	}
	switch v.Type() {
	case fastjson.TypeNumber:
		return v.Int64()
	case fastjson.TypeString:
		b, _ := v.StringBytes()
		n, err := strconv.ParseInt(string(b), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("non-numeric %q", b)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unexpected type %s", v.Type())
	}
}

func threadID(v *fastjson.Value) (string, error) {
	if v == nil {
		return "", nil
	}
	switch v.Type() {
	case fastjson.TypeString:
		b, _ := v.StringBytes()
		return string(b), nil
	case fastjson.TypeNumber:
		n, err := v.Int64()
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(n, 10), nil
	default:
		return "", fmt.Errorf("unexpected type %s", v.Type())
	}
}

func attributes(v *fastjson.Value) ([]model.Attribute, error) {
	if v == nil {
		return nil, nil
	}
	items, err := v.Array()
	if err != nil {
		return nil, err
	}
	attrs := make([]model.Attribute, 0, len(items))
	for _, item := range items {
		key := string(item.GetStringBytes("key"))
		if key == "" {
			return nil, errors.New("attribute without key")
		}
		val, err := anyValue(item.Get("value"))
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", key, err)
		}
		attrs = append(attrs, model.Attribute{Key: key, Value: val})
	}
	return attrs, nil
}

// anyValue accepts either a plain JSON scalar or the OTLP AnyValue object
// form ({"stringValue": ...} etc.). Composite values are kept as their JSON
// encoding.
func anyValue(v *fastjson.Value) (any, error) {
	if v == nil {
		return nil, errors.New("missing value")
	}
	switch v.Type() {
	case fastjson.TypeString:
		b, _ := v.StringBytes()
		return string(b), nil
	case fastjson.TypeTrue, fastjson.TypeFalse:
		return v.Bool()
	case fastjson.TypeNumber:
		if n, err := v.Int64(); err == nil {
			return n, nil
		}
		return v.Float64()
	case fastjson.TypeNull:
		return nil, nil
	case fastjson.TypeObject:
		if sv := v.Get("stringValue"); sv != nil {
			b, _ := sv.StringBytes()
			return string(b), nil
		}
		if iv := v.Get("intValue"); iv != nil {
			return nanos(iv)
		}
		if dv := v.Get("doubleValue"); dv != nil {
			return dv.Float64()
		}
		if bv := v.Get("boolValue"); bv != nil {
			return bv.Bool()
		}
		return string(v.MarshalTo(nil)), nil
	default:
		return string(v.MarshalTo(nil)), nil
	}
}
