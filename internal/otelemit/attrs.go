package otelemit

import (
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
)

// toKeyValue converts a loaded attribute value into an OTel attribute.
// Composite values are carried as their JSON encoding, the same fallback
// zipkin-style exporters use for slice attributes.
func toKeyValue(key string, value any) (attribute.KeyValue, error) {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v), nil
	case bool:
		return attribute.Bool(key, v), nil
	case int:
		return attribute.Int(key, v), nil
	case int64:
		return attribute.Int64(key, v), nil
	case float64:
		return attribute.Float64(key, v), nil
	case nil:
		return attribute.String(key, ""), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return attribute.KeyValue{}, fmt.Errorf("attribute %q: %w", key, err)
		}
		return attribute.String(key, string(data)), nil
	}
}
