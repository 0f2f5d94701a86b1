package explore

import (
	"encoding"
	"fmt"
	"sort"

	"pokescout/internal/domain"
)

// TruncatedMarker is the sentinel value substituted when the depth limit is hit.
const TruncatedMarker = "max depth reached"

// Explorer converts an arbitrarily nested domain value into a depth- and
// width-bounded plain structure suitable for serialization to the reasoning
// service. List sampling and map truncation are deliberately lossy: the point
// is a bounded projection, not a full dump.
type Explorer struct {
	MaxDepth   int // depth at which exploration stops (counting from 0)
	SampleSize int // leading elements kept per sequence
	MapLimit   int // leading entries kept per mapping
}

// NewExplorer returns an Explorer with the given depth and the standard width
// bounds (3 sampled list elements, 10 map entries). maxDepth <= 0 falls back
// to 3.
func NewExplorer(maxDepth int) Explorer {
	if maxDepth <= 0 {
		maxDepth = 3
	}
	return Explorer{MaxDepth: maxDepth, SampleSize: 3, MapLimit: 10}
}

// Explore walks value and returns the bounded projection. It never panics and
// never returns an error: values it cannot interpret degrade to a type-tag
// placeholder string.
func (e Explorer) Explore(value any) any {
	return e.explore(value, 0)
}

func (e Explorer) explore(value any, depth int) any {
	if depth >= e.MaxDepth {
		return map[string]any{"_truncated": TruncatedMarker}
	}
	if value == nil {
		return nil
	}

	switch v := value.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return v

	case domain.Explorable:
		out := make(map[string]any, len(v.Fields()))
		for _, f := range v.Fields() {
			out[f.Name] = e.explore(f.Value, depth+1)
		}
		return out

	case []any:
		if len(v) == 0 {
			return []any{}
		}
		n := e.SampleSize
		if n > len(v) {
			n = len(v)
		}
		out := make([]any, n)
		for i := 0; i < n; i++ {
			out[i] = e.explore(v[i], depth+1)
		}
		return out

	case []string:
		// Common leaf shape from the tool backend; sampled like any sequence.
		if len(v) == 0 {
			return []any{}
		}
		n := e.SampleSize
		if n > len(v) {
			n = len(v)
		}
		out := make([]any, n)
		for i := 0; i < n; i++ {
			out[i] = v[i]
		}
		return out

	case map[string]any:
		// Map iteration order is not stable; take the first entries in sorted
		// key order so the projection is deterministic.
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if len(keys) > e.MapLimit {
			keys = keys[:e.MapLimit]
		}
		out := make(map[string]any, len(keys))
		for _, k := range keys {
			out[k] = e.explore(v[k], depth+1)
		}
		return out

	case fmt.Stringer:
		return v.String()

	case encoding.TextMarshaler:
		text, err := v.MarshalText()
		if err != nil {
			return fmt.Sprintf("<%T value>", value)
		}
		return string(text)

	case error:
		return v.Error()

	default:
		return fmt.Sprintf("<%T value>", value)
	}
}
