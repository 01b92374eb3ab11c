package policy

// OrderedMap preserves key declaration order. Role resolution is
// first-match over the declared order of the "roles" object (policy.md
// §3), but Go's map[string]any does not preserve insertion order, so the
// document decoders (DecodeJSON, DecodeYAML) build an OrderedMap for every
// JSON/YAML object instead of a plain map.
type OrderedMap []OrderedEntry

// OrderedEntry is a single key/value pair within an OrderedMap.
type OrderedEntry struct {
	Key   string
	Value any
}

// Get returns the value for key and whether it was present.
func (m OrderedMap) Get(key string) (any, bool) {
	for _, e := range m {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// asOrdered normalizes v into an OrderedMap. OrderedMap values pass
// through unchanged; map[string]any values (e.g. built by hand in tests or
// by callers that don't need order-sensitive validation) are accepted too,
// but their iteration order is Go's map order — not contractually
// meaningful. Anything else returns ok=false.
func asOrdered(v any) (OrderedMap, bool) {
	switch t := v.(type) {
	case OrderedMap:
		return t, true
	case map[string]any:
		out := make(OrderedMap, 0, len(t))
		for k, val := range t {
			out = append(out, OrderedEntry{Key: k, Value: val})
		}
		return out, true
	case nil:
		return nil, false
	default:
		return nil, false
	}
}
