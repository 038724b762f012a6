package options

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/tidwall/gjson"
)

// DefaultPreservedPaths lists the settings carried from a response into the
// follow-up request of a chained conversation.
var DefaultPreservedPaths = [][]string{
	{"model"},
	{"reasoning", "effort"},
	{"text", "verbosity"},
}

// ParsePath splits a dotted path such as "reasoning.effort" into segments.
func ParsePath(dotted string) []string {
	if dotted == "" {
		return nil
	}

	return strings.Split(dotted, ".")
}

// PreservePaths copies the value found at each path of source into opts,
// unless opts already holds a non-null value there. Missing intermediate
// containers are created and sibling keys are left alone. A copy is returned.
func PreservePaths(opts Options, source json.RawMessage, paths [][]string) Options {
	out := opts.Clone()
	if out == nil {
		out = Options{}
	}

	for _, path := range paths {
		if len(path) == 0 {
			continue
		}

		if v, ok := Get(out, path); ok && v != nil {
			continue
		}

		src := gjson.GetBytes(source, GJSONPath(path))
		if !src.Exists() || src.Type == gjson.Null {
			continue
		}

		set(out, path, fromJSONValue(src.Value()))
	}

	return out
}

// DropPreservedPaths removes preserved values that the target provider does
// not support. A path is only removed when the user did not set it
// explicitly, the previous body held a value there, and opts still carries
// exactly that value. Containers left empty by the removal are pruned.
func DropPreservedPaths(opts Options, previousBody json.RawMessage, user Options, unsupported [][]string) Options {
	out := opts.Clone()
	if out == nil {
		return Options{}
	}

	for _, path := range unsupported {
		if len(path) == 0 {
			continue
		}

		if _, ok := Get(user, path); ok {
			continue
		}

		prev := gjson.GetBytes(previousBody, GJSONPath(path))
		if !prev.Exists() || prev.Type == gjson.Null {
			continue
		}

		cur, ok := Get(out, path)
		if !ok || !sameJSON(cur, prev.Value()) {
			continue
		}

		remove(out, path)
	}

	return out
}

// Get returns the value stored at path and whether the path is present.
func Get(opts Options, path []string) (any, bool) {
	var cur any = opts

	for _, seg := range path {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}

		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}

	return cur, true
}

// Has reports whether path holds a non-null value.
func Has(opts Options, path []string) bool {
	v, ok := Get(opts, path)
	return ok && v != nil
}

// GJSONPath escapes path segments into a gjson query.
func GJSONPath(path []string) string {
	escaped := make([]string, len(path))
	for i, seg := range path {
		escaped[i] = escapeSegment(seg)
	}

	return strings.Join(escaped, ".")
}

func escapeSegment(seg string) string {
	var b strings.Builder

	for _, r := range seg {
		switch r {
		case '.', '*', '?', '|', '#', '@', '!', '\\', '=', '<', '>', '%':
			b.WriteByte('\\')
		}

		b.WriteRune(r)
	}

	return b.String()
}

func set(opts Options, path []string, value any) {
	cur := map[string]any(opts)

	for _, seg := range path[:len(path)-1] {
		next, present := cur[seg]
		if !present || next == nil {
			child := Options{}
			cur[seg] = child
			cur = child

			continue
		}

		m, ok := asMap(next)
		if !ok {
			// a scalar already sits where a container is needed
			return
		}

		cur = m
	}

	cur[path[len(path)-1]] = value
}

func remove(opts Options, path []string) {
	parents := make([]map[string]any, 0, len(path))
	cur := map[string]any(opts)

	for _, seg := range path[:len(path)-1] {
		parents = append(parents, cur)

		m, ok := asMap(cur[seg])
		if !ok {
			return
		}

		cur = m
	}

	delete(cur, path[len(path)-1])

	for i := len(parents) - 1; i >= 0; i-- {
		child, _ := asMap(parents[i][path[i]])
		if len(child) > 0 {
			break
		}

		delete(parents[i], path[i])
	}
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case Options:
		return m, true
	case map[string]any:
		return m, true
	}

	return nil, false
}

// fromJSONValue converts decoded JSON objects into Options so that later
// lookups treat them like user supplied containers.
func fromJSONValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(Options, len(val))
		for k, inner := range val {
			out[k] = fromJSONValue(inner)
		}

		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = fromJSONValue(inner)
		}

		return out
	default:
		return v
	}
}

func sameJSON(a, b any) bool {
	ra, err := json.Marshal(a)
	if err != nil {
		return false
	}

	rb, err := json.Marshal(b)
	if err != nil {
		return false
	}

	var va, vb any
	if json.Unmarshal(ra, &va) != nil || json.Unmarshal(rb, &vb) != nil {
		return false
	}

	return reflect.DeepEqual(va, vb)
}
