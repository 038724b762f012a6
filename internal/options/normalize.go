package options

import (
	"fmt"
	"reflect"
	"sort"
)

// Options is the canonical, string-keyed form of user supplied request options.
type Options map[string]any

// Pair is one entry of an ordered key-value sequence.
type Pair struct {
	Key   any
	Value any
}

// P is shorthand for building a Pair.
func P(key, value any) Pair {
	return Pair{Key: key, Value: value}
}

// FormatError reports an options value that cannot be normalized.
type FormatError struct {
	Value  any
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid options format (%s): %#v", e.Reason, e.Value)
}

// Normalize converts a mapping or an ordered key-value sequence into Options.
// Nested mappings are normalized recursively. Nested sequences made only of
// pairs are read as option sets when that succeeds and kept as literal
// sequences otherwise. The input is never mutated.
func Normalize(input any) (Options, error) {
	if input == nil {
		return Options{}, nil
	}

	if pairs, ok := asPairs(input); ok {
		return fromPairs(pairs, input)
	}

	rv := reflect.ValueOf(input)
	if rv.Kind() == reflect.Map {
		return fromMap(rv)
	}

	return nil, &FormatError{Value: input, Reason: "expected a mapping or a key-value sequence"}
}

// MustNormalize is Normalize for literals known to be well formed.
func MustNormalize(input any) Options {
	opts, err := Normalize(input)
	if err != nil {
		panic(err)
	}

	return opts
}

func fromPairs(pairs []Pair, source any) (Options, error) {
	out := make(Options, len(pairs))

	for _, p := range pairs {
		key, err := KeyString(p.Key)
		if err != nil {
			return nil, &FormatError{Value: source, Reason: err.Error()}
		}

		v, err := normalizeValue(p.Value)
		if err != nil {
			return nil, err
		}

		out[key] = v
	}

	return out, nil
}

func fromMap(rv reflect.Value) (Options, error) {
	out := make(Options, rv.Len())

	iter := rv.MapRange()
	for iter.Next() {
		key, err := KeyString(iter.Key().Interface())
		if err != nil {
			return nil, &FormatError{Value: rv.Interface(), Reason: err.Error()}
		}

		v, err := normalizeValue(iter.Value().Interface())
		if err != nil {
			return nil, err
		}

		out[key] = v
	}

	return out, nil
}

// trial is the outcome of reading a sequence: exactly one of opts or list is set.
type trial struct {
	opts Options
	list []any
}

func normalizeValue(v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch val := v.(type) {
	case string, bool, float64, float32, int, int64, int32, uint, uint64, uint32:
		return val, nil
	case Pair:
		return nil, &FormatError{Value: v, Reason: "pair outside of a key-value sequence"}
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		return fromMap(rv)
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return v, nil
		}

		t, err := readSequence(v, rv)
		if err != nil {
			return nil, err
		}

		if t.opts != nil {
			return t.opts, nil
		}

		return t.list, nil
	default:
		return v, nil
	}
}

// readSequence tries the option-set reading first and falls back to a
// literal list when that attempt fails.
func readSequence(v any, rv reflect.Value) (trial, error) {
	if pairs, ok := asPairs(v); ok && len(pairs) > 0 {
		if opts, err := fromPairs(pairs, v); err == nil {
			return trial{opts: opts}, nil
		}
	}

	list := make([]any, rv.Len())
	for i := range list {
		elem := rv.Index(i).Interface()
		if p, ok := elem.(Pair); ok {
			elem = []any{p.Key, p.Value}
		}

		n, err := normalizeValue(elem)
		if err != nil {
			return trial{}, err
		}

		list[i] = n
	}

	return trial{list: list}, nil
}

// asPairs reports whether v is an ordered key-value sequence.
func asPairs(v any) ([]Pair, bool) {
	switch val := v.(type) {
	case []Pair:
		return val, true
	case [][2]any:
		pairs := make([]Pair, len(val))
		for i, p := range val {
			pairs[i] = Pair{Key: p[0], Value: p[1]}
		}

		return pairs, true
	case []any:
		pairs := make([]Pair, 0, len(val))
		for _, elem := range val {
			p, ok := AsPair(elem)
			if !ok {
				return nil, false
			}

			pairs = append(pairs, p)
		}

		return pairs, true
	}

	return nil, false
}

// AsPair reports whether v is a single key-value pair.
func AsPair(v any) (Pair, bool) {
	switch val := v.(type) {
	case Pair:
		return val, true
	case [2]any:
		return Pair{Key: val[0], Value: val[1]}, true
	case []any:
		if len(val) == 2 {
			return Pair{Key: val[0], Value: val[1]}, true
		}
	}

	return Pair{}, false
}

// KeyString converts a key of any supported representation to a string.
func KeyString(k any) (string, error) {
	switch key := k.(type) {
	case string:
		return key, nil
	case fmt.Stringer:
		return key.String(), nil
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprint(key), nil
	}

	rv := reflect.ValueOf(k)
	if rv.IsValid() && rv.Kind() == reflect.String {
		return rv.String(), nil
	}

	return "", fmt.Errorf("unsupported key %#v", k)
}

// Keys returns the keys of o in lexicographic order.
func (o Options) Keys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// Clone returns a deep copy of o.
func (o Options) Clone() Options {
	if o == nil {
		return nil
	}

	return deepCopy(o).(Options)
}

func deepCopy(v any) any {
	switch val := v.(type) {
	case Options:
		out := make(Options, len(val))
		for k, inner := range val {
			out[k] = deepCopy(inner)
		}

		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = deepCopy(inner)
		}

		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = deepCopy(inner)
		}

		return out
	default:
		return v
	}
}
