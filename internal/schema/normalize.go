package schema

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/Davincible/responses-go/internal/options"
)

type nodeKind int

const (
	leafNode nodeKind = iota
	arrayNode
	unionNode
	objectNode
)

// node is the uniform tree every accepted description is reduced to.
type node struct {
	kind     nodeKind
	typeName string
	opts     options.Options
	items    *node
	variants []*node
	fields   []namedNode
}

type namedNode struct {
	name string
	node *node
}

func normalize(spec any) (*node, error) {
	switch s := spec.(type) {
	case nil:
		return nil, &SchemaError{Spec: spec, Reason: "empty description"}
	case withOptionsSpec:
		return leafWithOptions(s.typeName, s.options, spec)
	case arraySpec:
		return arrayOf(s.item)
	case unionSpec:
		return unionOf(s.variants, spec)
	case objectSpec:
		return orderedObject(s.fields, spec)
	case []Field:
		return orderedObject(s, spec)
	case Field:
		return nil, &SchemaError{Spec: spec, Reason: "field outside of an object"}
	case []options.Pair:
		return pairsObject(s, spec)
	case [][2]any:
		pairs := make([]options.Pair, len(s))
		for i, p := range s {
			pairs[i] = options.Pair{Key: p[0], Value: p[1]}
		}

		return pairsObject(pairs, spec)
	case [2]any:
		return leafWithOptions(s[0], s[1], spec)
	case []any:
		return normalizeSequence(s)
	}

	if name, ok := typeName(spec); ok {
		return simple(name, spec)
	}

	rv := reflect.ValueOf(spec)
	if rv.Kind() == reflect.Map {
		return mapObject(rv, spec)
	}

	return nil, &SchemaError{Spec: spec, Reason: "unsupported description"}
}

func normalizeSequence(seq []any) (*node, error) {
	if len(seq) == 0 {
		return nil, &SchemaError{Spec: seq, Reason: "empty sequence"}
	}

	if head, ok := typeName(seq[0]); ok {
		switch {
		case head == string(Array):
			if len(seq) != 2 {
				return nil, &SchemaError{Spec: seq, Reason: "array marker takes exactly one item description"}
			}

			return arrayOf(seq[1])
		case unionMarkers[head]:
			return unionOf(seq[1:], seq)
		case len(seq) == 2 && isOptionsShape(seq[1]):
			return leafWithOptions(seq[0], seq[1], seq)
		}
	}

	pairs := make([]options.Pair, 0, len(seq))
	for _, elem := range seq {
		p, ok := options.AsPair(elem)
		if !ok {
			return nil, &SchemaError{Spec: seq, Reason: "expected a type, a marker or (name, description) pairs"}
		}

		pairs = append(pairs, p)
	}

	return pairsObject(pairs, seq)
}

func simple(name string, spec any) (*node, error) {
	switch Type(name) {
	case Array:
		return nil, &SchemaError{Spec: spec, Reason: "array needs an item description"}
	case Object:
		return nil, &SchemaError{Spec: spec, Reason: "object needs field descriptions"}
	}

	if name == "" {
		return nil, &SchemaError{Spec: spec, Reason: "empty type name"}
	}

	return &node{kind: leafNode, typeName: name}, nil
}

func leafWithOptions(rawType, rawOpts, spec any) (*node, error) {
	name, ok := typeName(rawType)
	if !ok {
		return nil, &SchemaError{Spec: spec, Reason: "type name must be a string"}
	}

	n, err := simple(name, spec)
	if err != nil {
		return nil, err
	}

	opts, err := optionsFrom(rawOpts)
	if err != nil {
		return nil, &SchemaError{Spec: spec, Reason: err.Error()}
	}

	n.opts = opts

	return n, nil
}

// optionsFrom reads type options given as a mapping or a key-value sequence.
func optionsFrom(raw any) (options.Options, error) {
	// [[key, value]] is a frequent way to write a single option
	if seq, ok := raw.([]any); ok && len(seq) == 1 {
		if p, ok := options.AsPair(seq[0]); ok {
			key, err := options.KeyString(p.Key)
			if err != nil {
				return nil, err
			}

			inner, err := options.Normalize(map[string]any{key: p.Value})
			if err != nil {
				return nil, err
			}

			return inner, nil
		}
	}

	return options.Normalize(raw)
}

func isOptionsShape(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case options.Options, map[string]any, map[any]any, []options.Pair, [][2]any:
		return true
	case []any:
		if len(val) == 0 {
			return false
		}

		for _, elem := range val {
			if _, ok := options.AsPair(elem); !ok {
				return false
			}
		}

		return true
	}

	return reflect.ValueOf(v).Kind() == reflect.Map
}

func arrayOf(item any) (*node, error) {
	child, err := normalize(item)
	if err != nil {
		return nil, err
	}

	return &node{kind: arrayNode, items: child}, nil
}

func unionOf(variants []any, spec any) (*node, error) {
	if len(variants) == 0 {
		return nil, &SchemaError{Spec: spec, Reason: "union needs at least one variant"}
	}

	n := &node{kind: unionNode, variants: make([]*node, 0, len(variants))}
	for _, v := range variants {
		child, err := normalize(v)
		if err != nil {
			return nil, err
		}

		n.variants = append(n.variants, child)
	}

	return n, nil
}

func orderedObject(fields []Field, spec any) (*node, error) {
	n := &node{kind: objectNode, fields: make([]namedNode, 0, len(fields))}
	seen := make(map[string]bool, len(fields))

	for _, f := range fields {
		if f.Name == "" {
			return nil, &SchemaError{Spec: spec, Reason: "field name is empty"}
		}

		if seen[f.Name] {
			return nil, &SchemaError{Spec: spec, Reason: fmt.Sprintf("duplicate field %q", f.Name)}
		}

		seen[f.Name] = true

		child, err := normalize(f.Spec)
		if err != nil {
			return nil, err
		}

		n.fields = append(n.fields, namedNode{name: f.Name, node: child})
	}

	return n, nil
}

func pairsObject(pairs []options.Pair, spec any) (*node, error) {
	fields := make([]Field, 0, len(pairs))

	for _, p := range pairs {
		name, err := options.KeyString(p.Key)
		if err != nil {
			return nil, &SchemaError{Spec: spec, Reason: err.Error()}
		}

		fields = append(fields, Field{Name: name, Spec: p.Value})
	}

	return orderedObject(fields, spec)
}

// mapObject reads an unordered mapping; its required list is sorted.
func mapObject(rv reflect.Value, spec any) (*node, error) {
	fields := make([]Field, 0, rv.Len())

	iter := rv.MapRange()
	for iter.Next() {
		name, err := options.KeyString(iter.Key().Interface())
		if err != nil {
			return nil, &SchemaError{Spec: spec, Reason: err.Error()}
		}

		fields = append(fields, Field{Name: name, Spec: iter.Value().Interface()})
	}

	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })

	return orderedObject(fields, spec)
}

func typeName(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case Type:
		return string(t), true
	case fmt.Stringer:
		return t.String(), true
	}

	return "", false
}
