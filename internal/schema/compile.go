package schema

import "github.com/Davincible/responses-go/internal/options"

// WrappedArrayProperty is the property that carries a root-level array once
// it has been wrapped into an object.
const WrappedArrayProperty = "items"

// Compile turns a description into the structured-output format block sent
// as text.format: {name, type, strict, schema}.
func Compile(spec any) (map[string]any, error) {
	doc, err := Document(spec)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"name":   "data",
		"type":   "json_schema",
		"strict": true,
		"schema": doc,
	}, nil
}

// Document compiles a description into a bare JSON Schema document. A root
// array is wrapped into an object with a single required "items" property
// because the upstream APIs only accept objects at the top level.
func Document(spec any) (map[string]any, error) {
	root, err := normalize(spec)
	if err != nil {
		return nil, err
	}

	if root.kind == arrayNode {
		root = &node{
			kind:   objectNode,
			fields: []namedNode{{name: WrappedArrayProperty, node: root}},
		}
	}

	return build(root), nil
}

func build(n *node) map[string]any {
	switch n.kind {
	case arrayNode:
		return map[string]any{
			"type":  string(Array),
			"items": build(n.items),
		}
	case unionNode:
		variants := make([]any, len(n.variants))
		for i, v := range n.variants {
			variants[i] = build(v)
		}

		return map[string]any{"anyOf": variants}
	case objectNode:
		properties := make(map[string]any, len(n.fields))
		required := make([]string, len(n.fields))

		for i, f := range n.fields {
			properties[f.name] = build(f.node)
			required[i] = f.name
		}

		return map[string]any{
			"type":                 string(Object),
			"properties":           properties,
			"additionalProperties": false,
			"required":             required,
		}
	default:
		leaf := map[string]any{"type": n.typeName}
		for k, v := range n.opts {
			if k == "type" {
				continue
			}

			leaf[k] = v
		}

		return leaf
	}
}

// IsWrappedArray reports whether doc has the exact shape Document produces
// for a root array. The check is structural: a hand-written object schema
// with a sole required array property named "items" matches as well.
func IsWrappedArray(doc any) bool {
	m, ok := asMap(doc)
	if !ok || m["type"] != string(Object) {
		return false
	}

	props, ok := asMap(m["properties"])
	if !ok || len(props) != 1 {
		return false
	}

	items, ok := asMap(props[WrappedArrayProperty])
	if !ok || items["type"] != string(Array) {
		return false
	}

	switch req := m["required"].(type) {
	case []string:
		return len(req) == 1 && req[0] == WrappedArrayProperty
	case []any:
		return len(req) == 1 && req[0] == WrappedArrayProperty
	}

	return false
}

// Unwrap returns the array carried by a parsed wrapped-array document, or
// the value unchanged when it is not such a document.
func Unwrap(parsed any) any {
	if m, ok := asMap(parsed); ok {
		if items, has := m[WrappedArrayProperty]; has {
			return items
		}
	}

	return parsed
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case options.Options:
		return m, true
	}

	return nil, false
}
