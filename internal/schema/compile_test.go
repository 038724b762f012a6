package schema

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Davincible/responses-go/internal/options"
)

func TestCompile_Wrapper(t *testing.T) {
	format, err := Compile(map[string]any{"name": "string"})
	require.NoError(t, err)

	assert.Equal(t, "data", format["name"])
	assert.Equal(t, "json_schema", format["type"])
	assert.Equal(t, true, format["strict"])

	doc := format["schema"].(map[string]any)
	assert.Equal(t, "object", doc["type"])
	assert.Equal(t, false, doc["additionalProperties"])
	assert.Equal(t, []string{"name"}, doc["required"])
	assert.Equal(t, map[string]any{"type": "string"}, doc["properties"].(map[string]any)["name"])
}

func TestCompile_RequiredOrder(t *testing.T) {
	tests := []struct {
		name     string
		spec     any
		expected []string
	}{
		{
			name:     "ordered pairs keep insertion order",
			spec:     []any{[]any{"z", "string"}, []any{"a", "string"}, []any{"m", "string"}},
			expected: []string{"z", "a", "m"},
		},
		{
			name:     "typed fields keep insertion order",
			spec:     ObjectOf(F("z", String), F("a", String), F("m", String)),
			expected: []string{"z", "a", "m"},
		},
		{
			name:     "option pairs keep insertion order",
			spec:     []options.Pair{options.P("z", "string"), options.P("a", "string"), options.P("m", "string")},
			expected: []string{"z", "a", "m"},
		},
		{
			name:     "unordered mapping is sorted",
			spec:     map[string]any{"z": "string", "a": "string", "m": "string"},
			expected: []string{"a", "m", "z"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Document(tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, doc["required"])
		})
	}
}

func TestCompile_Shapes(t *testing.T) {
	tests := []struct {
		name     string
		spec     any
		expected map[string]any
	}{
		{
			name: "type with mapping options",
			spec: map[string]any{"age": []any{"integer", map[string]any{"minimum": 0}}},
			expected: map[string]any{
				"age": map[string]any{"type": "integer", "minimum": 0},
			},
		},
		{
			name: "type with key-value options",
			spec: map[string]any{"mood": []any{"string", []any{[]any{"enum", []any{"happy", "sad"}}}}},
			expected: map[string]any{
				"mood": map[string]any{"type": "string", "enum": []any{"happy", "sad"}},
			},
		},
		{
			name: "tuple options",
			spec: map[string]any{"score": [2]any{Number, options.Options{"description": "0 to 1"}}},
			expected: map[string]any{
				"score": map[string]any{"type": "number", "description": "0 to 1"},
			},
		},
		{
			name: "typed options helper",
			spec: map[string]any{"tag": WithOptions("string", []options.Pair{options.P("maxLength", 10)})},
			expected: map[string]any{
				"tag": map[string]any{"type": "string", "maxLength": 10},
			},
		},
		{
			name: "array marker",
			spec: map[string]any{"tags": []any{"array", "string"}},
			expected: map[string]any{
				"tags": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			},
		},
		{
			name: "union marker",
			spec: map[string]any{"nick": []any{"anyOf", "string", Null}},
			expected: map[string]any{
				"nick": map[string]any{"anyOf": []any{
					map[string]any{"type": "string"},
					map[string]any{"type": "null"},
				}},
			},
		},
		{
			name: "nullable helper",
			spec: map[string]any{"nick": Nullable(String)},
			expected: map[string]any{
				"nick": map[string]any{"anyOf": []any{
					map[string]any{"type": "string"},
					map[string]any{"type": "null"},
				}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Document(tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, doc["properties"])
		})
	}
}

func TestCompile_NestedObjectsAreStrict(t *testing.T) {
	spec := map[string]any{
		"user": map[string]any{
			"name":    "string",
			"address": []any{[]any{"street", "string"}, []any{"city", "string"}},
			"friends": ArrayOf(map[string]any{"id": "integer"}),
		},
		"status": AnyOf("string", map[string]any{"code": "integer"}),
	}

	doc, err := Document(spec)
	require.NoError(t, err)

	assertStrictObjects(t, doc)

	user := doc["properties"].(map[string]any)["user"].(map[string]any)
	assert.Equal(t, []string{"address", "friends", "name"}, user["required"])

	address := user["properties"].(map[string]any)["address"].(map[string]any)
	assert.Equal(t, []string{"street", "city"}, address["required"])
}

// assertStrictObjects walks a compiled document and checks every object node.
func assertStrictObjects(t *testing.T, v any) {
	t.Helper()

	switch n := v.(type) {
	case map[string]any:
		if n["type"] == "object" {
			assert.Equal(t, false, n["additionalProperties"])

			props := n["properties"].(map[string]any)
			required := n["required"].([]string)
			assert.Len(t, required, len(props))

			for _, name := range required {
				assert.Contains(t, props, name)
			}
		}

		for _, child := range n {
			assertStrictObjects(t, child)
		}
	case []any:
		for _, child := range n {
			assertStrictObjects(t, child)
		}
	}
}

func TestCompile_RootArrayIsWrapped(t *testing.T) {
	doc, err := Document([]any{"array", map[string]any{"a": "integer"}})
	require.NoError(t, err)

	assert.Equal(t, "object", doc["type"])
	assert.Equal(t, []string{"items"}, doc["required"])

	items := doc["properties"].(map[string]any)["items"].(map[string]any)
	assert.Equal(t, "array", items["type"])
	assert.True(t, IsWrappedArray(doc))

	// the predicate must also hold after a JSON round trip
	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.True(t, IsWrappedArray(decoded))

	var parsed any
	require.NoError(t, json.Unmarshal([]byte(`{"items":[{"a":1}]}`), &parsed))
	assert.Equal(t, []any{map[string]any{"a": float64(1)}}, Unwrap(parsed))
}

func TestIsWrappedArray_Negative(t *testing.T) {
	doc, err := Document(map[string]any{"items": "string"})
	require.NoError(t, err)
	assert.False(t, IsWrappedArray(doc))

	doc, err = Document(map[string]any{"items": []any{"array", "string"}, "other": "string"})
	require.NoError(t, err)
	assert.False(t, IsWrappedArray(doc))

	assert.False(t, IsWrappedArray("not a schema"))
	assert.Equal(t, "plain", Unwrap("plain"))
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name string
		spec any
	}{
		{"nil", nil},
		{"empty sequence", []any{}},
		{"bare array", "array"},
		{"bare object", Object},
		{"array marker without item", []any{"array"}},
		{"union without variants", []any{"anyOf"}},
		{"non pair in field list", []any{[]any{"a", "string"}, 42}},
		{"unsupported value", 3.14},
		{"bad nested field", map[string]any{"ok": "string", "bad": 7}},
		{"duplicate ordered field", []any{[]any{"a", "string"}, []any{"a", "integer"}}},
		{"empty type name", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.spec)
			require.Error(t, err)

			var se *SchemaError
			assert.True(t, errors.As(err, &se), "expected SchemaError, got %T", err)
		})
	}
}
