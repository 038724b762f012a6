// Package schema compiles ergonomic schema descriptions into the strict JSON
// Schema dialect accepted by Responses-style structured outputs.
//
// A description can be built with the typed helpers (WithOptions, ArrayOf,
// AnyOf, Object) or written with plain Go values:
//
//	"string"                                   simple type
//	[]any{"integer", map[string]any{...}}       type with options
//	[]any{"array", item}                        array of item
//	[]any{"anyOf", a, b}                        union
//	map[string]any{"name": "string"}            object, required fields sorted
//	[]any{[]any{"z", "string"}, ...}            object, required fields in order
package schema

import (
	"fmt"
)

// Type is a JSON Schema type name.
type Type string

const (
	String  Type = "string"
	Number  Type = "number"
	Integer Type = "integer"
	Boolean Type = "boolean"
	Null    Type = "null"
	Array   Type = "array"
	Object  Type = "object"
)

func (t Type) String() string { return string(t) }

// Markers recognised as the first element of a union description.
var unionMarkers = map[string]bool{
	"anyOf":  true,
	"any_of": true,
	"union":  true,
}

// SchemaError reports a schema description that cannot be compiled.
type SchemaError struct {
	Spec   any
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("invalid schema (%s): %#v", e.Reason, e.Spec)
}

// Field is one named property of an ordered object description.
type Field struct {
	Name string
	Spec any
}

// F is shorthand for building a Field.
func F(name string, spec any) Field {
	return Field{Name: name, Spec: spec}
}

type withOptionsSpec struct {
	typeName any
	options  any
}

type arraySpec struct {
	item any
}

type unionSpec struct {
	variants []any
}

type objectSpec struct {
	fields []Field
}

// WithOptions describes a leaf type carrying extra keywords such as enum,
// description or minimum. opts may be a mapping or a key-value sequence.
func WithOptions(typeName any, opts any) any {
	return withOptionsSpec{typeName: typeName, options: opts}
}

// ArrayOf describes an array whose elements match item.
func ArrayOf(item any) any {
	return arraySpec{item: item}
}

// AnyOf describes a value matching any of the variants.
func AnyOf(variants ...any) any {
	return unionSpec{variants: variants}
}

// Nullable is AnyOf(spec, Null).
func Nullable(spec any) any {
	return unionSpec{variants: []any{spec, Null}}
}

// ObjectOf describes an object whose required fields keep the given order.
func ObjectOf(fields ...Field) any {
	return objectSpec{fields: fields}
}
