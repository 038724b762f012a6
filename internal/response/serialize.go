package response

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/shopspring/decimal"

	"github.com/Davincible/responses-go/internal/options"
)

// ToMap returns a plain nested map suitable for persistence. Cost values are
// decimal strings so they survive any JSON or YAML round trip exactly.
func (r *Response) ToMap() map[string]any {
	m := map[string]any{}

	var body any
	if len(r.Body) > 0 && json.Unmarshal(r.Body, &body) == nil {
		m["body"] = body
	}

	if r.Text != nil {
		m["text"] = *r.Text
	}

	if r.HasParsed {
		m["parsed"] = r.Parsed
	}

	if len(r.ParseErrors) > 0 {
		errs := make(map[string]any, len(r.ParseErrors))
		for kind, messages := range r.ParseErrors {
			list := make([]any, len(messages))
			for i, msg := range messages {
				list[i] = msg
			}
			errs[kind] = list
		}
		m["parse_error"] = errs
	}

	if r.FunctionCalls != nil {
		calls := make([]any, len(r.FunctionCalls))
		for i, fc := range r.FunctionCalls {
			calls[i] = map[string]any{
				"name":      fc.Name,
				"call_id":   fc.CallID,
				"arguments": fc.Arguments,
			}
		}
		m["function_calls"] = calls
	}

	if r.Cost != nil {
		m["cost"] = map[string]any{
			"input":           r.Cost.Input.String(),
			"output":          r.Cost.Output.String(),
			"total":           r.Cost.Total.String(),
			"cached_discount": r.Cost.CachedDiscount.String(),
		}
	}

	return m
}

// FromMap rebuilds a Response from the output of ToMap. Keys may be strings
// or any value with a string form, and cost fields may be strings, integers,
// floats or decimals.
func FromMap(input any) (*Response, error) {
	plain, err := stringKeys(input)
	if err != nil {
		return nil, err
	}

	m, ok := plain.(map[string]any)
	if !ok {
		return nil, &options.FormatError{Value: input, Reason: "expected a mapping"}
	}

	r := &Response{}

	if body, ok := m["body"]; ok && body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		r.Body = raw
	}

	if v, ok := m["text"]; ok && v != nil {
		text, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("text: expected a string, got %T", v)
		}
		r.Text = &text
	}

	if v, ok := m["parsed"]; ok {
		r.Parsed = v
		r.HasParsed = true
	}

	if v, ok := m["parse_error"].(map[string]any); ok {
		r.ParseErrors = make(map[string][]string, len(v))
		for kind, messages := range v {
			list, _ := messages.([]any)
			for _, msg := range list {
				r.ParseErrors[kind] = append(r.ParseErrors[kind], fmt.Sprint(msg))
			}
		}
	}

	if v, ok := m["function_calls"].([]any); ok {
		r.FunctionCalls = make([]FunctionCall, 0, len(v))
		for _, item := range v {
			call, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("function_calls: expected a mapping, got %T", item)
			}

			name, _ := call["name"].(string)
			callID, _ := call["call_id"].(string)
			r.FunctionCalls = append(r.FunctionCalls, FunctionCall{Name: name, CallID: callID, Arguments: call["arguments"]})
		}
	}

	if v, ok := m["cost"].(map[string]any); ok {
		cost := &Cost{}
		fields := map[string]*decimal.Decimal{
			"input":           &cost.Input,
			"output":          &cost.Output,
			"total":           &cost.Total,
			"cached_discount": &cost.CachedDiscount,
		}

		for key, dst := range fields {
			d, err := toDecimal(v[key])
			if err != nil {
				return nil, fmt.Errorf("cost.%s: %w", key, err)
			}
			*dst = d
		}

		r.Cost = cost
	}

	return r, nil
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case nil:
		return decimal.Zero, nil
	case decimal.Decimal:
		return n, nil
	case string:
		return decimal.NewFromString(n)
	case json.Number:
		return decimal.NewFromString(n.String())
	case float64:
		return decimal.NewFromFloat(n), nil
	case float32:
		return decimal.NewFromFloat32(n), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return decimal.NewFromInt(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return decimal.NewFromUint64(rv.Uint()), nil
	}

	return decimal.Zero, fmt.Errorf("cannot convert %T to a decimal", v)
}

// stringKeys converts every nested mapping to map[string]any. Lists are kept
// as lists, unlike options.Normalize, so persisted bodies are not
// reinterpreted.
func stringKeys(v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch val := v.(type) {
	case decimal.Decimal, json.Number, string, bool, float64:
		return val, nil
	case []byte:
		return string(val), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		out := make(map[string]any, rv.Len())

		iter := rv.MapRange()
		for iter.Next() {
			key, err := options.KeyString(iter.Key().Interface())
			if err != nil {
				return nil, &options.FormatError{Value: v, Reason: err.Error()}
			}

			child, err := stringKeys(iter.Value().Interface())
			if err != nil {
				return nil, err
			}

			out[key] = child
		}

		return out, nil

	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range rv.Len() {
			child, err := stringKeys(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = child
		}

		return out, nil
	}

	return v, nil
}
