// Package response derives text, structured output, function calls and cost
// from a Responses API body.
//
// The raw body is authoritative. Every derived field is filled by an
// idempotent pass that can run in any order and any number of times.
package response

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/Davincible/responses-go/internal/pricing"
	"github.com/Davincible/responses-go/internal/schema"
)

// Parse error kinds.
const (
	ErrKindJSON          = "json"
	ErrKindFunctionCalls = "function_calls"
)

// Response wraps one API response body and the values derived from it.
type Response struct {
	Body json.RawMessage

	// Text is nil until ExtractText runs.
	Text *string

	Parsed    any
	HasParsed bool

	ParseErrors map[string][]string

	// FunctionCalls is nil until ExtractFunctionCalls runs.
	FunctionCalls []FunctionCall

	Cost *Cost
}

// FunctionCall is a tool call requested by the model.
type FunctionCall struct {
	Name      string `json:"name"`
	CallID    string `json:"call_id"`
	Arguments any    `json:"arguments"`
}

// Cost is in USD.
type Cost struct {
	Input          decimal.Decimal `json:"input"`
	Output         decimal.Decimal `json:"output"`
	Total          decimal.Decimal `json:"total"`
	CachedDiscount decimal.Decimal `json:"cached_discount"`
}

// New wraps body and runs every extraction pass.
func New(body json.RawMessage, table pricing.Table) *Response {
	r := &Response{Body: body}
	r.Extract(table)

	return r
}

// Extract runs all four passes.
func (r *Response) Extract(table pricing.Table) {
	r.ExtractText()
	r.ExtractJSON()
	r.ExtractFunctionCalls()
	r.CalculateCost(table)
}

func (r *Response) get(path string) gjson.Result {
	return gjson.GetBytes(r.Body, path)
}

// ID returns the response id.
func (r *Response) ID() string { return r.get("id").String() }

// Model returns the model that produced the response.
func (r *Response) Model() string { return r.get("model").String() }

// Status returns the response status, e.g. "completed".
func (r *Response) Status() string { return r.get("status").String() }

// Output returns the extracted text, or "" before ExtractText runs.
func (r *Response) Output() string {
	if r.Text == nil {
		return ""
	}
	return *r.Text
}

// ExtractText concatenates the output_text items of the first assistant
// message. Later assistant messages are ignored: some upstreams repeat the
// message.
func (r *Response) ExtractText() {
	if r.Text != nil {
		return
	}

	var parts []string

	for _, item := range r.get("output").Array() {
		if item.Get("role").String() != "assistant" {
			continue
		}

		for _, content := range item.Get("content").Array() {
			if content.Get("type").String() == "output_text" {
				parts = append(parts, content.Get("text").String())
			}
		}

		break
	}

	text := strings.Join(parts, "\n")
	r.Text = &text
}

// ExtractJSON parses the text of a structured-output response. Responses
// requested without a schema are left alone. A root array that was wrapped
// at compile time is unwrapped.
func (r *Response) ExtractJSON() {
	schemaResult := r.get("text.format.schema")
	if !schemaResult.Exists() || schemaResult.Type == gjson.Null {
		return
	}

	r.ExtractText()

	var parsed any
	if err := json.Unmarshal([]byte(*r.Text), &parsed); err != nil {
		// replace rather than append so repeated passes agree
		r.setParseErrors(ErrKindJSON, []string{err.Error()})
		return
	}

	var doc any
	if err := json.Unmarshal([]byte(schemaResult.Raw), &doc); err == nil && schema.IsWrappedArray(doc) {
		parsed = schema.Unwrap(parsed)
	}

	r.Parsed = parsed
	r.HasParsed = true
}

// ExtractFunctionCalls collects function_call items in output order. Items
// whose arguments are not valid JSON are reported under the function_calls
// parse error kind; the valid ones are kept.
func (r *Response) ExtractFunctionCalls() {
	if r.FunctionCalls != nil {
		return
	}

	calls := []FunctionCall{}
	var failures []string

	for _, item := range r.get("output").Array() {
		if item.Get("type").String() != "function_call" {
			continue
		}

		name := item.Get("name").String()
		callID := item.Get("call_id").String()
		raw := item.Get("arguments").String()

		var args any
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			failures = append(failures, fmt.Sprintf("function %s (call %s): invalid arguments %q: %v", name, callID, raw, err))
			continue
		}

		calls = append(calls, FunctionCall{Name: name, CallID: callID, Arguments: args})
	}

	r.FunctionCalls = calls
	if len(failures) > 0 {
		r.setParseErrors(ErrKindFunctionCalls, append(r.ParseErrors[ErrKindFunctionCalls], failures...))
	}
}

// CalculateCost prices the usage block with table. Unknown models and
// missing usage produce a zero cost, never nil.
func (r *Response) CalculateCost(table pricing.Table) {
	if r.Cost != nil {
		return
	}

	r.Cost = &Cost{}

	model := r.get("model")
	usage := r.get("usage")
	if !model.Exists() || !usage.IsObject() {
		return
	}

	price, ok := table.Lookup(model.String())
	if !ok {
		return
	}

	inputTokens := decimal.NewFromInt(usage.Get("input_tokens").Int())
	outputTokens := decimal.NewFromInt(usage.Get("output_tokens").Int())
	cachedTokens := decimal.NewFromInt(usage.Get("input_tokens_details.cached_tokens").Int())

	regularTokens := inputTokens.Sub(cachedTokens)
	if regularTokens.IsNegative() {
		regularTokens = decimal.Zero
	}

	cachedPrice := price.Input
	if price.CachedInput != nil {
		cachedPrice = *price.CachedInput
	}

	regularInput := perMillion(regularTokens, price.Input)
	cachedInput := perMillion(cachedTokens, cachedPrice)
	output := perMillion(outputTokens, price.Output)
	input := regularInput.Add(cachedInput)

	discount := decimal.Zero
	if price.CachedInput != nil {
		discount = perMillion(cachedTokens, price.Input).Sub(cachedInput)
	}

	r.Cost = &Cost{
		Input:          input,
		Output:         output,
		Total:          input.Add(output),
		CachedDiscount: discount,
	}
}

func perMillion(tokens, price decimal.Decimal) decimal.Decimal {
	return tokens.Mul(price).Shift(-6)
}

func (r *Response) setParseErrors(kind string, messages []string) {
	if r.ParseErrors == nil {
		r.ParseErrors = make(map[string][]string)
	}
	r.ParseErrors[kind] = messages
}
