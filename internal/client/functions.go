package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Davincible/responses-go/internal/options"
	"github.com/Davincible/responses-go/internal/response"
)

// Function handles one tool call. args is the decoded arguments object.
type Function func(ctx context.Context, args any) (any, error)

// FunctionResult is the outcome of one call. Err is set when the function
// was unknown, failed or panicked; Output then carries the error text.
type FunctionResult struct {
	CallID string
	Name   string
	Output string
	Err    error
}

// Item returns the function_call_output input item for the next request.
func (r FunctionResult) Item() map[string]any {
	return map[string]any{
		"type":    "function_call_output",
		"call_id": r.CallID,
		"output":  r.Output,
	}
}

// CallFunctions runs every call in order. A failing call is reported in its
// own result and never stops the others.
func CallFunctions(ctx context.Context, calls []response.FunctionCall, fns map[string]Function) []FunctionResult {
	results := make([]FunctionResult, 0, len(calls))

	for _, call := range calls {
		result := FunctionResult{CallID: call.CallID, Name: call.Name}

		output, err := invoke(ctx, fns[call.Name], call)
		if err != nil {
			result.Err = err
			result.Output = "Error: " + err.Error()
		} else {
			result.Output = output
		}

		results = append(results, result)
	}

	return results
}

// FunctionOutputs converts results into the input list of a follow-up
// request.
func FunctionOutputs(results []FunctionResult) []any {
	items := make([]any, len(results))
	for i, r := range results {
		items[i] = r.Item()
	}

	return items
}

func invoke(ctx context.Context, fn Function, call response.FunctionCall) (output string, err error) {
	if fn == nil {
		return "", fmt.Errorf("unknown function %q", call.Name)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("function %q panicked: %v", call.Name, r)
		}
	}()

	value, err := fn(ctx, call.Arguments)
	if err != nil {
		return "", fmt.Errorf("function %q failed: %w", call.Name, err)
	}

	if s, ok := value.(string); ok {
		return s, nil
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("function %q returned an unencodable value: %w", call.Name, err)
	}

	return string(raw), nil
}

// SubmitFunctionOutputs runs the function calls of previous and sends their
// outputs as a follow-up. extra holds further options for that request,
// such as tools.
func (c *Client) SubmitFunctionOutputs(ctx context.Context, previous *response.Response, fns map[string]Function, extra any) (*response.Response, []FunctionResult, error) {
	previous.ExtractFunctionCalls()
	results := CallFunctions(ctx, previous.FunctionCalls, fns)

	for _, r := range results {
		if r.Err != nil {
			c.logger.Warn("Function call failed", "function", r.Name, "call_id", r.CallID, "error", r.Err)
		}
	}

	opts, err := mergeInput(extra, FunctionOutputs(results))
	if err != nil {
		return nil, results, err
	}

	resp, err := c.Continue(ctx, previous, opts)
	return resp, results, err
}

// mergeInput normalizes extra and sets its input option.
func mergeInput(extra any, input []any) (options.Options, error) {
	opts, err := options.Normalize(extra)
	if err != nil {
		return nil, err
	}

	opts["input"] = input
	return opts, nil
}
