// Package stream decodes the Server-Sent Events emitted by a Responses API
// into typed events.
//
// A record on the wire looks like
//
//	event: response.output_text.delta
//	data: {"type":"response.output_text.delta","delta":"Hel"}
//
// and records are separated by a blank line. Every record produces exactly
// one Result: either an Event or one of the parse errors below. Parse errors
// never end a stream.
package stream

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Event names the library reacts to.
const (
	EventOutputTextDelta = "response.output_text.delta"
	EventCompleted       = "response.completed"
	EventFailed          = "response.failed"
	EventError           = "error"
)

// ErrStop can be returned by a Handler to end a stream early without error.
var ErrStop = errors.New("stream stopped by handler")

// Event is one decoded SSE record.
type Event struct {
	Name string
	Data map[string]any
	Raw  json.RawMessage
}

// String returns the field at key in Data, or "" if it is missing or not a
// string.
func (e *Event) String(key string) string {
	if e == nil {
		return ""
	}

	s, _ := e.Data[key].(string)
	return s
}

// Result is the outcome of parsing one record. Exactly one of Event and Err
// is set.
type Result struct {
	Event *Event
	Err   error
}

// Handler receives every Result of a stream in order. Returning a non-nil
// error ends the stream; ErrStop ends it without reporting a failure.
type Handler func(Result) error

// JSONDecodeError is reported when a record's data line is not valid JSON.
type JSONDecodeError struct {
	Record string
	Err    error
}

func (e *JSONDecodeError) Error() string {
	return fmt.Sprintf("invalid JSON in stream record: %v", e.Err)
}

func (e *JSONDecodeError) Unwrap() error { return e.Err }

// InvalidChunkFormatError is reported when a record lacks its "event:" or
// "data:" line.
type InvalidChunkFormatError struct {
	Record string
	Reason string
}

func (e *InvalidChunkFormatError) Error() string {
	return fmt.Sprintf("invalid stream record format: %s", e.Reason)
}

// InvalidChunkStructureError is reported for any other malformed record, such
// as extra lines or a data payload that is not a JSON object.
type InvalidChunkStructureError struct {
	Record string
	Reason string
}

func (e *InvalidChunkStructureError) Error() string {
	return fmt.Sprintf("invalid stream record structure: %s", e.Reason)
}
