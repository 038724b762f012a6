package stream

import (
	"encoding/json"
	"fmt"
	"strings"
)

// IsStreamingContentType checks if the content type indicates streaming
func IsStreamingContentType(contentType string) bool {
	return strings.HasPrefix(contentType, "text/event-stream")
}

// FormatSSEEvent formats data as a Server-Sent Event
func FormatSSEEvent(eventType string, data any) []byte {
	jsonData, err := json.Marshal(data)
	if err != nil {
		// Return a basic error event if marshalling fails
		return []byte("event: error\ndata: {\"error\":\"failed to marshal data\"}\n\n")
	}

	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", eventType, string(jsonData)))
}

// FormatResult re-encodes a parse result. Parse errors become "error" events
// carrying the message so a downstream reader sees them in order.
func FormatResult(res Result) []byte {
	if res.Err != nil {
		return FormatSSEEvent(EventError, map[string]any{
			"type":    EventError,
			"message": res.Err.Error(),
		})
	}

	return FormatSSEEvent(res.Event.Name, res.Event.Raw)
}
