package stream

import (
	"encoding/json"
	"sync"

	"github.com/tidwall/gjson"
)

// Aggregator watches a stream and keeps the final response body carried by
// the response.completed event. It is safe for concurrent use.
type Aggregator struct {
	mu     sync.Mutex
	body   json.RawMessage
	events int
	errors int
}

// Observe records res. When several completion events arrive, the last one
// wins.
func (a *Aggregator) Observe(res Result) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if res.Err != nil {
		a.errors++
		return
	}

	a.events++

	if res.Event.Name != EventCompleted {
		return
	}

	if r := gjson.GetBytes(res.Event.Raw, "response"); r.Exists() && r.IsObject() {
		a.body = json.RawMessage(r.Raw)
	}
}

// Wrap returns a Handler that observes every result before passing it to h.
func (a *Aggregator) Wrap(h Handler) Handler {
	return func(res Result) error {
		a.Observe(res)
		if h == nil {
			return nil
		}
		return h(res)
	}
}

// Body returns the captured response body, or nil if the stream never
// completed.
func (a *Aggregator) Body() json.RawMessage {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.body
}

// Counts returns how many events and parse errors were observed.
func (a *Aggregator) Counts() (events, errors int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.events, a.errors
}
