package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/Davincible/responses-go/internal/stream"
)

func sseBody(records ...string) string {
	return strings.Join(records, "\n\n") + "\n\n"
}

var streamRecords = []string{
	`event: response.created` + "\n" + `data: {"type":"response.created","response":{"id":"resp_1"}}`,
	`event: response.output_text.delta` + "\n" + `data: {"type":"response.output_text.delta","delta":"Hel"}`,
	`event: response.output_text.delta` + "\n" + `data: {broken`,
	`event: response.output_text.delta` + "\n" + `data: {"type":"response.output_text.delta","delta":"lo"}`,
	`event: response.completed` + "\n" + `data: {"type":"response.completed","response":` + completedBody + `}`,
}

func streamingHandler(t *testing.T, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		assert.True(t, gjson.GetBytes(raw, "stream").Bool())
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		// split records across writes to exercise buffering
		for i := 0; i < len(body); i += 7 {
			end := min(i+7, len(body))
			io.WriteString(w, body[i:end])
			flusher.Flush()
		}
	}
}

func TestStream(t *testing.T) {
	c, _ := newTestClient(t, streamingHandler(t, sseBody(streamRecords...)))

	var names []string
	var errs []error
	var text strings.Builder
	sink := stream.Delta(func(s string) { text.WriteString(s) })

	resp, err := c.Stream(context.Background(), map[string]any{"model": "gpt-4.1-mini", "input": "hi"}, func(res stream.Result) error {
		if res.Err != nil {
			errs = append(errs, res.Err)
		} else {
			names = append(names, res.Event.Name)
		}
		return sink(res)
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"response.created",
		"response.output_text.delta",
		"response.output_text.delta",
		"response.completed",
	}, names)
	require.Len(t, errs, 1)
	assert.IsType(t, &stream.JSONDecodeError{}, errs[0])
	assert.Equal(t, "Hello", text.String())

	assert.Equal(t, "resp_1", resp.ID())
	assert.Equal(t, "Hello", resp.Output())
	assert.Equal(t, "0.0012", resp.Cost.Total.String())
}

func TestStream_NoCompletion(t *testing.T) {
	c, _ := newTestClient(t, streamingHandler(t, sseBody(streamRecords[:2]...)))

	_, err := c.Stream(context.Background(), map[string]any{"model": "gpt-4.1-mini"}, nil)
	assert.ErrorIs(t, err, ErrNoCompletion)
}

func TestStream_HandlerError(t *testing.T) {
	c, _ := newTestClient(t, streamingHandler(t, sseBody(streamRecords...)))

	_, err := c.Stream(context.Background(), map[string]any{"model": "gpt-4.1-mini"}, func(stream.Result) error {
		return fmt.Errorf("consumer gave up")
	})
	assert.ErrorContains(t, err, "consumer gave up")
}

func TestEvents(t *testing.T) {
	c, _ := newTestClient(t, streamingHandler(t, sseBody(streamRecords...)))

	var names []string
	var errs int
	for ev, err := range c.Events(context.Background(), map[string]any{"model": "gpt-4.1-mini"}) {
		if err != nil {
			errs++
			continue
		}
		names = append(names, ev.Name)
	}

	assert.Len(t, names, 4)
	assert.Equal(t, "response.completed", names[3])
	assert.Equal(t, 1, errs)
}

func TestEvents_TextAndJSONHelpers(t *testing.T) {
	records := []string{
		`event: response.output_text.delta` + "\n" + `data: {"delta":"{\"a\":"}`,
		`event: response.output_text.delta` + "\n" + `data: {"delta":"[1,2]}"}`,
		`event: response.completed` + "\n" + `data: {"response":{"id":"r"}}`,
	}
	c, _ := newTestClient(t, streamingHandler(t, sseBody(records...)))

	var kinds []string
	for tok, err := range stream.JSONEvents(c.Events(context.Background(), map[string]any{"model": "gpt-4.1"})) {
		require.NoError(t, err)
		kinds = append(kinds, tok.Kind.String())
	}

	assert.Equal(t, []string{
		"start_object", "key", "colon", "start_array", "number", "comma", "number", "end_array", "end_object",
	}, kinds)
}

func TestEvents_APIErrorIsYielded(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":{"message":"boom","type":"server_error"}}`)
	})

	var got []error
	for ev, err := range c.Events(context.Background(), map[string]any{"model": "gpt-4.1"}) {
		assert.Nil(t, ev)
		got = append(got, err)
	}

	require.Len(t, got, 1)
	var apiErr *APIError
	require.ErrorAs(t, got[0], &apiErr)
	assert.True(t, Retryable(got[0]))
}

func TestEvents_AbandonCancelsProducer(t *testing.T) {
	released := make(chan struct{})

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, sseBody(streamRecords[0]))
		w.(http.Flusher).Flush()

		// hold the connection open until the client goes away
		<-r.Context().Done()
		close(released)
	})

	for ev, err := range c.Events(context.Background(), map[string]any{"model": "gpt-4.1"}) {
		require.NoError(t, err)
		assert.Equal(t, "response.created", ev.Name)
		break
	}

	select {
	case <-released:
	case <-time.After(5 * time.Second):
		t.Fatal("upstream connection was not closed after the consumer stopped")
	}
}

func TestEvents_IdleTimeoutEndsStream(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, sseBody(streamRecords[0]))
		w.(http.Flusher).Flush()

		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, WithEventTimeout(100*time.Millisecond))

	start := time.Now()
	var count int
	for _, err := range c.Events(context.Background(), map[string]any{"model": "gpt-4.1"}) {
		require.NoError(t, err)
		count++
	}

	assert.Equal(t, 1, count)
	assert.Less(t, time.Since(start), 5*time.Second)
}
