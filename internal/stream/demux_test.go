package stream

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecord(t *testing.T) {
	tests := []struct {
		name    string
		record  string
		event   string
		errType any
	}{
		{
			name:   "well formed",
			record: "event: response.created\ndata: {\"type\":\"response.created\"}",
			event:  "response.created",
		},
		{
			name:   "surrounding whitespace trimmed",
			record: "event:   response.in_progress  \ndata:   {\"a\":1}   ",
			event:  "response.in_progress",
		},
		{
			name:   "crlf line endings",
			record: "event: ping\r\ndata: {}\r\n",
			event:  "ping",
		},
		{
			name:    "missing event line",
			record:  "data: {\"a\":1}",
			errType: &InvalidChunkFormatError{},
		},
		{
			name:    "missing data line",
			record:  "event: response.created",
			errType: &InvalidChunkFormatError{},
		},
		{
			name:    "wrong second line",
			record:  "event: x\nid: 4",
			errType: &InvalidChunkFormatError{},
		},
		{
			name:    "bad json",
			record:  "event: x\ndata: {\"a\":",
			errType: &JSONDecodeError{},
		},
		{
			name:    "data is not an object",
			record:  "event: x\ndata: [1,2]",
			errType: &InvalidChunkStructureError{},
		},
		{
			name:    "extra lines",
			record:  "event: x\ndata: {}\nretry: 10",
			errType: &InvalidChunkStructureError{},
		},
		{
			name:    "empty event name",
			record:  "event:\ndata: {}",
			errType: &InvalidChunkStructureError{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ParseRecord([]byte(tt.record))

			if tt.errType == nil {
				require.NoError(t, res.Err)
				require.NotNil(t, res.Event)
				assert.Equal(t, tt.event, res.Event.Name)
				return
			}

			require.Error(t, res.Err)
			assert.Nil(t, res.Event)
			assert.IsType(t, tt.errType, res.Err)
		})
	}
}

func TestParseRecord_ErrorsCarryRecord(t *testing.T) {
	res := ParseRecord([]byte("event: x\ndata: nope"))

	var decodeErr *JSONDecodeError
	require.True(t, errors.As(res.Err, &decodeErr))
	assert.Equal(t, "event: x\ndata: nope", decodeErr.Record)
	assert.NotNil(t, errors.Unwrap(res.Err))
}

func TestDemuxer_SplitAcrossChunks(t *testing.T) {
	wire := "event: a\ndata: {\"n\":1}\n\n" +
		"event: b\ndata: {\"n\":2}\n\n" +
		"event: c\ndata: {\"n\":3}\n\n"

	// every split point must produce the same three events
	for cut := 0; cut <= len(wire); cut++ {
		var d Demuxer
		results := append(d.Feed([]byte(wire[:cut])), d.Feed([]byte(wire[cut:]))...)
		results = append(results, d.Flush()...)

		require.Len(t, results, 3, "cut at %d", cut)
		for i, name := range []string{"a", "b", "c"} {
			require.NoError(t, results[i].Err)
			assert.Equal(t, name, results[i].Event.Name)
		}
	}
}

func TestDemuxer_SkipsComments(t *testing.T) {
	var d Demuxer

	results := d.Feed([]byte(": keep-alive\n\nevent: a\ndata: {}\n\n\n\n"))
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].Event.Name)
	assert.Empty(t, d.Flush())
}

func TestDemuxer_FlushParsesTail(t *testing.T) {
	var d Demuxer

	assert.Empty(t, d.Feed([]byte("event: last\ndata: {\"ok\":true}")))

	results := d.Flush()
	require.Len(t, results, 1)
	assert.Equal(t, true, results[0].Event.Data["ok"])
}

func TestDecode_ErrorIsolation(t *testing.T) {
	wire := strings.Join([]string{
		"event: response.created\ndata: {\"i\":0}",
		"event: response.output_text.delta\ndata: {\"i\":1}",
		"event: response.output_text.delta\ndata: {broken",
		"event: response.output_text.delta\ndata: {\"i\":2}",
		"event: response.completed\ndata: {\"i\":3}",
	}, "\n\n") + "\n\n"

	var events []int
	var errs []error

	err := Decode(strings.NewReader(wire), func(res Result) error {
		if res.Err != nil {
			errs = append(errs, res.Err)
			return nil
		}
		events = append(events, int(res.Event.Data["i"].(float64)))
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2, 3}, events)
	require.Len(t, errs, 1)
	assert.IsType(t, &JSONDecodeError{}, errs[0])
}

func TestDecode_HandlerStop(t *testing.T) {
	wire := "event: a\ndata: {}\n\nevent: b\ndata: {}\n\n"

	var seen []string
	err := Decode(strings.NewReader(wire), func(res Result) error {
		seen = append(seen, res.Event.Name)
		return ErrStop
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, seen)

	boom := errors.New("boom")
	err = Decode(strings.NewReader(wire), func(Result) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestFormatSSEEvent_RoundTrip(t *testing.T) {
	wire := FormatSSEEvent("response.output_text.delta", map[string]any{"delta": "hi"})
	assert.Equal(t, "event: response.output_text.delta\ndata: {\"delta\":\"hi\"}\n\n", string(wire))

	var d Demuxer
	results := d.Feed(wire)
	require.Len(t, results, 1)
	assert.Equal(t, "hi", results[0].Event.String("delta"))

	errWire := FormatResult(Result{Err: &InvalidChunkFormatError{Reason: "x"}})
	results = d.Feed(errWire)
	require.Len(t, results, 1)
	assert.Equal(t, EventError, results[0].Event.Name)
}

func TestIsStreamingContentType(t *testing.T) {
	assert.True(t, IsStreamingContentType("text/event-stream; charset=utf-8"))
	assert.False(t, IsStreamingContentType("application/json"))
}
