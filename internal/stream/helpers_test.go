package stream

import (
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Davincible/responses-go/internal/jsonstream"
)

func delta(text string) Result {
	return Result{Event: &Event{
		Name: EventOutputTextDelta,
		Data: map[string]any{"type": EventOutputTextDelta, "delta": text},
	}}
}

func TestTextDeltas(t *testing.T) {
	results := []Result{
		{Event: &Event{Name: "response.created", Data: map[string]any{}}},
		delta("Hel"),
		{Err: errors.New("bad record")},
		delta("lo"),
		{Event: &Event{Name: EventCompleted, Data: map[string]any{}}},
	}

	assert.Equal(t, []string{"Hel", "lo"}, slices.Collect(TextDeltas(Seq(results))))
}

func TestDelta(t *testing.T) {
	var got string
	h := Delta(func(text string) { got += text })

	for _, res := range []Result{delta("a"), {Err: errors.New("x")}, delta("b")} {
		require.NoError(t, h(res))
	}

	assert.Equal(t, "ab", got)
}

func TestJSONEvents(t *testing.T) {
	results := []Result{delta(`{"na`), delta(`me": "Ada", "ag`), delta(`e": 3`), delta(`6}`)}

	var kinds []jsonstream.Kind
	var values []any
	for tok, err := range JSONEvents(Seq(results)) {
		require.NoError(t, err)
		kinds = append(kinds, tok.Kind)
		if tok.Value != nil {
			values = append(values, tok.Value)
		}
	}

	assert.Equal(t, []jsonstream.Kind{
		jsonstream.StartObject,
		jsonstream.Key, jsonstream.Colon, jsonstream.String, jsonstream.Comma,
		jsonstream.Key, jsonstream.Colon, jsonstream.Number,
		jsonstream.EndObject,
	}, kinds)
	assert.Equal(t, []any{"name", "Ada", "age", json.Number("36")}, values)
}

func TestJSONEvents_SyntaxErrorEndsSequence(t *testing.T) {
	var errs int
	var tokens int

	for _, err := range JSONEvents(Seq([]Result{delta(`[1, }`), delta(`2]`)})) {
		if err != nil {
			errs++
			continue
		}
		tokens++
	}

	assert.Equal(t, 1, errs)
	assert.Equal(t, 3, tokens)
}

func TestAggregator(t *testing.T) {
	var agg Aggregator

	completed := ParseRecord([]byte(`event: response.completed
data: {"type":"response.completed","response":{"id":"resp_1","status":"completed"}}`))
	require.NoError(t, completed.Err)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			agg.Observe(delta("x"))
		}()
	}
	wg.Wait()

	h := agg.Wrap(nil)
	require.NoError(t, h(Result{Err: errors.New("bad")}))
	require.NoError(t, h(completed))

	assert.JSONEq(t, `{"id":"resp_1","status":"completed"}`, string(agg.Body()))

	events, errs := agg.Counts()
	assert.Equal(t, 11, events)
	assert.Equal(t, 1, errs)
}

func TestAggregator_LastCompletionWins(t *testing.T) {
	var agg Aggregator

	agg.Observe(ParseRecord([]byte("event: response.completed\ndata: {\"response\":{\"id\":\"a\"}}")))
	agg.Observe(ParseRecord([]byte("event: response.completed\ndata: {\"response\":{\"id\":\"b\"}}")))
	agg.Observe(ParseRecord([]byte("event: response.completed\ndata: {\"response\":null}")))

	assert.JSONEq(t, `{"id":"b"}`, string(agg.Body()))
}

func TestAggregator_NoCompletion(t *testing.T) {
	var agg Aggregator
	agg.Observe(delta("x"))

	assert.Nil(t, agg.Body())
}
