package stream

import (
	"iter"

	"github.com/Davincible/responses-go/internal/jsonstream"
)

// TextDeltas yields the text of every output_text delta in seq. Parse errors
// and other events are skipped.
func TextDeltas(seq iter.Seq2[*Event, error]) iter.Seq[string] {
	return func(yield func(string) bool) {
		for ev, err := range seq {
			if err != nil || ev == nil || ev.Name != EventOutputTextDelta {
				continue
			}

			if !yield(ev.String("delta")) {
				return
			}
		}
	}
}

// Delta adapts a plain text consumer into a Handler that receives only
// output_text deltas.
func Delta(sink func(text string)) Handler {
	return func(res Result) error {
		if res.Err != nil || res.Event.Name != EventOutputTextDelta {
			return nil
		}

		sink(res.Event.String("delta"))
		return nil
	}
}

// JSONEvents tokenizes the streamed output text incrementally. A syntax
// error is yielded once and ends the sequence.
func JSONEvents(seq iter.Seq2[*Event, error]) iter.Seq2[jsonstream.Token, error] {
	return func(yield func(jsonstream.Token, error) bool) {
		var tok jsonstream.Tokenizer

		emit := func(tokens []jsonstream.Token, err error) bool {
			for _, t := range tokens {
				if !yield(t, nil) {
					return false
				}
			}
			if err != nil {
				yield(jsonstream.Token{}, err)
				return false
			}
			return true
		}

		for text := range TextDeltas(seq) {
			if !emit(tok.Feed(text)) {
				return
			}
		}

		emit(tok.Close())
	}
}

// Seq adapts a slice of results to the sequence shape used by the helpers.
func Seq(results []Result) iter.Seq2[*Event, error] {
	return func(yield func(*Event, error) bool) {
		for _, res := range results {
			if !yield(res.Event, res.Err) {
				return
			}
		}
	}
}
