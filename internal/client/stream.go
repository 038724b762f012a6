package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"time"

	"github.com/google/uuid"

	"github.com/Davincible/responses-go/internal/response"
	"github.com/Davincible/responses-go/internal/stream"
)

// Stream sends a streaming request and delivers every parse result to h on
// the calling goroutine, in wire order. Parse errors are delivered too and
// do not end the stream. The final response is assembled from the
// response.completed event.
func (c *Client) Stream(ctx context.Context, input any, h stream.Handler) (*response.Response, error) {
	req, err := c.prepare(input, true)
	if err != nil {
		return nil, err
	}

	return c.SendStream(ctx, req, h)
}

// SendStream performs a prepared streaming request.
func (c *Client) SendStream(ctx context.Context, req *Request, h stream.Handler) (*response.Response, error) {
	c.logRequest(req, true)

	resp, err := c.send(ctx, req, true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	reader, err := decompressReader(resp)
	if err != nil {
		return nil, err
	}
	if closer, ok := reader.(io.Closer); ok {
		defer closer.Close()
	}

	var agg stream.Aggregator
	if err := stream.Decode(reader, agg.Wrap(h)); err != nil {
		return nil, err
	}

	events, parseErrors := agg.Counts()
	c.logger.Debug("Completed streaming response",
		"provider", req.Provider.ID,
		"events", events,
		"parse_errors", parseErrors,
	)

	body := agg.Body()
	if body == nil {
		return nil, ErrNoCompletion
	}

	out := response.New(body, c.pricing)
	c.logResponse(req, out)

	return out, nil
}

// envelope carries one item from the producer goroutine of Events.
type envelope struct {
	token  string
	result stream.Result
	end    bool
	err    error
}

// Events streams a request lazily. A goroutine runs Stream and hands each
// result over an unbuffered channel, so it only reads ahead by one event.
// The sequence ends after the last event, after a transport or API error
// (yielded as the final item), or when no event arrives within the event
// timeout. Breaking out of the loop cancels the request.
func (c *Client) Events(ctx context.Context, input any) iter.Seq2[*stream.Event, error] {
	return c.events(ctx, func(ctx context.Context, h stream.Handler) error {
		_, err := c.Stream(ctx, input, h)
		return err
	})
}

// ContinueEvents is Events for a follow-up to previous.
func (c *Client) ContinueEvents(ctx context.Context, previous *response.Response, input any) iter.Seq2[*stream.Event, error] {
	return c.events(ctx, func(ctx context.Context, h stream.Handler) error {
		req, err := c.PrepareContinue(previous, input, true)
		if err != nil {
			return err
		}

		_, err = c.SendStream(ctx, req, h)
		return err
	})
}

func (c *Client) events(parent context.Context, run func(context.Context, stream.Handler) error) iter.Seq2[*stream.Event, error] {
	return func(yield func(*stream.Event, error) bool) {
		ctx, cancel := context.WithCancel(parent)
		defer cancel()

		token := uuid.NewString()
		handoff := make(chan envelope)

		go func() {
			err := run(ctx, func(res stream.Result) error {
				select {
				case handoff <- envelope{token: token, result: res}:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			})

			select {
			case handoff <- envelope{token: token, end: true, err: err}:
			case <-ctx.Done():
			}
		}()

		timer := time.NewTimer(c.eventTimeout)
		defer timer.Stop()

		for {
			timer.Reset(c.eventTimeout)

			var env envelope
			select {
			case env = <-handoff:
			case <-timer.C:
				c.logger.Warn("Stream idle, ending", "stream", token, "timeout", c.eventTimeout)
				return
			case <-parent.Done():
				yield(nil, parent.Err())
				return
			}

			if env.token != token {
				c.logger.Error("Dropping event from another stream", "stream", token, "got", env.token)
				continue
			}

			if env.end {
				if env.err != nil && !errors.Is(env.err, context.Canceled) {
					yield(nil, fmt.Errorf("stream %s: %w", token, env.err))
				}
				return
			}

			if !yield(env.result.Event, env.result.Err) {
				return
			}
		}
	}
}
