package client

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"
)

// newHTTPClient returns a client tuned for long-lived API connections. It has
// no overall timeout because streams may run for minutes; non-streaming
// calls are bounded through their context instead.
func newHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 120 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
	}

	return &http.Client{Transport: transport}
}

// send posts req and returns the open response. Non-2xx responses are
// consumed and returned as *APIError.
func (c *Client) send(ctx context.Context, req *Request, streaming bool) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.Provider.Endpoint(), bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)
	httpReq.Header.Set("Accept-Encoding", "gzip, br")
	httpReq.Header.Set("User-Agent", userAgent)
	if streaming {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()

		body, _ := readBody(resp)
		apiErr := buildAPIError(resp, body, req.Provider.ID)

		c.logger.Error("Upstream error response",
			"provider", req.Provider.ID,
			"status", resp.StatusCode,
			"message", apiErr.Message,
		)

		return nil, apiErr
	}

	return resp, nil
}

// post sends a non-streaming request, retrying retryable failures up to
// maxRetries times with exponential backoff.
func (c *Client) post(ctx context.Context, req *Request) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff << (attempt - 1)
			c.logger.Warn("Retrying request",
				"provider", req.Provider.ID,
				"attempt", attempt,
				"delay", delay,
				"error", lastErr,
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		body, err := c.attempt(ctx, req)
		if err == nil {
			return body, nil
		}

		lastErr = err
		if !Retryable(err) || ctx.Err() != nil {
			break
		}
	}

	return nil, lastErr
}

func (c *Client) attempt(ctx context.Context, req *Request) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.send(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return body, nil
}

func readBody(resp *http.Response) ([]byte, error) {
	reader, err := decompressReader(resp)
	if err != nil {
		return nil, err
	}

	return io.ReadAll(reader)
}

// decompressReader undoes the Content-Encoding of resp. Setting
// Accept-Encoding by hand turns off net/http's transparent gzip handling.
func decompressReader(resp *http.Response) (io.Reader, error) {
	var bodyReader io.Reader = resp.Body
	encoding := resp.Header.Get("Content-Encoding")

	switch encoding {
	case "gzip":
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("decompression error: %w", err)
		}
		bodyReader = gzipReader
	case "br":
		bodyReader = brotli.NewReader(resp.Body)
	}

	return bodyReader, nil
}
