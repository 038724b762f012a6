package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"

	"github.com/tidwall/gjson"
)

// ErrNoCompletion is returned when a stream ends without a
// response.completed event.
var ErrNoCompletion = errors.New("stream ended without a response.completed event")

// ErrNoModel is returned when neither the request nor the client names a
// model.
var ErrNoModel = errors.New("no model specified: set the model option or default_model in the config file")

// APIError is a non-2xx response from the upstream API.
type APIError struct {
	Provider   string
	HTTPStatus int
	Message    string
	Code       string
	Param      string
	Type       string
	Body       string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s API error (status %d)", e.Provider, e.HTTPStatus)
	if e.Type != "" {
		msg += " " + e.Type
	}
	if e.Code != "" {
		msg += fmt.Sprintf(" [%s]", e.Code)
	}
	if e.Param != "" {
		msg += fmt.Sprintf(" (param %s)", e.Param)
	}

	return msg + ": " + e.Message
}

// buildAPIError reads the error body. The provider shape is
// {"error": {"message", "code", "param", "type"}}; any other body is kept
// verbatim as the message.
func buildAPIError(resp *http.Response, body []byte, provider string) *APIError {
	apiErr := &APIError{
		Provider:   provider,
		HTTPStatus: resp.StatusCode,
		Body:       string(body),
	}

	obj := gjson.GetBytes(body, "error")
	if obj.IsObject() && obj.Get("message").Exists() {
		apiErr.Message = obj.Get("message").String()
		apiErr.Code = obj.Get("code").String()
		apiErr.Param = obj.Get("param").String()
		apiErr.Type = obj.Get("type").String()
		return apiErr
	}

	apiErr.Message = string(body)
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}

	return apiErr
}

// Retryable reports whether a request that failed with err may succeed if
// sent again: rate limiting, transient server errors, timeouts and dropped
// connections.
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatus {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable:
			return true
		}
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNABORTED)
}
