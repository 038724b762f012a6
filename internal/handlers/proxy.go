package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/Davincible/responses-go/internal/client"
	"github.com/Davincible/responses-go/internal/options"
	"github.com/Davincible/responses-go/internal/providers"
	"github.com/Davincible/responses-go/internal/schema"
	"github.com/Davincible/responses-go/internal/stream"
)

// maxRequestBody bounds the options document accepted by the relay.
const maxRequestBody = 32 << 20

// ProxyHandler relays POST /v1/responses through the client. The request
// body is an options document in any shape the library accepts, including a
// "schema" entry; the reply is the extracted response, or the upstream SSE
// stream when "stream" is true.
type ProxyHandler struct {
	client *client.Client
	logger *slog.Logger
}

func NewProxyHandler(c *client.Client, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		client: c,
		logger: logger,
	}
}

func (h *ProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		h.httpError(w, http.StatusMethodNotAllowed, "method %s not allowed", r.Method)
		return
	}

	// Read request body
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		h.httpError(w, http.StatusBadRequest, "failed to read request body: %v", err)
		return
	}

	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		h.httpError(w, http.StatusBadRequest, "request body is not valid JSON: %v", err)
		return
	}

	opts, err := options.Normalize(raw)
	if err != nil {
		h.writeError(w, err)
		return
	}

	streaming, _ := opts["stream"].(bool)

	req, err := h.client.BuildRequest(opts, streaming)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.logger.Info("Relaying request",
		"provider", req.Provider.ID,
		"model", req.Model,
		"stream", streaming,
	)

	if streaming {
		h.handleStreamingResponse(w, r, req)
	} else {
		h.handleResponse(w, r, req)
	}
}

func (h *ProxyHandler) handleStreamingResponse(w http.ResponseWriter, r *http.Request, req *client.Request) {
	started := false

	_, err := h.client.SendStream(r.Context(), req, func(res stream.Result) error {
		if !started {
			// Set streaming headers
			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("Connection", "keep-alive")
			w.WriteHeader(http.StatusOK)
			started = true
		}

		if res.Err != nil {
			h.logger.Warn("Stream parse error", "error", res.Err)
		}

		if _, err := w.Write(stream.FormatResult(res)); err != nil {
			return fmt.Errorf("write to client: %w", err)
		}

		h.flushResponse(w)
		return nil
	})

	switch {
	case err == nil:
		h.logger.Info("Completed streaming response", "provider", req.Provider.ID)
	case !started:
		h.writeError(w, err)
	default:
		h.logger.Error("Stream ended with error", "error", err)
		w.Write(stream.FormatSSEEvent(stream.EventError, map[string]any{
			"type":    stream.EventError,
			"message": err.Error(),
		}))
		h.flushResponse(w)
	}
}

func (h *ProxyHandler) handleResponse(w http.ResponseWriter, r *http.Request, req *client.Request) {
	resp, err := h.client.Send(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, resp.ToMap())
}

// writeError maps library errors onto HTTP statuses. Upstream API errors keep
// their status and provider error shape.
func (h *ProxyHandler) writeError(w http.ResponseWriter, err error) {
	var (
		apiErr     *client.APIError
		formatErr  *options.FormatError
		schemaErr  *schema.SchemaError
		providerE  *providers.UnknownProviderError
		modelErr   *providers.UnknownModelError
		missingKey *providers.MissingCredentialError
	)

	switch {
	case errors.As(err, &apiErr):
		h.logger.Error("Upstream error", "status", apiErr.HTTPStatus, "message", apiErr.Message)
		h.writeJSON(w, apiErr.HTTPStatus, errorBody(apiErr.Message, apiErr.Type, apiErr.Code, apiErr.Param))
	case errors.Is(err, client.ErrNoModel),
		errors.As(err, &formatErr), errors.As(err, &schemaErr),
		errors.As(err, &providerE), errors.As(err, &modelErr):
		h.logger.Warn("Invalid request", "error", err)
		h.writeJSON(w, http.StatusBadRequest, errorBody(err.Error(), "invalid_request_error", "", ""))
	case errors.As(err, &missingKey):
		h.logger.Error("Relay is missing a credential", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, errorBody(err.Error(), "configuration_error", "", ""))
	default:
		h.logger.Error("Upstream request failed", "error", err)
		h.writeJSON(w, http.StatusBadGateway, errorBody(err.Error(), "upstream_error", "", ""))
	}
}

func errorBody(message, typ, code, param string) map[string]any {
	e := map[string]any{"message": message, "type": typ}
	if code != "" {
		e["code"] = code
	}
	if param != "" {
		e["param"] = param
	}

	return map[string]any{"error": e}
}

func (h *ProxyHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to write response", "error", err)
	}
}

func (h *ProxyHandler) flushResponse(w http.ResponseWriter) {
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (h *ProxyHandler) httpError(w http.ResponseWriter, code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	h.logger.Error("HTTP Error", "code", code, "message", msg)
	http.Error(w, msg, code)
}
