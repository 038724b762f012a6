package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Davincible/responses-go/internal/providers"
)

type HealthHandler struct {
	registry *providers.Registry
	logger   *slog.Logger
}

func NewHealthHandler(registry *providers.Registry, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		registry: registry,
		logger:   logger,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	body := map[string]any{
		"status":    "ok",
		"providers": h.registry.List(),
	}

	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to write health check response", "error", err)
	}
}

// ModelsHandler lists the providers, their routing prefixes and resolved
// base URLs.
type ModelsHandler struct {
	registry *providers.Registry
	logger   *slog.Logger
}

func NewModelsHandler(registry *providers.Registry, logger *slog.Logger) *ModelsHandler {
	return &ModelsHandler{
		registry: registry,
		logger:   logger,
	}
}

func (h *ModelsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var data []map[string]any

	for _, id := range h.registry.List() {
		p, err := h.registry.Lookup(id)
		if err != nil {
			continue
		}

		unsupported := make([]string, 0, len(p.Unsupported))
		for _, u := range p.Unsupported {
			unsupported = append(unsupported, u.Message)
		}

		data = append(data, map[string]any{
			"id":             p.ID,
			"name":           p.DisplayName,
			"base_url":       p.BaseURL,
			"model_prefixes": p.ModelPrefixes,
			"unsupported":    unsupported,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data}); err != nil {
		h.logger.Error("Failed to write models response", "error", err)
	}
}
