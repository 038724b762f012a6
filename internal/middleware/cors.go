package middleware

import (
	"log/slog"
	"net/http"
)

type CORSMiddleware struct {
	logger *slog.Logger
}

// NewCORSMiddleware lets browser clients call the relay. Preflight requests
// are answered directly and never reach authentication.
func NewCORSMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	cm := &CORSMiddleware{
		logger: logger,
	}

	return cm.middleware
}

func (cm *CORSMiddleware) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")

		if cm.isPreflight(r) {
			cm.sendPreflightResponse(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (cm *CORSMiddleware) isPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
}

func (cm *CORSMiddleware) sendPreflightResponse(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-API-Key")
	w.Header().Set("Access-Control-Max-Age", "86400")

	w.WriteHeader(http.StatusNoContent)
	cm.logger.Debug("Answered CORS preflight")
}
