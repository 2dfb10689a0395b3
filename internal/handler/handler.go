// Package handler provides the HTTP API of the off-device shim harness.
//
// Every route goes through the platform's installed entry points, so requests
// made here see exactly what an application on the device would see.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"drm-shim/internal/devicestub"
	"drm-shim/internal/host"
	"drm-shim/internal/keysystem"
	"drm-shim/internal/model"
)

// Options configures a Handler.
type Options struct {
	// Policy is the substitution policy the shims were installed with.
	Policy keysystem.Policy
	// UpstreamURL maps a /v1/license/ path and raw query to the license
	// server URL the request is sent to.
	UpstreamURL func(path, rawQuery string) string
	// UpstreamTimeout bounds one proxied license request. Zero means no
	// timeout beyond the client's own.
	UpstreamTimeout time.Duration
	Identity        devicestub.Identity
	Service         *devicestub.Service
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	platform *host.Platform
	opts     Options
	logger   *slog.Logger
}

// New creates a Handler serving through platform.
func New(platform *host.Platform, opts Options, logger *slog.Logger) *Handler {
	return &Handler{
		platform: platform,
		opts:     opts,
		logger:   logger,
	}
}

// RegisterRoutes registers all HTTP routes with the given ServeMux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/negotiate", h.handleNegotiate)
	mux.HandleFunc("/v1/license/{path...}", h.handleLicense)

	mux.HandleFunc("GET /v1/device", h.handleDevice)
	mux.HandleFunc("POST /v1/device/service", h.handleDeviceService)

	mux.Handle("/mcp", h.NewMCPHandler())

	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

type healthResponse struct {
	Status string `json:"status"`
}

// === Response Helpers ===

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError sends an error response, taking status and code from an
// APIError in err's chain. Anything else is reported as an internal error.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		h.logger.Error("internal error", slog.String("error", err.Error()))
		apiErr = model.NewInternalError(err)
	}

	h.writeJSON(w, apiErr.StatusCode, errorResponse{
		Error: errorBody{
			Code:    apiErr.Code,
			Message: apiErr.Message,
		},
	})
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MaxRequestBodySize limits request bodies, JSON and license challenges alike.
const MaxRequestBodySize = 1 << 20 // 1MB

// decodeJSON reads JSON from the request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return model.NewValidationError("body", "invalid JSON")
	}
	return nil
}

// hostError turns an error surfaced by a platform entry point into an
// APIError that keeps the host's name and message.
func hostError(err error) error {
	if he, ok := host.AsError(err); ok {
		return model.NewNotSupportedError(he.Name, he.Message, err)
	}
	return err
}
