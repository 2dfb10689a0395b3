package handler

import (
	"context"
	"log/slog"
	"net/http"

	"drm-shim/internal/keysystem"
	"drm-shim/internal/model"
)

// NegotiateRequest is the body of POST /v1/negotiate. KeySystem is tried
// before KeySystems; when both are empty the DRM-Key-Systems header is used.
type NegotiateRequest struct {
	KeySystem      string                         `json:"key_system,omitempty"`
	KeySystems     []string                       `json:"key_systems,omitempty"`
	Configurations []model.KeySystemConfiguration `json:"configurations"`
}

// NegotiateResponse reports the accepted key system access.
type NegotiateResponse struct {
	Requested     []string                     `json:"requested"`
	KeySystem     string                       `json:"key_system"`
	Configuration model.KeySystemConfiguration `json:"configuration"`
}

func (h *Handler) handleNegotiate(w http.ResponseWriter, r *http.Request) {
	var req NegotiateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	requested := req.KeySystems
	if req.KeySystem != "" {
		requested = append([]string{req.KeySystem}, requested...)
	}
	if len(requested) == 0 {
		header := r.Header.Get(keysystem.HeaderKeySystems)
		if header == "" {
			h.writeError(w, model.NewValidationError("key_system", "key_system, key_systems or "+keysystem.HeaderKeySystems+" header is required"))
			return
		}
		parsed, err := keysystem.ParseKeySystemsHeader(header)
		if err != nil {
			h.writeError(w, model.NewValidationError(keysystem.HeaderKeySystems, err.Error()))
			return
		}
		requested = parsed
	}

	access, err := h.negotiate(r.Context(), requested, req.Configurations)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, NegotiateResponse{
		Requested:     requested,
		KeySystem:     access.KeySystem,
		Configuration: access.Configuration,
	})
}

// negotiate resolves the requested key systems through the policy and asks
// the installed capability check for each in turn. The last failure is
// returned if none is accepted.
func (h *Handler) negotiate(ctx context.Context, requested []string, configs []model.KeySystemConfiguration) (*model.KeySystemAccess, error) {
	lastErr := error(model.NewValidationError("key_system", "no key system requested"))
	for _, ks := range h.opts.Policy.ResolveAll(requested) {
		access, err := h.platform.RequestAccess(ctx, ks, configs)
		if err == nil {
			return access, nil
		}
		h.logger.Warn("key system access rejected",
			slog.String("key_system", ks),
			slog.String("error", err.Error()))
		lastErr = err
	}
	return nil, hostError(lastErr)
}
