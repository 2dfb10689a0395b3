package handler

import (
	"net/http"

	"drm-shim/internal/devicestub"
	"drm-shim/internal/model"
)

// DeviceResponse is the emulated device as an application would see it.
type DeviceResponse struct {
	devicestub.Identity
	UserAgent string `json:"userAgent"`
}

func (h *Handler) handleDevice(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, DeviceResponse{
		Identity:  h.opts.Identity,
		UserAgent: h.opts.Identity.UserAgent(r.UserAgent()),
	})
}

// ServiceRequest is the body of POST /v1/device/service.
type ServiceRequest struct {
	URI        string         `json:"uri"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

func (h *Handler) handleDeviceService(w http.ResponseWriter, r *http.Request) {
	if h.opts.Service == nil {
		h.writeError(w, model.NewNotSupportedError("NotSupportedError", "no device service configured", nil))
		return
	}

	var req ServiceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.URI == "" {
		h.writeError(w, model.NewValidationError("uri", "uri is required"))
		return
	}

	answered := make(chan devicestub.ServiceResponse, 1)
	call := h.opts.Service.Request(r.Context(), req.URI, req.Parameters, func(resp devicestub.ServiceResponse) {
		answered <- resp
	})
	<-call.Done()

	select {
	case resp := <-answered:
		h.writeJSON(w, http.StatusOK, resp)
	default:
		// The client went away before the service answered.
		call.Cancel()
	}
}
