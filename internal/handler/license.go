package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"drm-shim/internal/host"
	"drm-shim/internal/interception"
	"drm-shim/internal/model"
)

// SurfaceHeader reports which request surface carried a proxied license
// request.
const SurfaceHeader = "X-DRM-Shim-Surface"

// surfaceParam selects the request surface on /v1/license/ and is stripped
// before the request is forwarded.
const surfaceParam = "surface"

// hopHeaders are not forwarded to the license server.
var hopHeaders = map[string]bool{
	"Connection":        true,
	"Content-Length":    true,
	"Host":              true,
	"Keep-Alive":        true,
	"Te":                true,
	"Trailer":           true,
	"Transfer-Encoding": true,
	"Upgrade":           true,
	"Accept-Encoding":   true,
	"X-Request-Id":      true,
}

// licenseResult is what a surface hands back after the shim has settled it.
type licenseResult struct {
	status      int
	contentType string
	body        []byte
}

func (h *Handler) handleLicense(w http.ResponseWriter, r *http.Request) {
	if h.opts.UpstreamURL == nil {
		h.writeError(w, model.NewValidationError("upstream", "no upstream license server configured"))
		return
	}

	rawQuery, surface := splitSurface(r.URL.RawQuery)
	if surface == "" {
		surface = interception.SurfaceFetch
	}
	target := h.opts.UpstreamURL(r.PathValue("path"), rawQuery)

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, model.NewValidationError("body", "request body too large or unreadable"))
		return
	}

	header := make(http.Header)
	for name, values := range r.Header {
		if !hopHeaders[name] {
			header[name] = values
		}
	}

	ctx := r.Context()
	if h.opts.UpstreamTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opts.UpstreamTimeout)
		defer cancel()
	}

	var res *licenseResult
	switch surface {
	case interception.SurfaceFetch:
		res, err = h.licenseViaFetch(ctx, r.Method, target, header, body)
	case interception.SurfaceXHR:
		res, err = h.licenseViaXHR(ctx, r.Method, target, header, body)
	case interception.SurfaceChannel:
		res, err = h.licenseViaChannel(ctx, r.Method, target, header, body)
	default:
		h.writeError(w, model.NewValidationError(surfaceParam, "must be fetch, xhr or channel"))
		return
	}
	if err != nil {
		if errors.Is(err, host.ErrPlatformUnavailable) {
			h.writeError(w, hostError(err))
			return
		}
		h.logger.Warn("license request failed",
			slog.String("surface", surface),
			slog.String("url", target),
			slog.String("error", err.Error()))
		h.writeError(w, model.NewUpstreamError("license server", err))
		return
	}

	w.Header().Set(SurfaceHeader, surface)
	if res.contentType != "" {
		w.Header().Set("Content-Type", res.contentType)
	}
	w.WriteHeader(res.status)
	w.Write(res.body)
}

// licenseViaFetch sends the request through an http.Client whose transport is
// the platform's installed fetch entry.
func (h *Handler) licenseViaFetch(ctx context.Context, method, target string, header http.Header, body []byte) (*licenseResult, error) {
	client := &http.Client{
		Transport: interception.NewRoundTripper(host.FetcherFunc(h.platform.Fetch), model.CredentialsInclude),
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header = header

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &licenseResult{status: resp.StatusCode, contentType: resp.Header.Get("Content-Type"), body: data}, nil
}

// licenseViaXHR drives the platform's installed XHR constructor the way a
// player would: open, set headers, send, then wait for the load or error
// callback.
func (h *Handler) licenseViaXHR(ctx context.Context, method, target string, header http.Header, body []byte) (*licenseResult, error) {
	x, err := h.platform.NewXHR()
	if err != nil {
		return nil, err
	}
	if err := x.Open(method, target); err != nil {
		return nil, err
	}
	for name, values := range header {
		if len(values) > 0 {
			if err := x.SetRequestHeader(name, values[0]); err != nil {
				return nil, err
			}
		}
	}
	x.SetWithCredentials(true)

	state := x.State()
	var xhrErr error
	state.OnError = func(err error) { xhrErr = err }
	if err := x.Send(ctx, body); err != nil {
		return nil, err
	}

	select {
	case <-state.Done():
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if xhrErr != nil {
		return nil, xhrErr
	}

	if data := state.Response(); data != nil {
		return &licenseResult{status: state.Status(), contentType: "application/octet-stream", body: data}, nil
	}
	return &licenseResult{status: state.Status(), contentType: "text/plain; charset=utf-8", body: []byte(state.ResponseText())}, nil
}

// licenseViaChannel opens a channel through the platform's installed factory
// and dispatches a single request on it.
func (h *Handler) licenseViaChannel(ctx context.Context, method, target string, header http.Header, body []byte) (*licenseResult, error) {
	ch, err := h.platform.OpenChannel(target)
	if err != nil {
		return nil, err
	}
	resp, err := ch.Dispatch(ctx, method, model.HeaderFromHTTP(header), body, model.CredentialsInclude)
	if err != nil {
		return nil, err
	}
	data, err := resp.Bytes()
	if err != nil {
		return nil, err
	}
	return &licenseResult{status: resp.StatusCode, contentType: resp.HTTPHeaders().Get("Content-Type"), body: data}, nil
}

// splitSurface removes the surface parameter from rawQuery, leaving every
// other pair untouched, and returns its value.
func splitSurface(rawQuery string) (string, string) {
	if rawQuery == "" {
		return "", ""
	}
	var kept []string
	var surface string
	for _, pair := range strings.Split(rawQuery, "&") {
		key, value, _ := strings.Cut(pair, "=")
		if key == surfaceParam {
			surface = value
			continue
		}
		kept = append(kept, pair)
	}
	return strings.Join(kept, "&"), surface
}
