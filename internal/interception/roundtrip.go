package interception

import (
	"fmt"
	"io"
	"net/http"

	"drm-shim/internal/host"
	"drm-shim/internal/model"
)

// RoundTripper exposes a fetch surface as an http.RoundTripper so an ordinary
// *http.Client can send license traffic through the installed shim.
type RoundTripper struct {
	fetcher host.Fetcher
	creds   model.CredentialsMode
}

// NewRoundTripper creates a RoundTripper that dispatches through f with the
// given credentials mode.
func NewRoundTripper(f host.Fetcher, creds model.CredentialsMode) *RoundTripper {
	return &RoundTripper{fetcher: f, creds: creds}
}

// RoundTrip implements http.RoundTripper.
func (rt *RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("reading request body: %w", err)
		}
	}

	mreq := model.NewRequest(req.Method, req.URL.String(), model.HeaderFromHTTP(req.Header), body, rt.creds)
	resp, err := rt.fetcher.Fetch(req.Context(), mreq)
	if err != nil {
		return nil, err
	}

	respBody := resp.Body
	if respBody == nil {
		respBody = http.NoBody
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		StatusCode:    resp.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        resp.HTTPHeaders(),
		Body:          respBody,
		ContentLength: -1,
		Request:       req,
	}, nil
}

var _ http.RoundTripper = (*RoundTripper)(nil)
