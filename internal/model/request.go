package model

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// CredentialsMode controls whether cookies and auth travel with a request.
type CredentialsMode string

const (
	CredentialsOmit       CredentialsMode = "omit"
	CredentialsSameOrigin CredentialsMode = "same-origin"
	CredentialsInclude    CredentialsMode = "include"
)

// Header is a request header map. Names keep the case the caller supplied.
type Header map[string]string

// Clone returns a copy of h. A nil header clones to an empty one.
func (h Header) Clone() Header {
	out := make(Header, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// ToHTTP converts h to an http.Header with canonical names, so Get finds
// every entry regardless of the case it was set with.
func (h Header) ToHTTP() http.Header {
	out := make(http.Header, len(h))
	for k, v := range h {
		out.Add(k, v)
	}
	return out
}

// HeaderFromHTTP flattens an http.Header. Repeated values are combined into one
// comma-separated value.
func HeaderFromHTTP(h http.Header) Header {
	out := make(Header, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = strings.Join(v, ", ")
		}
	}
	return out
}

// Request is an outbound request captured from any of the request surfaces.
type Request struct {
	ID          string
	Method      string
	URL         string
	Header      Header
	Body        []byte
	Credentials CredentialsMode
}

// NewRequest creates a request with a fresh correlation ID.
func NewRequest(method, rawURL string, header Header, body []byte, creds CredentialsMode) *Request {
	if method == "" {
		method = http.MethodGet
	}
	if creds == "" {
		creds = CredentialsSameOrigin
	}
	return &Request{
		ID:          uuid.NewString(),
		Method:      method,
		URL:         rawURL,
		Header:      header.Clone(),
		Body:        body,
		Credentials: creds,
	}
}

// WithURL returns a copy of r targeting rawURL. Every other field is kept,
// including the correlation ID.
func (r *Request) WithURL(rawURL string) *Request {
	out := *r
	out.URL = rawURL
	out.Header = r.Header.Clone()
	if r.Body != nil {
		out.Body = append([]byte(nil), r.Body...)
	}
	return &out
}

// ErrBodyConsumed is returned when a response body is read a second time after
// a failed read.
var ErrBodyConsumed = errors.New("response body already consumed")

// Response is the result of a dispatched request.
type Response struct {
	StatusCode int
	Header     Header
	Body       io.ReadCloser

	// HTTPHeader holds every received value per name, which Header cannot
	// represent for fields such as Set-Cookie. Nil for responses built in
	// memory.
	HTTPHeader http.Header

	read    bool
	data    []byte
	readErr error
}

// NewResponse builds a response around an in-memory body.
func NewResponse(status int, header Header, body []byte) *Response {
	if header == nil {
		header = Header{}
	}
	return &Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader(body)),
	}
}

// Bytes reads the whole body as binary data and closes it.
func (r *Response) Bytes() ([]byte, error) {
	if !r.read {
		r.read = true
		if r.Body == nil {
			r.data = []byte{}
		} else {
			r.data, r.readErr = io.ReadAll(r.Body)
			r.Body.Close()
		}
	}
	if r.readErr != nil {
		return nil, r.readErr
	}
	return r.data, nil
}

// Text returns the body as UTF-8 text. A body whose read already failed is
// consumed, and partial data is never returned.
func (r *Response) Text() (string, error) {
	data, err := r.Bytes()
	if err != nil {
		return "", ErrBodyConsumed
	}
	if !utf8.Valid(data) {
		return "", errors.New("response body is not valid UTF-8")
	}
	return string(data), nil
}

// HTTPHeaders returns the response header as an http.Header, preferring the
// multi-valued form when one was received.
func (r *Response) HTTPHeaders() http.Header {
	if r.HTTPHeader != nil {
		return r.HTTPHeader.Clone()
	}
	return r.Header.ToHTTP()
}

// Close releases the body without reading it.
func (r *Response) Close() error {
	if r.read || r.Body == nil {
		return nil
	}
	r.read = true
	r.readErr = ErrBodyConsumed
	return r.Body.Close()
}
