// Package transport provides the HTTP transport the off-device harness uses
// to reach license servers.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

// License servers commonly sit behind CDNs that fingerprint the TLS
// ClientHello, and a Go client looks nothing like the TV browser the
// application thinks it is running in. The transport below dials TLS with
// uTLS's Chrome hello and lets ALPN choose between HTTP/2 and HTTP/1.1.
// Plain http:// targets (local license emulators, tests) skip uTLS entirely.

// NewChromeTransport returns a RoundTripper presenting Chrome's TLS
// fingerprint. timeout bounds the TCP dial.
func NewChromeTransport(timeout time.Duration) http.RoundTripper {
	dialer := &net.Dialer{Timeout: timeout}
	dialTLS := func(ctx context.Context, network, addr string) (net.Conn, error) {
		return dialChromeTLS(ctx, dialer, network, addr)
	}

	return &chromeTransport{
		h2: &http2.Transport{
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				return dialTLS(ctx, network, addr)
			},
		},
		h1: &http.Transport{
			DialContext:       dialer.DialContext,
			DialTLSContext:    dialTLS,
			ForceAttemptHTTP2: false,
		},
	}
}

// NewClient returns an *http.Client over NewChromeTransport whose requests
// time out after timeout in total.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: NewChromeTransport(timeout),
		Timeout:   timeout,
	}
}

type chromeTransport struct {
	h2 *http2.Transport
	h1 *http.Transport
}

// RoundTrip sends https requests over HTTP/2 when the server negotiates it and
// retries on HTTP/1.1 otherwise. Requests with a body that cannot be rewound
// are not retried.
func (t *chromeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" {
		return t.h1.RoundTrip(req)
	}

	resp, err := t.h2.RoundTrip(req)
	if err == nil {
		return resp, nil
	}
	if req.Body != nil && req.Body != http.NoBody {
		if req.GetBody == nil {
			return nil, err
		}
		body, gerr := req.GetBody()
		if gerr != nil {
			return nil, fmt.Errorf("rewinding request body: %w", gerr)
		}
		req = req.Clone(req.Context())
		req.Body = body
	}
	return t.h1.RoundTrip(req)
}

func dialChromeTLS(ctx context.Context, dialer *net.Dialer, network, addr string) (net.Conn, error) {
	serverName, _, err := net.SplitHostPort(addr)
	if err != nil {
		serverName = addr
	}

	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	tlsConn := utls.UClient(conn, &utls.Config{ServerName: serverName}, utls.HelloChrome_Auto)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tls handshake: %w", err)
	}
	return tlsConn, nil
}
