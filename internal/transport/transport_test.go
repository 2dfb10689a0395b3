package transport

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestChromeTransportPlainHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Write([]byte(r.Method + ":" + string(body)))
	}))
	defer srv.Close()

	client := NewClient(5 * time.Second)
	resp, err := client.Post(srv.URL+"/widevine-license/", "application/octet-stream", strings.NewReader("challenge"))
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	defer resp.Body.Close()

	got, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(got) != "POST:challenge" {
		t.Errorf("status = %d, body = %q", resp.StatusCode, got)
	}
}

func TestChromeTransportDialError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if _, err := NewClient(time.Second).Get(url); err == nil {
		t.Error("expected dial error for closed server")
	}
}
