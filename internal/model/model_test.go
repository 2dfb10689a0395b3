package model

import (
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"testing"
)

func TestKeySystemConfigurationClone(t *testing.T) {
	orig := KeySystemConfiguration{
		InitDataTypes:     []string{"cenc"},
		AudioCapabilities: []MediaCapability{{ContentType: "audio/mp4"}},
		VideoCapabilities: []MediaCapability{{ContentType: "video/mp4", Robustness: RobustnessSWSecureDecode}},
	}

	clone := orig.Clone()
	clone.InitDataTypes[0] = "webm"
	clone.VideoCapabilities[0].Robustness = RobustnessHWSecureAll
	clone.AudioCapabilities = append(clone.AudioCapabilities, MediaCapability{ContentType: "audio/webm"})

	if orig.InitDataTypes[0] != "cenc" {
		t.Errorf("InitDataTypes mutated: %v", orig.InitDataTypes)
	}
	if orig.VideoCapabilities[0].Robustness != RobustnessSWSecureDecode {
		t.Errorf("VideoCapabilities mutated: %v", orig.VideoCapabilities)
	}
	if len(orig.AudioCapabilities) != 1 {
		t.Errorf("AudioCapabilities len = %d, want 1", len(orig.AudioCapabilities))
	}
}

func TestRobustnessString(t *testing.T) {
	if RobustnessUnset.String() != "<unset>" {
		t.Errorf("unset String() = %q", RobustnessUnset.String())
	}
	if RobustnessHWSecureAll.String() != "HW_SECURE_ALL" {
		t.Errorf("String() = %q", RobustnessHWSecureAll.String())
	}
	if len(RobustnessLevels) != 6 {
		t.Errorf("RobustnessLevels len = %d, want 6", len(RobustnessLevels))
	}
}

func TestRequestWithURL(t *testing.T) {
	req := NewRequest("POST", "https://lic.example/playready-license/v1", Header{"X-Token": "abc"}, []byte("challenge"), CredentialsInclude)
	alt := req.WithURL("https://lic.example/widevine-license/v1")

	if alt.URL != "https://lic.example/widevine-license/v1" {
		t.Errorf("URL = %s", alt.URL)
	}
	if alt.ID != req.ID || alt.Method != "POST" || alt.Credentials != CredentialsInclude {
		t.Errorf("fields not preserved: %+v", alt)
	}
	if alt.Header["X-Token"] != "abc" || string(alt.Body) != "challenge" {
		t.Errorf("header/body not preserved: %+v", alt)
	}
	alt.Header["X-Token"] = "changed"
	if req.Header["X-Token"] != "abc" {
		t.Error("header shared between copies")
	}
}

func TestNewRequestDefaults(t *testing.T) {
	req := NewRequest("", "https://example.com", nil, nil, "")
	if req.Method != "GET" {
		t.Errorf("Method = %s, want GET", req.Method)
	}
	if req.Credentials != CredentialsSameOrigin {
		t.Errorf("Credentials = %s, want same-origin", req.Credentials)
	}
	if req.ID == "" {
		t.Error("expected correlation ID")
	}
}

func TestHeaderToHTTPCanonicalizes(t *testing.T) {
	h := Header{"x-custom-Token": "1", "content-type": "application/octet-stream"}
	hh := h.ToHTTP()
	if got := hh.Get("X-Custom-Token"); got != "1" {
		t.Errorf("Get(X-Custom-Token) = %q, headers = %v", got, hh)
	}
	if got := hh.Get("Content-Type"); got != "application/octet-stream" {
		t.Errorf("Get(Content-Type) = %q, headers = %v", got, hh)
	}
	if _, ok := hh["x-custom-Token"]; ok {
		t.Errorf("ToHTTP() kept non-canonical key: %v", hh)
	}
}

func TestHeaderFromHTTP(t *testing.T) {
	tests := []struct {
		name string
		in   http.Header
		want Header
	}{
		{
			name: "single values",
			in:   http.Header{"Content-Type": {"application/octet-stream"}},
			want: Header{"Content-Type": "application/octet-stream"},
		},
		{
			name: "repeated values are combined",
			in:   http.Header{"Vary": {"Origin", "Accept"}},
			want: Header{"Vary": "Origin, Accept"},
		},
		{
			name: "empty values are dropped",
			in:   http.Header{"X-Empty": {}},
			want: Header{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HeaderFromHTTP(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("HeaderFromHTTP() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResponseHTTPHeadersKeepsRepeatedValues(t *testing.T) {
	received := http.Header{"Set-Cookie": {"a=1; Path=/", "b=2; Expires=Wed, 21 Oct 2026 07:28:00 GMT"}}
	resp := &Response{StatusCode: 200, Header: HeaderFromHTTP(received), HTTPHeader: received}

	if got := resp.HTTPHeaders().Values("Set-Cookie"); !reflect.DeepEqual(got, received["Set-Cookie"]) {
		t.Errorf("Set-Cookie = %v, want %v", got, received["Set-Cookie"])
	}

	mem := NewResponse(200, Header{"content-type": "text/plain"}, nil)
	if got := mem.HTTPHeaders().Get("Content-Type"); got != "text/plain" {
		t.Errorf("in-memory Content-Type = %q", got)
	}
}

type failingReader struct {
	data []byte
	done bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.done {
		return 0, errors.New("connection reset")
	}
	r.done = true
	return copy(p, r.data), nil
}

func TestResponseBytesAndText(t *testing.T) {
	resp := NewResponse(200, nil, []byte("license"))
	b, err := resp.Bytes()
	if err != nil || string(b) != "license" {
		t.Fatalf("Bytes() = %q, %v", b, err)
	}
	text, err := resp.Text()
	if err != nil || text != "license" {
		t.Errorf("Text() = %q, %v", text, err)
	}
}

func TestResponsePartialReadIsConsumed(t *testing.T) {
	resp := &Response{StatusCode: 200, Body: io.NopCloser(&failingReader{data: []byte("partial-lic")})}

	if _, err := resp.Bytes(); err == nil {
		t.Fatal("expected Bytes() error")
	}
	text, err := resp.Text()
	if !errors.Is(err, ErrBodyConsumed) {
		t.Errorf("Text() error = %v, want ErrBodyConsumed", err)
	}
	if text != "" {
		t.Errorf("Text() = %q, want empty", text)
	}
}

func TestResponseFailedReadNoData(t *testing.T) {
	resp := &Response{StatusCode: 200, Body: io.NopCloser(&failingReader{done: true})}

	if _, err := resp.Bytes(); err == nil {
		t.Fatal("expected Bytes() error")
	}
	if _, err := resp.Text(); !errors.Is(err, ErrBodyConsumed) {
		t.Errorf("Text() error = %v, want ErrBodyConsumed", err)
	}
}

func TestResponseClose(t *testing.T) {
	resp := NewResponse(404, nil, []byte(strings.Repeat("x", 10)))
	if err := resp.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if _, err := resp.Bytes(); !errors.Is(err, ErrBodyConsumed) {
		t.Errorf("Bytes() after Close error = %v, want ErrBodyConsumed", err)
	}
}
