package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{name: "generated when absent", incoming: ""},
		{name: "valid uuid kept", incoming: "6f1c2b8e-9a43-4c1e-8f6d-2b7a9c0d1e2f", keep: true},
		{name: "garbage replaced", incoming: "not-a-uuid\r\nX-Evil: 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetRequestID(r.Context())
			}))

			req := httptest.NewRequest("POST", "/v1/negotiate", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if _, err := uuid.Parse(seen); err != nil {
				t.Fatalf("context ID %q is not a UUID", seen)
			}
			if got := w.Header().Get(RequestIDHeader); got != seen {
				t.Errorf("response header = %q, context = %q", got, seen)
			}
			if tt.keep && seen != tt.incoming {
				t.Errorf("ID = %q, want %q", seen, tt.incoming)
			}
			if !tt.keep && seen == tt.incoming {
				t.Errorf("ID %q should have been replaced", seen)
			}
		})
	}
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := Chain(RequestID(), Logging(logger))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte("rejected"))
	}))

	req := httptest.NewRequest("POST", "/v1/negotiate", nil)
	req.Header.Set("User-Agent", "shimctl")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}

	logged := buf.String()
	checks := []string{"method=POST", "path=/v1/negotiate", "status=422", "request_id=" + w.Header().Get(RequestIDHeader)}
	for _, check := range checks {
		if !strings.Contains(logged, check) {
			t.Errorf("Log missing %q: %s", check, logged)
		}
	}
}

func TestLoggingDefaultStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/health", nil))

	if logged := buf.String(); !strings.Contains(logged, "status=200") {
		t.Errorf("Expected status=200 in log: %s", logged)
	}
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("cdm exploded")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/v1/device", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	logged := buf.String()
	if !strings.Contains(logged, "panic recovered") || !strings.Contains(logged, "cdm exploded") {
		t.Errorf("Log missing panic details: %s", logged)
	}
}

func TestRecoveryAfterHeaderWritten(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	handler := Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		panic("late")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	if w.Code != http.StatusAccepted {
		t.Errorf("Status = %d, want the already written %d", w.Code, http.StatusAccepted)
	}
}

func TestRecoveryNoPanic(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	handler := Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/ok", nil))

	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Errorf("Status = %d, Body = %s", w.Code, w.Body.String())
	}
}

func TestChain(t *testing.T) {
	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name+"-before")
				next.ServeHTTP(w, r)
				order = append(order, name+"-after")
			})
		}
	}

	handler := Chain(mark("m1"), mark("m2"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	expected := []string{"m1-before", "m2-before", "handler", "m2-after", "m1-after"}
	if strings.Join(order, ",") != strings.Join(expected, ",") {
		t.Errorf("Order = %v, want %v", order, expected)
	}
}

func TestResponseWriterFirstStatusWins(t *testing.T) {
	w := httptest.NewRecorder()
	rw := wrap(w)

	rw.WriteHeader(http.StatusCreated)
	rw.WriteHeader(http.StatusNotFound)

	if rw.status != http.StatusCreated || w.Code != http.StatusCreated {
		t.Errorf("status = %d, underlying = %d, want %d", rw.status, w.Code, http.StatusCreated)
	}
	if wrap(rw) != rw {
		t.Error("wrap should not double-wrap")
	}
}
