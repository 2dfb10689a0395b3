package host

import (
	"context"
	"sync"

	"drm-shim/internal/model"
)

// ReadyState is the lifecycle position of a callback-driven request object.
type ReadyState int

const (
	Unsent ReadyState = iota
	Opened
	HeadersReceived
	Loading
	Done
)

// Sent is reported from Send until the final response is known. It shares its
// value with HeadersReceived.
const Sent = HeadersReceived

func (s ReadyState) String() string {
	switch s {
	case Unsent:
		return "UNSENT"
	case Opened:
		return "OPENED"
	case HeadersReceived:
		return "HEADERS_RECEIVED"
	case Loading:
		return "LOADING"
	case Done:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// Response types reported by XHRState.ResponseType.
const (
	ResponseTypeArrayBuffer = "arraybuffer"
	ResponseTypeText        = "text"
)

// XHR is the request-object surface where method, URL, headers and credentials
// are set on the object before a single Send. Completion is reported through
// the callbacks on State, never through Send's return value; Send only fails
// for misuse such as sending before Open or sending twice.
type XHR interface {
	Open(method, rawURL string) error
	SetRequestHeader(name, value string) error
	SetWithCredentials(include bool)
	Send(ctx context.Context, body []byte) error
	State() *XHRState
}

// XHRState is the caller-visible state of an XHR. Callbacks must be assigned
// before Send and run at most once each, on the goroutine completing the
// request.
type XHRState struct {
	OnLoad             func()
	OnReadyStateChange func()
	OnError            func(error)

	mu           sync.Mutex
	readyState   ReadyState
	status       int
	responseType string
	response     []byte
	responseText string

	done     chan struct{}
	doneOnce sync.Once
}

// NewXHRState returns an unsent state.
func NewXHRState() *XHRState {
	return &XHRState{done: make(chan struct{})}
}

func (s *XHRState) ReadyState() ReadyState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readyState
}

func (s *XHRState) SetReadyState(rs ReadyState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readyState = rs
}

func (s *XHRState) Status() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *XHRState) SetStatus(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = code
}

// Response returns the binary body, or nil when the body was delivered as text.
func (s *XHRState) Response() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.response
}

// ResponseText returns the text body, or "" when the body was delivered as binary.
func (s *XHRState) ResponseText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.responseText
}

func (s *XHRState) ResponseType() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.responseType
}

// SetBinaryBody stores body as the binary representation and clears the text one.
func (s *XHRState) SetBinaryBody(body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.response = body
	s.responseText = ""
	s.responseType = ResponseTypeArrayBuffer
}

// SetTextBody stores text as the text representation and clears the binary one.
func (s *XHRState) SetTextBody(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.response = nil
	s.responseText = text
	s.responseType = ResponseTypeText
}

// Settle releases goroutines waiting on Done. Implementations call it after the
// completion callbacks have returned.
func (s *XHRState) Settle() {
	s.doneOnce.Do(func() { close(s.done) })
}

// Done is closed once the request has completed and its callbacks have run.
func (s *XHRState) Done() <-chan struct{} {
	return s.done
}

// Complete moves a settled dispatch onto s and fires the registered callbacks.
//
// On success the status is copied and the state steps through
// HeadersReceived and Loading to Done. The body is stored as binary if it can
// be read, else as text, else as empty text, and OnLoad then
// OnReadyStateChange run. A body that fails to read is not a dispatch
// failure. On failure the status is 0, the state becomes Done, and OnError
// then OnReadyStateChange run.
func (s *XHRState) Complete(resp *model.Response, err error) {
	if err != nil {
		s.SetStatus(0)
		s.SetReadyState(Done)
		if s.OnError != nil {
			s.OnError(err)
		}
		if s.OnReadyStateChange != nil {
			s.OnReadyStateChange()
		}
		return
	}

	s.SetStatus(resp.StatusCode)
	s.SetReadyState(HeadersReceived)
	s.SetReadyState(Loading)
	if data, err := resp.Bytes(); err == nil {
		s.SetBinaryBody(data)
	} else if text, err := resp.Text(); err == nil {
		s.SetTextBody(text)
	} else {
		s.SetTextBody("")
	}
	s.SetReadyState(Done)

	if s.OnLoad != nil {
		s.OnLoad()
	}
	if s.OnReadyStateChange != nil {
		s.OnReadyStateChange()
	}
}
