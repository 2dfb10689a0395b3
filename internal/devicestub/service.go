package devicestub

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultServiceDelay is how long a fake service call takes to answer.
const DefaultServiceDelay = 5 * time.Millisecond

// ServiceResponse is the payload delivered to a service call's success
// callback.
type ServiceResponse struct {
	ReturnValue bool           `json:"returnValue"`
	Data        map[string]any `json:"data"`
}

// Service answers every system service call with a generic success.
type Service struct {
	Delay  time.Duration
	logger *slog.Logger
}

// NewService creates a service stub answering after DefaultServiceDelay.
func NewService(logger *slog.Logger) *Service {
	return &Service{Delay: DefaultServiceDelay, logger: logger}
}

// Call is a pending service call.
type Call struct {
	uri    string
	cancel context.CancelFunc
	done   chan struct{}
	logger *slog.Logger
	once   sync.Once
}

// Cancel stops the call. The success callback does not run if it has not
// started yet.
func (c *Call) Cancel() {
	c.once.Do(func() {
		c.logger.Info("service request cancelled", slog.String("uri", c.uri))
	})
	c.cancel()
}

// Done is closed when the call has answered or been cancelled.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Request schedules onSuccess with {returnValue: true, data: {}} after the
// service delay, on its own goroutine. params are logged and otherwise
// ignored.
func (s *Service) Request(ctx context.Context, uri string, params map[string]any, onSuccess func(ServiceResponse)) *Call {
	ctx, cancel := context.WithCancel(ctx)
	c := &Call{uri: uri, cancel: cancel, done: make(chan struct{}), logger: s.logger}

	s.logger.Info("service request",
		slog.String("uri", uri),
		slog.Any("params", params))

	go func() {
		defer close(c.done)
		defer cancel()
		t := time.NewTimer(s.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		if onSuccess != nil {
			onSuccess(ServiceResponse{ReturnValue: true, Data: map[string]any{}})
		}
	}()
	return c
}
