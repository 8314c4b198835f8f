package tracking

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/specialistvlad/ikflowgo/internal/ctxlog"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// Events emitted by SocketIOSink.
const (
	EventHyperparameters = "hyperparameters"
	EventMetrics         = "metrics"
)

// DefaultConnectTimeout bounds Dial.
const DefaultConnectTimeout = 15 * time.Second

// ErrSinkClosed is returned when logging to a closed SocketIOSink.
var ErrSinkClosed = errors.New("tracking sink is closed")

// SocketIOOptions configures Dial.
type SocketIOOptions struct {
	Namespace          string
	InsecureSkipVerify bool
	ConnectTimeout     time.Duration
}

// SocketIOSink emits records as socket.io events tagged with the run ID.
type SocketIOSink struct {
	runID      string
	emit       func(event string, payload map[string]any)
	disconnect func()

	mu     sync.Mutex
	closed bool
}

// Dial connects to the tracker at rawURL and returns a sink for runID.
func Dial(ctx context.Context, rawURL, runID string, o SocketIOOptions) (*SocketIOSink, error) {
	logger := ctxlog.FromContext(ctx).With("sink", "socketio", "url", rawURL)
	logger.Info("Connecting to experiment tracker...")

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("tracking URL %q must be absolute", rawURL)
	}
	timeout := o.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}

	opts := socket.DefaultOptions()
	if parsedURL.Path != "" {
		opts.SetPath(parsedURL.Path)
	}
	if o.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification.")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	connectChan := make(chan error, 1)

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(o.Namespace, opts)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Info("Connected to experiment tracker.", "sid", io.Id())
		connectChan <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		var err error = errors.New("connect_error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		connectChan <- err
	})

	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection: %w", ctx.Err())
	case <-time.After(timeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", timeout)
	}

	return newSocketIOSink(runID,
		func(event string, payload map[string]any) { io.Emit(event, payload) },
		func() { io.Disconnect() },
	), nil
}

func newSocketIOSink(runID string, emit func(string, map[string]any), disconnect func()) *SocketIOSink {
	return &SocketIOSink{runID: runID, emit: emit, disconnect: disconnect}
}

func (s *SocketIOSink) send(event string, payload map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	payload["run_id"] = s.runID
	s.emit(event, payload)
	return nil
}

// LogHyperparameters emits an EventHyperparameters event.
func (s *SocketIOSink) LogHyperparameters(_ context.Context, params map[string]any) error {
	return s.send(EventHyperparameters, map[string]any{"hyperparameters": params})
}

// LogScalars emits an EventMetrics event.
func (s *SocketIOSink) LogScalars(_ context.Context, step int, scalars map[string]float64) error {
	return s.send(EventMetrics, map[string]any{"step": step, "metrics": scalars})
}

// Close disconnects from the tracker. It is safe to call more than once.
func (s *SocketIOSink) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	ctxlog.FromContext(ctx).Debug("Disconnecting from experiment tracker.", "run_id", s.runID)
	s.disconnect()
	return nil
}
