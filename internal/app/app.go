package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/specialistvlad/ikflowgo/internal/artifact"
	"github.com/specialistvlad/ikflowgo/internal/tracking"
)

// SinkDialer connects to the experiment tracker at url for runID.
type SinkDialer func(ctx context.Context, url, runID string) (tracking.Sink, error)

func dialSocketIO(ctx context.Context, url, runID string) (tracking.Sink, error) {
	sink, err := tracking.Dial(ctx, url, runID, tracking.SocketIOOptions{})
	if err != nil {
		return nil, err
	}
	return sink, nil
}

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW       io.Writer
	logger     *slog.Logger
	config     *Config
	lookupEnv  LookupFunc
	dialSink   SinkDialer
	cacheOpts  []artifact.Option
	httpServer *http.Server
}

// Option customises an App.
type Option func(*App)

// WithEnv replaces os.LookupEnv, e.g. to inject a job array index.
func WithEnv(lookup LookupFunc) Option {
	return func(a *App) { a.lookupEnv = lookup }
}

// WithSinkDialer replaces the socket.io tracker connection.
func WithSinkDialer(d SinkDialer) Option {
	return func(a *App) { a.dialSink = d }
}

// WithCacheOptions passes options to the artifact cache.
func WithCacheOptions(opts ...artifact.Option) Option {
	return func(a *App) { a.cacheOpts = append(a.cacheOpts, opts...) }
}

// NewApp is the constructor for the main application. Logs go to logW and
// command results to outW.
func NewApp(logW, outW io.Writer, cfg *Config, opts ...Option) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	logger.Debug("Logger configured successfully.")

	a := &App{
		outW:      outW,
		logger:    logger,
		config:    cfg,
		lookupEnv: os.LookupEnv,
		dialSink:  dialSocketIO,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Logger returns the application's logger.
func (a *App) Logger() *slog.Logger {
	return a.logger
}
