package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/specialistvlad/ikflowgo/internal/ctxlog"
)

// healthHandler answers liveness checks while a run is in progress.
func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// startHealthcheckServer binds the health check port and serves it in the
// background. It returns the bound address.
func (a *App) startHealthcheckServer(ctx context.Context, port int) (string, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Configuring health check server.")

	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.healthHandler)

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return "", fmt.Errorf("health check server: %w", err)
	}
	a.httpServer = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("Health check server starting.", "address", fmt.Sprintf("http://%s/health", ln.Addr()))
		if err := a.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Health check server failed unexpectedly.", "error", err)
		}
	}()
	return ln.Addr().String(), nil
}

func (a *App) closeHealthcheckServer(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	if a.httpServer == nil {
		logger.Debug("Health check server was not running.")
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	logger.Debug("Shutting down health check server...")
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Health check server shutdown failed.", "error", err)
		return err
	}
	a.httpServer = nil
	return nil
}
