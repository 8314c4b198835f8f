package testutil

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/specialistvlad/ikflowgo/internal/ctxlog"
	"github.com/stretchr/testify/require"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// LogContext returns a context carrying a debug-level text logger that
// writes into the returned buffer. Set IKFLOW_TEST_LOGS=true to echo the
// captured output when the test finishes.
func LogContext(t *testing.T) (context.Context, *SafeBuffer) {
	t.Helper()
	buf := &SafeBuffer{}
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	t.Cleanup(func() {
		if os.Getenv("IKFLOW_TEST_LOGS") == "true" {
			t.Logf("--- CAPTURED LOGS ---\n%s", buf.String())
		}
	})
	return ctxlog.WithLogger(context.Background(), logger), buf
}

// WriteFiles creates a temporary directory holding files, keyed by path
// relative to that directory, and returns the directory.
func WriteFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return root
}
