package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/specialistvlad/ikflowgo/internal/ctxlog"
	"github.com/specialistvlad/ikflowgo/internal/fsutil"
)

// DownloadError wraps any network or filesystem failure met while fetching an artifact.
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("failed to download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// Fetcher streams the content behind u into w.
type Fetcher interface {
	Fetch(ctx context.Context, u *url.URL, w io.Writer) error
}

// Cache is a directory of downloaded artifacts.
type Cache struct {
	dir       string
	fetchers  map[string]Fetcher
	transfers atomic.Int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithFetcher installs f for URLs of the given scheme, replacing any default.
func WithFetcher(scheme string, f Fetcher) Option {
	return func(c *Cache) {
		c.fetchers[strings.ToLower(scheme)] = f
	}
}

// DefaultDownloadTimeout bounds a single artifact transfer.
const DefaultDownloadTimeout = 10 * time.Minute

// New returns a cache rooted at dir. http, https and file URLs are supported
// out of the box.
func New(dir string, opts ...Option) *Cache {
	httpFetcher := &HTTPFetcher{Client: NewHTTPClient(DefaultDownloadTimeout)}
	c := &Cache{
		dir: dir,
		fetchers: map[string]Fetcher{
			"http":  httpFetcher,
			"https": httpFetcher,
			"file":  FileFetcher{},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Transfers reports how many downloads this cache has completed.
func (c *Cache) Transfers() int64 {
	return c.transfers.Load()
}

// Filename returns the cache key of sourceURL: everything after its last '/'.
func Filename(sourceURL string) string {
	return sourceURL[strings.LastIndex(sourceURL, "/")+1:]
}

// Path returns where sourceURL is, or would be, cached.
func (c *Cache) Path(sourceURL string) (string, error) {
	name := Filename(sourceURL)
	if name == "" || name == "." || name == ".." || strings.ContainsRune(name, filepath.Separator) {
		return "", fmt.Errorf("cannot derive a file name from %q", sourceURL)
	}
	return filepath.Join(c.dir, name), nil
}

// Resolve returns the local path of sourceURL, downloading it first when it
// is not cached yet. An existing file is returned without any network access.
func (c *Cache) Resolve(ctx context.Context, sourceURL string) (string, error) {
	logger := ctxlog.FromContext(ctx).With("url", sourceURL)

	path, err := c.Path(sourceURL)
	if err != nil {
		return "", &DownloadError{URL: sourceURL, Err: err}
	}

	if ok, err := exists(path); err != nil {
		return "", &DownloadError{URL: sourceURL, Err: err}
	} else if ok {
		logger.Debug("Artifact already cached.", "path", path)
		return path, nil
	}

	u, err := url.Parse(sourceURL)
	if err != nil {
		return "", &DownloadError{URL: sourceURL, Err: err}
	}
	fetcher, ok := c.fetchers[strings.ToLower(u.Scheme)]
	if !ok {
		return "", &DownloadError{URL: sourceURL, Err: fmt.Errorf("unsupported URL scheme %q", u.Scheme)}
	}

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return "", &DownloadError{URL: sourceURL, Err: fmt.Errorf("creating cache directory: %w", err)}
	}

	unlock, err := lockKey(ctx, c.lockPath(filepath.Base(path)))
	if err != nil {
		return "", &DownloadError{URL: sourceURL, Err: fmt.Errorf("locking cache entry: %w", err)}
	}
	defer unlock()

	// Another resolver may have finished while we waited for the lock.
	if ok, err := exists(path); err != nil {
		return "", &DownloadError{URL: sourceURL, Err: err}
	} else if ok {
		logger.Debug("Artifact was cached by a concurrent resolver.", "path", path)
		return path, nil
	}

	logger.Info("Downloading artifact...", "path", path)
	start := time.Now()
	var written int64
	err = fsutil.WriteAtomic(path, 0644, func(w io.Writer) error {
		cw := &countingWriter{w: w}
		err := fetcher.Fetch(ctx, u, cw)
		written = cw.n
		return err
	})
	if err != nil {
		return "", &DownloadError{URL: sourceURL, Err: err}
	}

	n := c.transfers.Add(1)
	logger.Info("Artifact downloaded.", "path", path, "bytes", written, "duration", time.Since(start), "transfers", n)
	return path, nil
}

func (c *Cache) lockPath(name string) string {
	return filepath.Join(c.dir, ".locks", name+".lock")
}

func exists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("checking cache entry: %w", err)
	}
	if info.IsDir() {
		return false, fmt.Errorf("cache entry %s is a directory", path)
	}
	return true, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}
