package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// ArtifactServer serves fixed files over HTTP and counts requests per path.
// Paths without a body answer 404.
type ArtifactServer struct {
	*httptest.Server

	mu    sync.Mutex
	files map[string][]byte
	hits  map[string]int
}

// NewArtifactServer starts a server for files, keyed by URL path.
func NewArtifactServer(t *testing.T, files map[string]string) *ArtifactServer {
	t.Helper()
	s := &ArtifactServer{files: make(map[string][]byte), hits: make(map[string]int)}
	for p, body := range files {
		s.files[p] = []byte(body)
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *ArtifactServer) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits[r.URL.Path]++
	body, ok := s.files[r.URL.Path]
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	_, _ = w.Write(body)
}

// Hits returns how many requests were made for path.
func (s *ArtifactServer) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}
