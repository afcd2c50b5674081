// Package mockapi implements a minimal fake of the Scratch project metadata
// service for tests and local runs.
package mockapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

// Call records a request made to the mock service.
type Call struct {
	Method string
	Path   string
}

// Project is the canned metadata served for one project id.
type Project struct {
	Title         string
	Author        string
	Created       string
	Modified      string
	RemixParentID *int64
	RemixRootID   *int64
}

// Server serves GET /projects/{id} with canned records. Unknown ids get a
// deterministic synthetic record so large test runs do not need per-id setup.
type Server struct {
	mu       sync.Mutex
	calls    []Call
	projects map[int64]Project

	// failuresLeft makes the next N requests for an id return HTTP 500,
	// for retry-budget tests.
	failuresLeft map[int64]int

	synthesize bool
}

// New constructs a mock server. With synthesize enabled, ids without a canned
// record are answered with a generated one instead of 404.
func New(synthesize bool) *Server {
	return &Server{
		projects:     make(map[int64]Project),
		failuresLeft: make(map[int64]int),
		synthesize:   synthesize,
	}
}

// SetProject registers a canned record.
func (s *Server) SetProject(id int64, p Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[id] = p
}

// FailNext makes the next n requests for id answer HTTP 500.
func (s *Server) FailNext(id int64, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failuresLeft[id] = n
}

// Calls returns a snapshot of requests served so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Handler returns the http.Handler serving the mock API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/projects/", s.handleProject)
	return mux
}

func (s *Server) handleProject(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.Path})
	s.mu.Unlock()

	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	idStr := strings.TrimPrefix(r.URL.Path, "/projects/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		http.Error(w, "bad project id", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	if left := s.failuresLeft[id]; left > 0 {
		s.failuresLeft[id] = left - 1
		s.mu.Unlock()
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	p, ok := s.projects[id]
	synthesize := s.synthesize
	s.mu.Unlock()

	if !ok {
		if !synthesize {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		p = Project{
			Title:    fmt.Sprintf("Project %d", id),
			Author:   fmt.Sprintf("user%d", id%1000),
			Created:  "2020-01-01T00:00:00.000Z",
			Modified: "2020-06-01T00:00:00.000Z",
		}
	}

	body := map[string]any{
		"id":    id,
		"title": p.Title,
		"author": map[string]any{
			"username": p.Author,
		},
		"history": map[string]any{
			"created":  p.Created,
			"modified": p.Modified,
		},
		"remix": map[string]any{
			"parent": p.RemixParentID,
			"root":   p.RemixRootID,
		},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}
