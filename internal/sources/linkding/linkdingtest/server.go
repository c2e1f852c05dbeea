// Package linkdingtest provides an in-memory linkding API for tests.
package linkdingtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/MrSnakeDoc/linkdeck/internal/sources/linkding"
)

// Token is the only credential the fake server accepts.
const Token = "linkdingtest-token"

// Server serves /api/bookmarks/, /api/bookmarks/archived/ and /api/tags/
// from memory, honouring limit and offset.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	active   []linkding.BookmarkRecord
	archived []linkding.BookmarkRecord
	tags     []linkding.TagRecord
	status   int

	hits atomic.Int32
}

// NewServer starts a fake. Close it when done.
func NewServer(active, archived []linkding.BookmarkRecord, tags []linkding.TagRecord) *Server {
	s := &Server{active: active, archived: archived, tags: tags}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/bookmarks/", s.bookmarks)
	mux.HandleFunc("GET /api/bookmarks/archived/", s.archivedBookmarks)
	mux.HandleFunc("GET /api/tags/", s.tagList)
	s.Server = httptest.NewServer(s.auth(mux))
	return s
}

// APIURL is the base URL a linkding client should be configured with.
func (s *Server) APIURL() string { return s.URL + "/api" }

// Hits counts authorized requests.
func (s *Server) Hits() int { return int(s.hits.Load()) }

// SetStatus makes every following request fail with code. 0 restores normal service.
func (s *Server) SetStatus(code int) {
	s.mu.Lock()
	s.status = code
	s.mu.Unlock()
}

// SetActive replaces the active bookmark listing.
func (s *Server) SetActive(records []linkding.BookmarkRecord) {
	s.mu.Lock()
	s.active = records
	s.mu.Unlock()
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token "+Token {
			http.Error(w, `{"detail":"Invalid token."}`, http.StatusUnauthorized)
			return
		}
		s.hits.Add(1)

		s.mu.Lock()
		status := s.status
		s.mu.Unlock()
		if status != 0 {
			http.Error(w, http.StatusText(status), status)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) bookmarks(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	records := s.active
	s.mu.Unlock()
	writePage(w, r, records)
}

func (s *Server) archivedBookmarks(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	records := s.archived
	s.mu.Unlock()
	writePage(w, r, records)
}

func (s *Server) tagList(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	tags := s.tags
	s.mu.Unlock()
	writePage(w, r, tags)
}

type page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

func writePage[T any](w http.ResponseWriter, r *http.Request, all []T) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 100
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	offset = max(offset, 0)

	start := min(offset, len(all))
	end := min(offset+limit, len(all))

	resp := page[T]{Count: len(all), Results: append([]T{}, all[start:end]...)}
	if end < len(all) {
		next := fmt.Sprintf("http://%s%s?limit=%d&offset=%d", r.Host, r.URL.Path, limit, end)
		resp.Next = &next
	}
	if start > 0 {
		prev := fmt.Sprintf("http://%s%s?limit=%d&offset=%d", r.Host, r.URL.Path, limit, max(start-limit, 0))
		resp.Previous = &prev
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
