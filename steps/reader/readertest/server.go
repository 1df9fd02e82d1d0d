// Package readertest provides an in-process fake of the Confluence REST endpoints used by reader.
package readertest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rasha-hantash/confluence-mirror/steps/reader"
)

const (
	Username = "svc-mirror@example.com"
	Token    = "api-token"
)

type page struct {
	id, space, parent, title, body, when string
	children                             []string
}

// Server is a fake Confluence instance holding a page tree per space.
type Server struct {
	*httptest.Server

	mu           sync.Mutex
	pages        map[string]*page
	order        []string
	modified     []string
	failContent  map[string]int
	failChildren map[string]int
	failSearch   int
	hidden       map[string]bool
	requests     []string
	lastCQL      string
}

// NewServer starts a fake server that is closed when t finishes.
func NewServer(t testing.TB) *Server {
	s := &Server{
		pages:        map[string]*page{},
		failContent:  map[string]int{},
		failChildren: map[string]int{},
		hidden:       map[string]bool{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /rest/api/content", s.handleList)
	mux.HandleFunc("GET /rest/api/content/{id}", s.handleContent)
	mux.HandleFunc("GET /rest/api/content/{id}/child/page", s.handleChildren)
	mux.HandleFunc("GET /rest/api/search", s.handleSearch)

	s.Server = httptest.NewServer(s.authenticate(mux))
	t.Cleanup(s.Close)
	return s
}

// Reader returns a reader pointed at the fake with matching credentials.
func (s *Server) Reader() *reader.Reader {
	return reader.NewReader(s.URL, "", Username, Token, 5*time.Second)
}

// AddPage adds a page under parent ("" for a root page).
func (s *Server) AddPage(space, id, parent, title, body, when string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[id] = &page{id: id, space: space, parent: parent, title: title, body: body, when: when}
	s.order = append(s.order, id)
	if p, ok := s.pages[parent]; ok {
		p.children = append(p.children, id)
	}
}

// SetModified sets the ids returned by any CQL search.
func (s *Server) SetModified(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modified = ids
}

// FailContent makes GET content/{id} answer with status.
func (s *Server) FailContent(id string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failContent[id] = status
}

// FailChildren makes GET content/{id}/child/page answer with status.
func (s *Server) FailChildren(id string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failChildren[id] = status
}

// FailSearch makes every CQL search answer with status.
func (s *Server) FailSearch(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSearch = status
}

// Requests returns the request paths (with query) served so far.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// HideFromSearch drops ids from search responses after paging, the way
// Confluence filters results the account may not view. Pages stay short while
// _links.next still points at the remaining results.
func (s *Server) HideFromSearch(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.hidden[id] = true
	}
}

// LastCQL returns the cql parameter of the most recent search.
func (s *Server) LastCQL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCQL
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.URL.RequestURI())
		s.mu.Unlock()

		user, pass, ok := r.BasicAuth()
		if !ok || user != Username || pass != Token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	space := r.URL.Query().Get("spaceKey")
	var refs []map[string]string
	for _, id := range s.order {
		if p := s.pages[id]; p.space == space {
			refs = append(refs, map[string]string{"id": p.id, "title": p.title})
		}
	}
	refs, links := window(refs, r)
	writeJSON(w, map[string]any{"results": nonNil(refs), "size": len(refs), "_links": links})
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := r.PathValue("id")
	if status, ok := s.failContent[id]; ok {
		http.Error(w, http.StatusText(status), status)
		return
	}
	p, ok := s.pages[id]
	if !ok {
		http.Error(w, "no content", http.StatusNotFound)
		return
	}

	var ancestors []map[string]string
	for parent := s.pages[p.parent]; parent != nil; parent = s.pages[parent.parent] {
		ancestors = append([]map[string]string{{"id": parent.id, "title": parent.title}}, ancestors...)
	}
	writeJSON(w, map[string]any{
		"id":        p.id,
		"title":     p.title,
		"body":      map[string]any{"storage": map[string]string{"value": p.body, "representation": "storage"}},
		"version":   map[string]any{"when": p.when},
		"ancestors": nonNil(ancestors),
	})
}

func (s *Server) handleChildren(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := r.PathValue("id")
	if status, ok := s.failChildren[id]; ok {
		http.Error(w, http.StatusText(status), status)
		return
	}
	p, ok := s.pages[id]
	if !ok {
		http.Error(w, "no content", http.StatusNotFound)
		return
	}
	var refs []map[string]string
	for _, c := range p.children {
		refs = append(refs, map[string]string{"id": c, "title": s.pages[c].title})
	}
	refs, links := window(refs, r)
	writeJSON(w, map[string]any{"results": nonNil(refs), "size": len(refs), "_links": links})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastCQL = r.URL.Query().Get("cql")
	if s.failSearch != 0 {
		http.Error(w, http.StatusText(s.failSearch), s.failSearch)
		return
	}
	ids, links := window(s.modified, r)
	results := []map[string]any{}
	for _, id := range ids {
		if !s.hidden[id] {
			results = append(results, map[string]any{"content": map[string]string{"id": id, "type": "page"}})
		}
	}
	writeJSON(w, map[string]any{"results": results, "size": len(results), "_links": links})
}

// window slices items by the start and limit parameters and returns the
// _links object, with next set while items remain.
func window[T any](items []T, r *http.Request) ([]T, map[string]string) {
	q := r.URL.Query()
	start, _ := strconv.Atoi(q.Get("start"))
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit <= 0 {
		limit = 25
	}

	links := map[string]string{"base": "http://" + r.Host}
	if start >= len(items) {
		return nil, links
	}
	end := start + limit
	if end < len(items) {
		q.Set("start", strconv.Itoa(end))
		q.Set("limit", strconv.Itoa(limit))
		links["next"] = r.URL.Path + "?" + q.Encode()
	} else {
		end = len(items)
	}
	return items[start:end], links
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
