// Package testutil provides an in-process stand-in for the remote image
// server used by session and command tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"imgfetch/pkg/api"
	"imgfetch/pkg/models"
)

// JPEG is the payload served for every image
var JPEG = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01}

// MockServer simulates the image server endpoints
type MockServer struct {
	server *httptest.Server

	mu           sync.Mutex
	requests     map[string]int
	errors       map[string]int
	delays       map[string]time.Duration
	failFetch    map[int]bool
	fetchCalls   int
	downloads    []models.DownloadRequest
	searches     []models.SearchRequest
	searchTotals map[string]int
	categories   []models.Category
	gallery      []models.Image
}

// NewMockServer starts a mock server. Every search query has 30 results
// unless configured otherwise.
func NewMockServer() *MockServer {
	m := &MockServer{
		requests:     make(map[string]int),
		errors:       make(map[string]int),
		delays:       make(map[string]time.Duration),
		failFetch:    make(map[int]bool),
		searchTotals: make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(api.DownloadEndpoint, m.handleDownload)
	mux.HandleFunc(api.FetchImageEndpoint, m.handleFetchImage)
	mux.HandleFunc(api.SearchLocalEndpoint, m.handleSearch)
	mux.HandleFunc(api.GalleryEndpoint, m.handleGallery)
	mux.HandleFunc(api.CategoriesEndpoint, m.handleCategories)
	mux.HandleFunc(api.ImagesPrefix+"/", m.handleImageFile)

	m.server = httptest.NewServer(mux)
	return m
}

// URL returns the base URL of the server
func (m *MockServer) URL() string { return m.server.URL }

// Close shuts the server down
func (m *MockServer) Close() { m.server.Close() }

// SetError makes every request to endpoint fail with code; 0 clears it
func (m *MockServer) SetError(endpoint string, code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if code == 0 {
		delete(m.errors, endpoint)
		return
	}
	m.errors[endpoint] = code
}

// SetDelay delays every response of endpoint
func (m *MockServer) SetDelay(endpoint string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delays[endpoint] = d
}

// FailFetches makes the given 1-based fetch_image calls return 500
func (m *MockServer) FailFetches(calls ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range calls {
		m.failFetch[c] = true
	}
}

// SetSearchTotal sets how many results query has in total
func (m *MockServer) SetSearchTotal(query string, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchTotals[query] = total
}

// SetCategories replaces the category listing
func (m *MockServer) SetCategories(categories []models.Category) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories = categories
}

// AddGalleryImages adds images to the gallery listing
func (m *MockServer) AddGalleryImages(images ...models.Image) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gallery = append(m.gallery, images...)
}

// RequestCount returns the number of requests received by endpoint
func (m *MockServer) RequestCount(endpoint string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[endpoint]
}

// DownloadRequests returns every decoded POST /api/download body
func (m *MockServer) DownloadRequests() []models.DownloadRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.DownloadRequest(nil), m.downloads...)
}

// SearchRequests returns every decoded POST /api/search_local body
func (m *MockServer) SearchRequests() []models.SearchRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.SearchRequest(nil), m.searches...)
}

// begin records the request and applies configured delays and errors. It
// returns false when an error response was written.
func (m *MockServer) begin(w http.ResponseWriter, endpoint string) bool {
	m.mu.Lock()
	m.requests[endpoint]++
	delay := m.delays[endpoint]
	code := m.errors[endpoint]
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if code > 0 {
		http.Error(w, http.StatusText(code), code)
		return false
	}
	return true
}

func (m *MockServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !m.begin(w, api.DownloadEndpoint) {
		return
	}

	var req models.DownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.downloads = append(m.downloads, req)
	m.mu.Unlock()

	writeJSON(w, map[string]string{"status": "started"})
}

func (m *MockServer) handleFetchImage(w http.ResponseWriter, r *http.Request) {
	if !m.begin(w, api.FetchImageEndpoint) {
		return
	}
	if r.URL.Query().Get("category") == "" {
		http.Error(w, "missing category", http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.fetchCalls++
	fail := m.failFetch[m.fetchCalls]
	m.mu.Unlock()

	if fail {
		http.Error(w, "no image available", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(JPEG)
}

func (m *MockServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !m.begin(w, api.SearchLocalEndpoint) {
		return
	}

	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Page < 1 || req.Limit < 1 {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.searches = append(m.searches, req)
	total, ok := m.searchTotals[req.Query]
	m.mu.Unlock()
	if !ok {
		total = 30
	}

	start := (req.Page - 1) * req.Limit
	end := start + req.Limit
	if end > total {
		end = total
	}

	images := []models.Image{}
	for i := start; i < end; i++ {
		id := fmt.Sprintf("%d", i+1)
		images = append(images, models.Image{
			ID:    id,
			URL:   fmt.Sprintf("/%s/%s.jpg", req.Query, id),
			Title: fmt.Sprintf("%s %s", req.Query, id),
		})
	}
	writeJSON(w, models.ImagesResponse{Images: images})
}

func (m *MockServer) handleGallery(w http.ResponseWriter, r *http.Request) {
	if !m.begin(w, api.GalleryEndpoint) {
		return
	}

	wanted := make(map[string]bool)
	for _, c := range strings.Split(r.URL.Query().Get("category"), ",") {
		if c = strings.TrimSpace(c); c != "" {
			wanted[c] = true
		}
	}

	m.mu.Lock()
	images := []models.Image{}
	for _, img := range m.gallery {
		if len(wanted) == 0 || wanted[img.Category] {
			images = append(images, img)
		}
	}
	m.mu.Unlock()

	writeJSON(w, models.ImagesResponse{Images: images})
}

func (m *MockServer) handleCategories(w http.ResponseWriter, r *http.Request) {
	if !m.begin(w, api.CategoriesEndpoint) {
		return
	}

	m.mu.Lock()
	categories := append([]models.Category{}, m.categories...)
	m.mu.Unlock()

	writeJSON(w, models.CategoriesResponse{Categories: categories})
}

func (m *MockServer) handleImageFile(w http.ResponseWriter, r *http.Request) {
	if !m.begin(w, api.ImagesPrefix) {
		return
	}
	if !strings.HasSuffix(r.URL.Path, ".jpg") {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(JPEG)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
