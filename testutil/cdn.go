package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// MockCDN serves chat documents under /metadata/{uuid}. Unknown uuids get 404.
type MockCDN struct {
	*httptest.Server

	mu     sync.Mutex
	docs   map[string]string
	status map[string]int
	hits   atomic.Int64
}

// NewMockCDN starts a CDN test server that is closed with the test.
func NewMockCDN(t *testing.T) *MockCDN {
	t.Helper()
	m := &MockCDN{docs: map[string]string{}, status: map[string]int{}}
	m.Server = httptest.NewServer(http.HandlerFunc(m.serve))
	t.Cleanup(m.Close)
	return m
}

// SetDocument stores the chat document served for uuid.
func (m *MockCDN) SetDocument(uuid, doc string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[strings.ToLower(uuid)] = doc
}

// SetStatus makes requests for uuid fail with code.
func (m *MockCDN) SetStatus(uuid string, code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status[strings.ToLower(uuid)] = code
}

// Hits returns the number of metadata requests served.
func (m *MockCDN) Hits() int64 { return m.hits.Load() }

func (m *MockCDN) serve(w http.ResponseWriter, r *http.Request) {
	uuid, ok := strings.CutPrefix(r.URL.Path, "/metadata/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	m.hits.Add(1)
	m.mu.Lock()
	code, failing := m.status[uuid]
	doc, found := m.docs[uuid]
	m.mu.Unlock()
	switch {
	case failing:
		http.Error(w, http.StatusText(code), code)
	case !found:
		http.NotFound(w, r)
	default:
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(doc)) //nolint:errcheck // test mock response
	}
}
