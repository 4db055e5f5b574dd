package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

// DecodeJSON unmarshals a recorder body into a generic map and fails the test if invalid
func DecodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON body %q: %v", w.Body.String(), err)
	}
	return body
}

// MustParseUUID parses a UUID string and panics if invalid
// Use this for test setup where you're confident the UUID is valid
func MustParseUUID(uuidStr string) uuid.UUID {
	id, err := uuid.Parse(uuidStr)
	if err != nil {
		panic("Invalid UUID: " + uuidStr)
	}
	return id
}

// CookieNamed returns the named cookie set by a response, or nil. When the
// response sets it more than once the last one wins, as in a browser.
func CookieNamed(w *httptest.ResponseRecorder, name string) *http.Cookie {
	var found *http.Cookie
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == name {
			found = cookie
		}
	}
	return found
}

// Cookies returns the cookies a browser would keep from a response: one per
// name, last one wins.
func Cookies(w *httptest.ResponseRecorder) []*http.Cookie {
	var names []string
	latest := make(map[string]*http.Cookie)
	for _, cookie := range w.Result().Cookies() {
		if _, seen := latest[cookie.Name]; !seen {
			names = append(names, cookie.Name)
		}
		latest[cookie.Name] = cookie
	}

	out := make([]*http.Cookie, 0, len(names))
	for _, name := range names {
		out = append(out, latest[name])
	}
	return out
}

// Clock is a settable time source for services that take a now func
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *Clock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}
