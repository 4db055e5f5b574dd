package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeRedirect(t *testing.T) {
	tests := []struct {
		target string
		want   string
	}{
		{"", "/dashboard"},
		{"/stories?date=today", "/stories?date=today"},
		{"/story/abc", "/story/abc"},
		{"https://evil.example.com", "/dashboard"},
		{"//evil.example.com", "/dashboard"},
		{"/\\evil.example.com", "/dashboard"},
		{"/ok\r\nSet-Cookie: x=y", "/dashboard"},
		{"dashboard", "/dashboard"},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			assert.Equal(t, tt.want, safeRedirect(tt.target))
		})
	}
}

func TestValidStoryID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"1", true},
		{"42", true},
		{"0", false},
		{"-3", false},
		{"", false},
		{"abc", false},
		{"5b1f3c2e-9d4a-4f61-8c3e-2a7b9d0e1f42", true},
		{"5b1f3c2e9d4a4f618c3e2a7b9d0e1f42", false},
		{"{5b1f3c2e-9d4a-4f61-8c3e-2a7b9d0e1f42}", false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, validStoryID(tt.id))
		})
	}
}

func TestChecked(t *testing.T) {
	assert.True(t, checked("1"))
	assert.True(t, checked("on"))
	assert.False(t, checked(""))
	assert.False(t, checked("0"))
	assert.False(t, checked("  "))
}

func TestCheckOrigin(t *testing.T) {
	h := &FeedHandler{allowedOrigins: []string{"https://app.example.com"}}

	tests := []struct {
		name   string
		origin string
		host   string
		want   bool
	}{
		{"no origin", "", "storyline.test", true},
		{"same host", "http://storyline.test", "storyline.test", true},
		{"allowlisted", "https://app.example.com", "storyline.test", true},
		{"foreign", "https://evil.example.com", "storyline.test", false},
		{"garbage", "::not a url", "storyline.test", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/feed", nil)
			req.Host = tt.host
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, h.checkOrigin(req))
		})
	}
}
