package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/onnwee/vod-danmaku/config"
)

func TestRateLimitChatRoutes(t *testing.T) {
	f := newFixture(t, &config.Config{WindowCap: 2, RateLimitRPS: 0.001, RateLimitBurst: 1, Env: "dev"})
	if rec := f.get(t, "/videos/"+openVideo+"/chat"); rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}
	rec := f.get(t, "/videos/"+openVideo+"/chat/search?q=hi")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d", rec.Code)
	}
	if env := decode(t, rec, nil); env.Error != errTooManyRequests {
		t.Errorf("error = %q", env.Error)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	// catalog routes are not limited
	for i := 0; i < 3; i++ {
		if rec := f.get(t, "/videos/"+openVideo); rec.Code != http.StatusOK {
			t.Errorf("catalog request %d status = %d", i, rec.Code)
		}
	}
}

func TestRateLimiterPerIP(t *testing.T) {
	l := newIPRateLimiter(0.001, 1)
	if !l.allow("192.0.2.1") || l.allow("192.0.2.1") {
		t.Error("expected a burst of one per IP")
	}
	if !l.allow("192.0.2.2") {
		t.Error("second IP should have its own bucket")
	}
	var disabled *ipRateLimiter
	if newIPRateLimiter(0, 10) != nil || !disabled.allow("x") {
		t.Error("zero rate should disable limiting")
	}
}

func TestRemoteIP(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		xff    string
		want   string
	}{
		{"remote addr", "192.0.2.1:1234", "", "192.0.2.1"},
		{"forwarded", "10.0.0.1:1", "203.0.113.9, 10.0.0.1", "203.0.113.9"},
		{"no port", "192.0.2.7", "", "192.0.2.7"},
		{"ipv6", "[2001:db8::1]:80", "", "2001:db8::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := remoteIP(r); got != tt.want {
				t.Errorf("remoteIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	cfg := &config.Config{WindowCap: 2, Env: "production", CORSAllowedOrigins: []string{"https://player.example", "*.cdn.example"}}
	f := newFixture(t, cfg)
	tests := []struct {
		origin string
		want   string
	}{
		{"https://player.example", "https://player.example"},
		{"https://a.cdn.example", "https://a.cdn.example"},
		{"https://evil.example", ""},
		{"null", ""},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/videos/"+openVideo, nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			f.handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusNoContent {
				t.Errorf("preflight status = %d", rec.Code)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Errorf("allow origin = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCORSPermissiveInDev(t *testing.T) {
	f := newFixture(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("allow origin = %q", got)
	}
}

func TestValidUUID(t *testing.T) {
	tests := map[string]bool{
		"0123456789abcdef0123456789abcdef":   true,
		"0123456789ABCDEF0123456789ABCDEF":   true,
		"0123456789abcdef0123456789abcde":    false,
		"0123456789abcdef0123456789abcdef0":  false,
		"01234567-89ab-cdef-0123-456789abcd": false,
		"":                                   false,
	}
	for in, want := range tests {
		if got := validUUID(in); got != want {
			t.Errorf("validUUID(%q) = %v, want %v", in, got, want)
		}
	}
}
