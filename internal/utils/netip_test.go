package utils

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remote     string
		headers    map[string]string
		trustProxy bool
		want       string
	}{
		{name: "remote addr", remote: "192.0.2.1:1234", want: "192.0.2.1"},
		{name: "ipv6 remote", remote: "[2001:db8::1]:443", want: "2001:db8::1"},
		{
			name:    "headers ignored without trust",
			remote:  "192.0.2.1:1234",
			headers: map[string]string{"X-Forwarded-For": "198.51.100.7"},
			want:    "192.0.2.1",
		},
		{
			name:       "cloudflare header first",
			remote:     "127.0.0.1:1234",
			headers:    map[string]string{"CF-Connecting-IP": "203.0.113.9", "X-Forwarded-For": "198.51.100.7"},
			trustProxy: true,
			want:       "203.0.113.9",
		},
		{
			name:       "left-most forwarded for",
			remote:     "127.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": " 198.51.100.7 , 10.0.0.1"},
			trustProxy: true,
			want:       "198.51.100.7",
		},
		{
			name:       "real ip fallback",
			remote:     "127.0.0.1:1234",
			headers:    map[string]string{"X-Real-IP": "198.51.100.8"},
			trustProxy: true,
			want:       "198.51.100.8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := ClientIP(r, tt.trustProxy); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIPMatcher(t *testing.T) {
	m := NewIPMatcher(strings.Split("10.0.0.0/8, 192.0.2.5, 2001:db8::/32, garbage", ","))

	tests := []struct {
		ip   string
		want bool
	}{
		{"10.1.2.3", true},
		{"::ffff:10.1.2.3", true},
		{"192.0.2.5", true},
		{"192.0.2.6", false},
		{"2001:db8::42", true},
		{"not-an-ip", false},
	}
	for _, tt := range tests {
		if got := m.Allow(tt.ip); got != tt.want {
			t.Errorf("Allow(%q) = %v, want %v", tt.ip, got, tt.want)
		}
	}

	if got := m.Invalid(); len(got) != 1 || got[0] != "garbage" {
		t.Errorf("Invalid() = %v, want [garbage]", got)
	}
	if m.IsEmpty() {
		t.Error("IsEmpty() = true, want false")
	}
	if !NewIPMatcher(nil).IsEmpty() {
		t.Error("matcher without rules should be empty")
	}
}
