package httputil

import (
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		trustProxy bool
		want       string
	}{
		{
			name:       "remote addr with port",
			remoteAddr: "203.0.113.7:51234",
			want:       "203.0.113.7",
		},
		{
			name:       "proxy headers ignored when untrusted",
			remoteAddr: "203.0.113.7:51234",
			xff:        "198.51.100.1",
			xri:        "198.51.100.2",
			want:       "203.0.113.7",
		},
		{
			name:       "forwarded-for first hop wins",
			remoteAddr: "10.0.0.1:80",
			xff:        "198.51.100.1, 10.0.0.2, 10.0.0.1",
			trustProxy: true,
			want:       "198.51.100.1",
		},
		{
			name:       "real-ip used when no forwarded-for",
			remoteAddr: "10.0.0.1:80",
			xri:        " 198.51.100.9 ",
			trustProxy: true,
			want:       "198.51.100.9",
		},
		{
			name:       "garbage header falls back to remote addr",
			remoteAddr: "10.0.0.1:80",
			xff:        "not-an-ip",
			trustProxy: true,
			want:       "10.0.0.1",
		},
		{
			name:       "garbage forwarded-for falls through to real-ip",
			remoteAddr: "10.0.0.1:80",
			xff:        "client.example.com",
			xri:        "198.51.100.3",
			trustProxy: true,
			want:       "198.51.100.3",
		},
		{
			name:       "ipv6 remote addr",
			remoteAddr: "[2001:db8::1]:443",
			want:       "2001:db8::1",
		},
		{
			name:       "ipv6 forwarded-for",
			remoteAddr: "10.0.0.1:80",
			xff:        "2001:db8::2",
			trustProxy: true,
			want:       "2001:db8::2",
		},
		{
			name:       "remote addr without port",
			remoteAddr: "203.0.113.7",
			want:       "203.0.113.7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			got := ClientIP(r, tt.trustProxy)
			if got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
