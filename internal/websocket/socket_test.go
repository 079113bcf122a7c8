package websocket

import (
	"net/http/httptest"
	"testing"
)

// TestNewHandshakeData verifies header flattening and the address fallback
func TestNewHandshakeData(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest("GET", "/deepstream", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	req.Header.Set("Referer", "https://example.com/app")
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Add("X-Forwarded-For", "10.0.0.1")
	req.Header.Add("X-Forwarded-For", "10.0.0.2")

	t.Run("native address wins", func(t *testing.T) {
		hs := newHandshakeData("203.0.113.9:5555", req)

		if hs.RemoteAddress != "203.0.113.9:5555" {
			t.Errorf("RemoteAddress = %q", hs.RemoteAddress)
		}
		if hs.Referer != "https://example.com/app" {
			t.Errorf("Referer = %q", hs.Referer)
		}
		if hs.Headers["user-agent"] != "test-agent" {
			t.Errorf("user-agent = %q", hs.Headers["user-agent"])
		}
		if hs.Headers["x-forwarded-for"] != "10.0.0.1, 10.0.0.2" {
			t.Errorf("x-forwarded-for = %q", hs.Headers["x-forwarded-for"])
		}
	})

	t.Run("request address fallback", func(t *testing.T) {
		hs := newHandshakeData("", req)

		if hs.RemoteAddress != "192.0.2.1:1234" {
			t.Errorf("RemoteAddress = %q", hs.RemoteAddress)
		}
	})

	t.Run("nil request", func(t *testing.T) {
		hs := newHandshakeData("192.0.2.1:1234", nil)

		if hs.RemoteAddress != "192.0.2.1:1234" {
			t.Errorf("RemoteAddress = %q", hs.RemoteAddress)
		}
		if hs.Referer != "" {
			t.Errorf("Referer = %q, want empty", hs.Referer)
		}
		if len(hs.Headers) != 0 {
			t.Errorf("Headers = %v, want empty", hs.Headers)
		}
	})
}
