package e2e_test

import (
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Helper function to create a WebSocket dialer
func newDialer() *websocket.Dialer {
	return &websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}
}

// wsURL rewrites an httptest server URL into a websocket URL for the path
func wsURL(httpURL, path string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + path
}
