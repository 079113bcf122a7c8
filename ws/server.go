package ws

import (
	"github.com/keus-automation/deepstream.io"
	"github.com/keus-automation/deepstream.io/internal/websocket"
)

type Options = websocket.Options
type RateLimitConfig = websocket.RateLimitConfig
type OnConnectionFn = websocket.OnConnectionFn
type OnDisconnectionFn = websocket.OnDisconnectionFn

// New creates a connection endpoint with the given options. Pass nil for
// defaults. The endpoint only accepts connections after Start and serves
// upgrades wherever its ServeHTTP is mounted.
//
// Example:
//
//	endpoint := ws.New(&ws.Options{
//	    URLPath:           "/deepstream",
//	    HeartbeatInterval: 30 * time.Second,
//	    OnConnection: func(socket deepstream.Socket) {
//	        socket.OnMessage(func(data []byte) {
//	            // hand off to routing
//	        })
//	    },
//	})
//	endpoint.Start()
//	http.ListenAndServe(":6020", endpoint)
func New(opts *Options) deepstream.ConnectionEndpoint {
	return websocket.New(opts)
}

// DefaultOptions returns the options New uses when handed nil.
func DefaultOptions() *Options {
	return websocket.DefaultOptions()
}

// DefaultRateLimitConfig returns the default per-socket rate limit
func DefaultRateLimitConfig() *RateLimitConfig {
	return websocket.DefaultRateLimitConfig()
}

// NoRateLimit returns a configuration with rate limiting disabled
func NoRateLimit() *RateLimitConfig {
	return websocket.NoRateLimit()
}
