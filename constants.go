package deepstream

// Message topics of the wire protocol.
const (
	TopicConnection = "C"
	TopicAuth       = "A"
	TopicEvent      = "E"
	TopicRPC        = "P"
	TopicRecord     = "R"
	TopicError      = "X"
)

// Message actions of the wire protocol.
const (
	ActionPing  = "PI"
	ActionPong  = "PO"
	ActionAck   = "A"
	ActionError = "E"
)

// Standard error messages
const (
	// Handshake rejection reasons, written verbatim on the wire
	ReasonURLNotSupported = "URL not supported"
	ReasonInvalidKey      = "Invalid websocket key"

	// Connection errors
	ErrSocketClosed           = "socket connection is closed"
	ErrEndpointAlreadyStarted = "connection endpoint already started"
	ErrEndpointNotStarted     = "connection endpoint not started"
	ErrGroupClosed            = "connection group is closed"
	ErrUpgradeNotSupported    = "connection does not support upgrades"
	ErrInvalidMessageFormat   = "Invalid message format"
	ErrMessageTooBig          = "Message exceeds maximum payload size"
	ErrRateLimitExceeded      = "Rate limit exceeded"
)

// WebsocketKeyLength is the length of a valid Sec-WebSocket-Key header, the
// canonical base64 encoding of a 16 byte nonce.
const WebsocketKeyLength = 24
