package unit_test

import (
	"testing"

	"github.com/keus-automation/deepstream.io"
)

// TestConstants verifies that all constants are defined with expected values
func TestConstants(t *testing.T) {
	t.Parallel()

	t.Run("topics", func(t *testing.T) {
		topics := []string{
			deepstream.TopicConnection,
			deepstream.TopicAuth,
			deepstream.TopicEvent,
			deepstream.TopicRPC,
			deepstream.TopicRecord,
			deepstream.TopicError,
		}

		seen := make(map[string]bool)
		for _, topic := range topics {
			if topic == "" {
				t.Error("topic should not be empty")
			}
			if seen[topic] {
				t.Errorf("duplicate topic %q", topic)
			}
			seen[topic] = true
		}

		if deepstream.TopicConnection != "C" {
			t.Errorf("TopicConnection = %q, want C", deepstream.TopicConnection)
		}
	})

	t.Run("actions", func(t *testing.T) {
		if deepstream.ActionPing != "PI" {
			t.Errorf("ActionPing = %q, want PI", deepstream.ActionPing)
		}
		if deepstream.ActionPong != "PO" {
			t.Errorf("ActionPong = %q, want PO", deepstream.ActionPong)
		}
	})

	t.Run("handshake key length", func(t *testing.T) {
		// The canonical base64 encoding of a 16 byte nonce.
		if deepstream.WebsocketKeyLength != 24 {
			t.Errorf("WebsocketKeyLength = %d, want 24", deepstream.WebsocketKeyLength)
		}
	})

	t.Run("rejection reasons", func(t *testing.T) {
		// ReasonURLNotSupported is written verbatim on the wire; changing it
		// breaks handshake compatibility.
		if deepstream.ReasonURLNotSupported != "URL not supported" {
			t.Errorf("ReasonURLNotSupported = %q", deepstream.ReasonURLNotSupported)
		}
		if deepstream.ReasonInvalidKey == "" {
			t.Error("ReasonInvalidKey should not be empty")
		}
		if deepstream.ReasonInvalidKey == deepstream.ReasonURLNotSupported {
			t.Error("rejection reasons should be distinct per cause")
		}
	})

	t.Run("error messages", func(t *testing.T) {
		errorMessages := []struct {
			name  string
			value string
		}{
			{"ErrSocketClosed", deepstream.ErrSocketClosed},
			{"ErrEndpointAlreadyStarted", deepstream.ErrEndpointAlreadyStarted},
			{"ErrEndpointNotStarted", deepstream.ErrEndpointNotStarted},
			{"ErrGroupClosed", deepstream.ErrGroupClosed},
			{"ErrUpgradeNotSupported", deepstream.ErrUpgradeNotSupported},
			{"ErrInvalidMessageFormat", deepstream.ErrInvalidMessageFormat},
			{"ErrMessageTooBig", deepstream.ErrMessageTooBig},
			{"ErrRateLimitExceeded", deepstream.ErrRateLimitExceeded},
		}

		for _, em := range errorMessages {
			t.Run(em.name, func(t *testing.T) {
				if em.value == "" {
					t.Errorf("%s should not be empty", em.name)
				}
			})
		}
	})
}
