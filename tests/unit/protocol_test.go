package unit_test

import (
	"bytes"
	"testing"

	"github.com/keus-automation/deepstream.io"
	"github.com/keus-automation/deepstream.io/internal/protocol"
)

// TestPingPayload verifies the heartbeat frame built from the public
// constants matches the fixed wire bytes
func TestPingPayload(t *testing.T) {
	t.Parallel()

	got := protocol.Build(deepstream.TopicConnection, deepstream.ActionPing)
	want := []byte{'C', 0x1f, 'P', 'I', 0x1e}

	if !bytes.Equal(got, want) {
		t.Errorf("ping payload = %v, want %v", got, want)
	}
}

// TestPingPayloadStable verifies repeated builds produce identical bytes, so
// a payload built once at start can be reused for every broadcast tick
func TestPingPayloadStable(t *testing.T) {
	t.Parallel()

	first := protocol.Build(deepstream.TopicConnection, deepstream.ActionPing)
	second := protocol.Build(deepstream.TopicConnection, deepstream.ActionPing)

	if !bytes.Equal(first, second) {
		t.Error("ping payload is not stable across builds")
	}
}

// TestParsePing decodes the heartbeat frame back into its parts
func TestParsePing(t *testing.T) {
	t.Parallel()

	msg, err := protocol.Parse(protocol.Build(deepstream.TopicConnection, deepstream.ActionPing))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if msg.Topic != deepstream.TopicConnection {
		t.Errorf("Topic = %q, want %q", msg.Topic, deepstream.TopicConnection)
	}
	if msg.Action != deepstream.ActionPing {
		t.Errorf("Action = %q, want %q", msg.Action, deepstream.ActionPing)
	}
	if len(msg.Data) != 0 {
		t.Errorf("Data = %v, want empty", msg.Data)
	}
}
