package protocol

import (
	"bytes"
	"errors"
	"fmt"
)

const (
	// PartSeparator splits topic, action and data parts inside one message.
	PartSeparator = '\x1f'
	// MessageSeparator terminates a message on the wire.
	MessageSeparator = '\x1e'

	maxParts = 64
)

// Message is one decoded topic/action/data record.
type Message struct {
	Topic  string
	Action string
	Data   []string
}

// Build encodes a single message. The result is topic and action, followed by
// any data parts, joined by PartSeparator and terminated by MessageSeparator.
func Build(topic, action string, data ...string) []byte {
	size := len(topic) + len(action) + 2
	for _, d := range data {
		size += len(d) + 1
	}

	out := make([]byte, 0, size)
	out = append(out, topic...)
	out = append(out, PartSeparator)
	out = append(out, action...)
	for _, d := range data {
		out = append(out, PartSeparator)
		out = append(out, d...)
	}
	out = append(out, MessageSeparator)
	return out
}

// Parse decodes a single message. The input must be exactly one record
// terminated by MessageSeparator and carrying at least a topic and an action.
// The returned strings are copies and safe to retain.
func Parse(data []byte) (Message, error) {
	if len(data) == 0 {
		return Message{}, errors.New("empty message")
	}
	if data[len(data)-1] != MessageSeparator {
		return Message{}, errors.New("message not terminated")
	}

	parts := bytes.Split(data[:len(data)-1], []byte{PartSeparator})
	if len(parts) < 2 {
		return Message{}, errors.New("message needs topic and action")
	}
	if len(parts) > maxParts {
		return Message{}, fmt.Errorf("message has %d parts, maximum is %d", len(parts), maxParts)
	}

	msg := Message{
		Topic:  string(parts[0]),
		Action: string(parts[1]),
	}
	if len(parts) > 2 {
		msg.Data = make([]string, 0, len(parts)-2)
		for _, p := range parts[2:] {
			msg.Data = append(msg.Data, string(p))
		}
	}
	return msg, nil
}
