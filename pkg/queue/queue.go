package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrQueueFull is returned by Push when the queue reached its max length.
var ErrQueueFull = errors.New("queue full")

// Message is the envelope stored in the queue.
type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	Timestamp time.Time       `json:"timestamp"`
	Error     string          `json:"error,omitempty"`
}

// ParsePayload decodes the payload of msg into a T.
func ParsePayload[T any](msg *Message) (*T, error) {
	if msg == nil {
		return nil, errors.New("nil message")
	}
	var result T
	if err := json.Unmarshal(msg.Payload, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload of %s: %w", msg.Type, err)
	}
	return &result, nil
}
