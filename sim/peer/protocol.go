package peer

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// TypeDistortion is the only message type on the wire.
const TypeDistortion = "DISTORTION"

// Message is one datagram payload.
// Origin is optional; instances that omit it are never filtered as self.
type Message struct {
	Type   string  `json:"type"`
	Value  float64 `json:"value"`
	Origin string  `json:"origin,omitempty"`
}

// wireMessage distinguishes a missing value from zero.
type wireMessage struct {
	Type   string   `json:"type"`
	Value  *float64 `json:"value"`
	Origin string   `json:"origin"`
}

var errUnrecognized = errors.New("unrecognized message")

// NewDistortionMessage creates a distortion broadcast.
func NewDistortionMessage(value float64, origin string) Message {
	return Message{Type: TypeDistortion, Value: value, Origin: origin}
}

// Encode renders the datagram payload.
func (m Message) Encode() ([]byte, error) {
	if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
		return nil, fmt.Errorf("distortion value must be finite, got %f", m.Value)
	}
	return json.Marshal(m)
}

// DecodeMessage parses a datagram. Anything other than a DISTORTION message
// with a finite numeric value is rejected.
func DecodeMessage(data []byte) (Message, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return Message{}, fmt.Errorf("parsing datagram: %w", err)
	}
	if w.Type != TypeDistortion {
		return Message{}, fmt.Errorf("%w: type %q", errUnrecognized, w.Type)
	}
	if w.Value == nil {
		return Message{}, fmt.Errorf("%w: missing value", errUnrecognized)
	}
	if math.IsNaN(*w.Value) || math.IsInf(*w.Value, 0) {
		return Message{}, fmt.Errorf("%w: non-finite value", errUnrecognized)
	}
	return Message{Type: w.Type, Value: *w.Value, Origin: w.Origin}, nil
}
