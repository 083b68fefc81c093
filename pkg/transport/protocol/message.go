package protocol

import (
	"encoding/json"
	"time"

	"github.com/rs/xid"

	"github.com/galleralive/realtime/pkg/domain"
)

// NewMessage builds an envelope around a payload, stamping id and timestamp.
func NewMessage(messageType domain.MessageType, payload interface{}) (*domain.Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &domain.Message{
		ID:        xid.New().String(),
		Type:      messageType,
		Timestamp: time.Now(),
		Data:      data,
	}, nil
}

// Codec defines the interface for message encoding/decoding
type Codec interface {
	// Encode encodes a domain message to bytes
	Encode(msg domain.Message) ([]byte, error)

	// Decode decodes bytes to a domain message
	Decode(data []byte) (*domain.Message, error)
}

// JSONCodec implements Codec using JSON
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Encode implements the Codec interface
func (c *JSONCodec) Encode(msg domain.Message) ([]byte, error) {
	return json.Marshal(msg)
}

// Decode implements the Codec interface
func (c *JSONCodec) Decode(data []byte) (*domain.Message, error) {
	var msg domain.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
