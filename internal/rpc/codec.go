package rpc

import (
	"encoding/json"
	"fmt"
)

// jsonCodec replaces connect's protobuf JSON codec so the moderation
// messages can be plain Go structs.
type jsonCodec struct{}

// Codec is the codec both handler and clients must use.
var Codec = jsonCodec{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("rpc: marshal %T: %w", msg, err)
	}
	return data, nil
}

func (jsonCodec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("rpc: unmarshal %T: %w", msg, err)
	}
	return nil
}
