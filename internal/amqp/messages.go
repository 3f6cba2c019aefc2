package amqp

import (
	"encoding/json"
	"fmt"

	"duoaccount/internal/core"
)

// EncodeChangeEvent converts the event to a message body.
func EncodeChangeEvent(ev core.ChangeEvent) ([]byte, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(ev)
}

// DecodeChangeEvent parses and validates a message body.
func DecodeChangeEvent(data []byte) (core.ChangeEvent, error) {
	var ev core.ChangeEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, fmt.Errorf("decode change event: %w", err)
	}
	if err := ev.Validate(); err != nil {
		return ev, err
	}
	return ev, nil
}
