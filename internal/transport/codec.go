// Package transport carries controller events over websocket (JSON) or
// ZeroMQ (CBOR).
package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/fxamacker/cbor/v2"

	"simcapture-go/internal/output"
	"simcapture-go/internal/types"
)

var (
	ErrNoPeers     = errors.New("no controller connected")
	ErrMissingName = errors.New("event has no name")
)

// InboundFunc receives decoded events on the transport's goroutine.
type InboundFunc func(ev types.Event)

// DecodeJSONEvent parses {"event": name, "data": {...}}. A data field that
// is not an object is logged and dropped so the event itself still arrives.
func DecodeJSONEvent(payload []byte) (types.Event, error) {
	var envelope struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return types.Event{}, fmt.Errorf("decode json event: %w", err)
	}
	if envelope.Event == "" {
		return types.Event{}, ErrMissingName
	}
	ev := types.Event{Name: envelope.Event}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return ev, nil
	}
	var data map[string]any
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		log.Printf("transport: ignoring non-object data for %q event", ev.Name)
		return ev, nil
	}
	ev.Data = data
	return ev, nil
}

func EncodeJSONEvent(ev types.Event) ([]byte, error) {
	return json.Marshal(ev)
}

// DecodeCBOREvent parses a CBOR map with the same shape as the JSON form.
// Nested maps are normalized to string keys. Non-map data is dropped as in
// DecodeJSONEvent.
func DecodeCBOREvent(payload []byte) (types.Event, error) {
	var raw map[string]any
	if err := cbor.Unmarshal(payload, &raw); err != nil {
		return types.Event{}, fmt.Errorf("decode cbor event: %w", err)
	}
	name, _ := raw["event"].(string)
	if name == "" {
		return types.Event{}, ErrMissingName
	}
	ev := types.Event{Name: name}
	switch data := output.NormalizeJSONValue(raw["data"]).(type) {
	case map[string]any:
		ev.Data = data
	case nil:
	default:
		log.Printf("transport: ignoring %T data for %q event", raw["data"], name)
	}
	return ev, nil
}

func EncodeCBOREvent(ev types.Event) ([]byte, error) {
	return cbor.Marshal(ev)
}
