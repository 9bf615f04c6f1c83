package transport

import (
	"errors"
	"testing"

	"github.com/fxamacker/cbor/v2"

	"simcapture-go/internal/types"
)

func TestDecodeJSONEvent(t *testing.T) {
	ev, err := DecodeJSONEvent([]byte(`{"event":"detect","data":{"hasDetection":true}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Name != types.EventDetect {
		t.Fatalf("unexpected name: %q", ev.Name)
	}
	if v, ok := ev.Data["hasDetection"].(bool); !ok || !v {
		t.Fatalf("unexpected data: %v", ev.Data)
	}

	ev, err = DecodeJSONEvent([]byte(`{"event":"open"}`))
	if err != nil || ev.Name != types.EventOpen || ev.Data != nil {
		t.Fatalf("unexpected open event: %#v %v", ev, err)
	}
}

func TestDecodeJSONEventErrors(t *testing.T) {
	if _, err := DecodeJSONEvent([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for invalid json")
	}
	if _, err := DecodeJSONEvent([]byte(`{"data":{}}`)); !errors.Is(err, ErrMissingName) {
		t.Fatalf("expected ErrMissingName, got %v", err)
	}
}

func TestEncodeJSONTelemetry(t *testing.T) {
	payload, err := EncodeJSONEvent(types.Event{Name: types.EventTelemetry, Data: types.TelemetryPayload("")})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(payload) != `{"event":"telemetry","data":{}}` {
		t.Fatalf("unexpected payload: %s", payload)
	}
}

func TestDecodeCBOREvent(t *testing.T) {
	msg := map[any]any{
		"event": "detect",
		"data": map[any]any{
			"hasDetection": false,
			"meta":         map[any]any{"frame": 3},
		},
	}
	payload, err := cbor.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}

	ev, err := DecodeCBOREvent(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Name != types.EventDetect {
		t.Fatalf("unexpected name: %q", ev.Name)
	}
	if v, ok := ev.Data["hasDetection"].(bool); !ok || v {
		t.Fatalf("unexpected hasDetection: %v", ev.Data["hasDetection"])
	}
	if _, ok := ev.Data["meta"].(map[string]any); !ok {
		t.Fatalf("nested map not normalized: %T", ev.Data["meta"])
	}
}

func TestCBORRoundTripThroughEncoder(t *testing.T) {
	payload, err := EncodeCBOREvent(types.Event{Name: types.EventTelemetry, Data: types.TelemetryPayload("aGk=")})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	ev, err := DecodeCBOREvent(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Name != types.EventTelemetry || ev.Data["image"] != "aGk=" {
		t.Fatalf("unexpected event: %#v", ev)
	}
}

func TestDecodeCBOREventKeepsNameForBadData(t *testing.T) {
	payload, _ := cbor.Marshal(map[string]any{"event": "detect", "data": []int{1, 2}})
	ev, err := DecodeCBOREvent(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Name != types.EventDetect || ev.Data != nil {
		t.Fatalf("expected detect with nil data, got %+v", ev)
	}
	payload, _ = cbor.Marshal(map[string]any{"data": map[string]any{}})
	if _, err := DecodeCBOREvent(payload); !errors.Is(err, ErrMissingName) {
		t.Fatalf("expected ErrMissingName, got %v", err)
	}
}

func TestDecodeJSONEventKeepsNameForBadData(t *testing.T) {
	cases := []struct {
		payload string
		name    string
	}{
		{`{"event":"detect","data":"oops"}`, types.EventDetect},
		{`{"event":"open","data":[]}`, types.EventOpen},
		{`{"event":"track","data":42}`, types.EventTrack},
		{`{"event":"open","data":null}`, types.EventOpen},
	}
	for _, tc := range cases {
		ev, err := DecodeJSONEvent([]byte(tc.payload))
		if err != nil {
			t.Fatalf("%s: decode: %v", tc.payload, err)
		}
		if ev.Name != tc.name {
			t.Fatalf("%s: name = %q, want %q", tc.payload, ev.Name, tc.name)
		}
		if ev.Data != nil {
			t.Fatalf("%s: expected nil data, got %v", tc.payload, ev.Data)
		}
	}
}
