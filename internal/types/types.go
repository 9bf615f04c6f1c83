package types

// Inbound event names understood by the telemetry channel.
const (
	EventOpen   = "open"
	EventDetect = "detect"
	EventTrack  = "track"
	EventManual = "manual"

	// EventTelemetry is the only outbound event name.
	EventTelemetry = "telemetry"
)

// Event is one named message exchanged with the remote controller.
// Transports decode their wire format (JSON over websocket, CBOR over ZMQ)
// into this shape.
type Event struct {
	Name string         `json:"event" cbor:"event"`
	Data map[string]any `json:"data" cbor:"data,omitempty"`
}

// TelemetryPayload builds the outbound telemetry data. An empty image yields
// an empty object.
func TelemetryPayload(encodedImage string) map[string]any {
	if encodedImage == "" {
		return map[string]any{}
	}
	return map[string]any{"image": encodedImage}
}
