package domain

import "encoding/json"

// Типы push-сообщений WebSocket.
const (
	MessageNewEvent     = "new_event"
	MessageNewIncident  = "new_incident"
	MessageEventUpdated = "event_updated"
	MessagePong         = "pong"

	// MessageWildcard — подписка на все сообщения.
	MessageWildcard = "*"
)

// Envelope — конверт сообщения {type, data?, message?}.
type Envelope struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}
