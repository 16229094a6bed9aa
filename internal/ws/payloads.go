package ws

import (
	"swapit/internal/domain"
	"swapit/internal/service"
)

// client → server
type InboundMessage struct {
	Type      string       `json:"type"`
	RequestID string       `json:"request_id,omitempty"`
	Order     domain.Order `json:"order,omitempty"`
}

// server → client. Events from the session use the broadcast envelope
// instead; these are replies to a single connection.
type ControlMessage struct {
	Type string `json:"type"`
}

type AckMessage struct {
	Type string `json:"type"`
	service.MoveAck
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
