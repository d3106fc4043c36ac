package network

import (
	"context"

	"tankdown/server/logging"
)

const (
	// EventFrameRejected is emitted when an inbound frame violates the protocol.
	EventFrameRejected logging.EventType = "network.frame_rejected"
	// EventTransportError is emitted when a read or write fails on a transport.
	EventTransportError logging.EventType = "network.transport_error"
	// EventHeartbeatTimeout is emitted when the sweep evicts a stale session.
	EventHeartbeatTimeout logging.EventType = "network.heartbeat_timeout"
)

// FrameRejectedPayload captures why a frame was refused.
type FrameRejectedPayload struct {
	Reason string `json:"reason"`
}

// TransportErrorPayload captures the failing operation and error text.
type TransportErrorPayload struct {
	Op    string `json:"op"`
	Error string `json:"error"`
}

// FrameRejected publishes a protocol violation event. The connection is
// closed immediately afterwards.
func FrameRejected(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, reason string) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventFrameRejected,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  FrameRejectedPayload{Reason: reason},
	})
}

// TransportError publishes a read/write failure event.
func TransportError(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, op string, err error) {
	if pub == nil || err == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventTransportError,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  TransportErrorPayload{Op: op, Error: err.Error()},
	})
}

// HeartbeatTimeout publishes a sweep eviction event.
func HeartbeatTimeout(ctx context.Context, pub logging.Publisher, actor logging.EntityRef) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventHeartbeatTimeout,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
	})
}
