// Package broker is the cross-instance broadcast bus. Each call room maps to
// one logical channel; every relay process holds a single fleet-wide
// subscription covering all rooms. Delivery is at-least-once, includes the
// publishing process itself, and is FIFO per (publisher, room). There is no
// replay: a message published while a subscriber is down is lost, which is
// acceptable because WebRTC negotiation is retry- and duplicate-tolerant.
package broker

import (
	"context"
	"encoding/json"
)

// TargetBroadcast addresses an envelope to every member of the room instead
// of a single user.
const TargetBroadcast = "broadcast"

// Envelope is the wire unit of the bus: either a point-to-point signaling
// relay (TargetUserID set to a user) or a room-wide fan-out (presence
// events). Payload is the exact frame to write to the recipient's socket.
type Envelope struct {
	TargetUserID  string          `json:"targetUserId"`
	Payload       json.RawMessage `json:"payload"`
	ExcludeUserID string          `json:"excludeUserId,omitempty"`
}

// Handler consumes one bus message. Invoked exactly once per message per
// process, from the bus's receive goroutine.
type Handler func(roomID string, env Envelope)

// Bus abstracts the pub/sub transport between relay instances.
type Bus interface {
	// Publish sends env to roomID's channel. Retries transient failures
	// internally; a returned error means retries were exhausted.
	Publish(ctx context.Context, roomID string, env Envelope) error
	// Subscribe installs the fleet-wide subscription and starts delivering
	// messages to handler until ctx is cancelled or the bus is closed.
	Subscribe(ctx context.Context, handler Handler) error
	// Type names the implementation for logs and metric labels.
	Type() string
	Close() error
}
