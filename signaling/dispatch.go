package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tusharsach16/LawProject-sub001/auth"
	"github.com/tusharsach16/LawProject-sub001/broker"
	"github.com/tusharsach16/LawProject-sub001/metrics"
	"github.com/tusharsach16/LawProject-sub001/registry"
)

// sessionState is the connection lifecycle. Closed is reachable from any
// state; there is no way back out of it.
type sessionState int32

const (
	stateUnauthenticated sessionState = iota
	stateAuthenticated
	stateClosed
)

// TokenVerifier validates a bearer credential and extracts the caller's
// identity and claimed room. Implemented by auth.Verifier.
type TokenVerifier interface {
	Verify(token string) (*auth.CallClaims, error)
}

// Authorizer answers whether a verified user may join a room. Implemented
// by auth.Authorizer. A missing entry and a store failure both deny.
type Authorizer interface {
	Authorize(ctx context.Context, roomID, userID string) error
}

// Presence is the shared per-room membership set. Implemented by
// presence.Store.
type Presence interface {
	Add(ctx context.Context, roomID, userID string) error
	Remove(ctx context.Context, roomID, userID string) error
	Members(ctx context.Context, roomID string) ([]string, error)
}

// session is the per-connection state threaded through dispatch. The state
// field is atomic because the auth-deadline timer inspects it from outside
// the read loop; everything else is touched only by the read loop.
type session struct {
	conn   registry.Conn
	state  atomic.Int32
	userID string
	roomID string
}

func newSession(conn registry.Conn) *session {
	return &session{conn: conn}
}

func (s *session) State() sessionState {
	return sessionState(s.state.Load())
}

func (s *session) setState(st sessionState) {
	s.state.Store(int32(st))
}

// dispatch advances the session state machine by one inbound frame. It is
// the closed match over the message vocabulary; every arm touches sockets
// only through the registry.Conn interface, so the whole machine runs in
// tests against fakes.
func (h *Handler) dispatch(ctx context.Context, s *session, raw []byte) {
	var frame clientFrame
	if err := json.Unmarshal(raw, &frame); err != nil || frame.Type == "" {
		// Malformed input is recoverable: the client is told and the
		// session stays in its current state.
		s.conn.Send(newErrorFrame(CodeInvalidFormat, "Invalid message format"))
		return
	}

	switch s.State() {
	case stateUnauthenticated:
		if frame.Type != TypeAuthenticate {
			s.conn.Send(newErrorFrame(CodeNotAuthenticated, "Not authenticated"))
			s.conn.Terminate("not authenticated")
			s.setState(stateClosed)
			return
		}
		h.handleAuthenticate(ctx, s, frame.Token)

	case stateAuthenticated:
		switch frame.Type {
		case TypeHeartbeat:
			h.registry.Touch(s.userID)
			s.conn.Send(marshalFrame(heartbeatAckFrame{
				Type:       TypeHeartbeatAck,
				ServerTime: h.now().UnixMilli(),
			}))

		case TypeOffer, TypeAnswer, TypeICECandidate:
			h.relaySignal(ctx, s, frame, raw)

		default:
			log.Debug().Str("type", frame.Type).Str("user_id", s.userID).
				Msg("ignoring unrecognized message type")
		}

	case stateClosed:
		// Frames racing a close are dropped; dispatch stops after close.
	}
}

func (h *Handler) handleAuthenticate(ctx context.Context, s *session, token string) {
	claims, err := h.verifier.Verify(token)
	if err != nil {
		metrics.AuthFailures.WithLabelValues("invalid_token").Inc()
		log.Info().Err(err).Msg("rejected connection: invalid token")
		s.conn.Send(newErrorFrame(CodeInvalidToken, "Invalid token"))
		s.conn.Terminate("invalid token")
		s.setState(stateClosed)
		return
	}

	if err := h.authorizer.Authorize(ctx, claims.CallRoomID, claims.UserID); err != nil {
		reason := "unauthorized"
		if errors.Is(err, auth.ErrStoreUnavailable) {
			// Fail closed: a store failure is reported to the client
			// exactly like a denial, never treated as authorized.
			reason = "store_error"
			log.Error().Err(err).Str("call_room_id", claims.CallRoomID).
				Msg("authorization store failure, denying")
		} else {
			log.Info().Str("user_id", claims.UserID).Str("call_room_id", claims.CallRoomID).
				Msg("rejected connection: not authorized for room")
		}
		metrics.AuthFailures.WithLabelValues(reason).Inc()
		s.conn.Send(newErrorFrame(CodeUnauthorized, "Unauthorized access"))
		s.conn.Terminate("unauthorized")
		s.setState(stateClosed)
		return
	}

	s.userID = claims.UserID
	s.roomID = claims.CallRoomID

	// A reconnecting user replaces their old entry; the superseded socket
	// is force-closed rather than left orphaned.
	if superseded := h.registry.Register(s.userID, s.roomID, s.conn); superseded != nil && superseded != s.conn {
		log.Info().Str("user_id", s.userID).Msg("closing superseded connection")
		superseded.Terminate("superseded by new connection")
	}

	if err := h.presence.Add(ctx, s.roomID, s.userID); err != nil {
		// Presence is a hint with bounded staleness; a failed add is not
		// fatal to the session.
		log.Warn().Err(err).Str("call_room_id", s.roomID).Msg("failed to add presence")
	}

	metrics.AuthSuccess.Inc()
	s.conn.Send(marshalFrame(authenticatedFrame{
		Type:       TypeAuthenticated,
		UserID:     s.userID,
		CallRoomID: s.roomID,
	}))

	others := h.existingParticipants(ctx, s.roomID, s.userID)
	if len(others) > 0 {
		s.conn.Send(marshalFrame(existingParticipantsFrame{
			Type:         TypeExistingParticipants,
			Participants: others,
		}))
	} else {
		s.conn.Send(marshalFrame(waitingForPeerFrame{Type: TypeWaitingForPeer}))
	}

	h.publish(ctx, s.roomID, broker.Envelope{
		TargetUserID:  broker.TargetBroadcast,
		Payload:       newPeerJoinedFrame(s.userID),
		ExcludeUserID: s.userID,
	})

	s.setState(stateAuthenticated)
	log.Info().Str("user_id", s.userID).Str("call_room_id", s.roomID).
		Msg("participant authenticated")
}

func (h *Handler) existingParticipants(ctx context.Context, roomID, selfID string) []string {
	members, err := h.presence.Members(ctx, roomID)
	if err != nil {
		log.Warn().Err(err).Str("call_room_id", roomID).Msg("failed to read presence")
		return nil
	}
	others := members[:0]
	for _, id := range members {
		if id != selfID {
			others = append(others, id)
		}
	}
	return others
}

// relaySignal forwards an offer/answer/ice-candidate to its addressee:
// local registry first, broadcast bus on a miss. The original bytes are
// relayed untouched.
func (h *Handler) relaySignal(ctx context.Context, s *session, frame clientFrame, raw []byte) {
	if frame.To == "" {
		s.conn.Send(newErrorFrame(CodeInvalidFormat, "Invalid message format"))
		return
	}

	if h.registry.SendIfLocal(frame.To, raw) {
		metrics.SignalsRelayed.WithLabelValues("local").Inc()
		return
	}

	metrics.SignalsRelayed.WithLabelValues("bus").Inc()
	h.publish(ctx, s.roomID, broker.Envelope{
		TargetUserID: frame.To,
		Payload:      raw,
	})
}

// publish sends an envelope over the bus, logging and swallowing failures:
// signaling is retry-tolerant and a lost envelope must not kill the session.
func (h *Handler) publish(ctx context.Context, roomID string, env broker.Envelope) {
	if err := h.bus.Publish(ctx, roomID, env); err != nil {
		log.Error().Err(err).Str("call_room_id", roomID).Msg("bus publish failed")
		return
	}
	metrics.BusMessagesPublished.WithLabelValues(h.bus.Type()).Inc()
}

// announceDeparture removes presence and publishes peer_disconnected. Every
// removal path goes through this: graceful close, stale prune, shutdown.
func announceDeparture(ctx context.Context, p Presence, bus broker.Bus, roomID, userID string) {
	if err := p.Remove(ctx, roomID, userID); err != nil {
		log.Warn().Err(err).Str("call_room_id", roomID).Str("user_id", userID).
			Msg("failed to remove presence")
	}
	env := broker.Envelope{
		TargetUserID:  broker.TargetBroadcast,
		Payload:       newPeerDisconnectedFrame(userID),
		ExcludeUserID: userID,
	}
	if err := bus.Publish(ctx, roomID, env); err != nil {
		log.Error().Err(err).Str("call_room_id", roomID).Msg("bus publish failed")
		return
	}
	metrics.BusMessagesPublished.WithLabelValues(bus.Type()).Inc()
}

// now is split out for tests.
func (h *Handler) now() time.Time {
	if h.clock != nil {
		return h.clock()
	}
	return time.Now()
}
