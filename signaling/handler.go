package signaling

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/tusharsach16/LawProject-sub001/broker"
	"github.com/tusharsach16/LawProject-sub001/config"
	"github.com/tusharsach16/LawProject-sub001/metrics"
	"github.com/tusharsach16/LawProject-sub001/registry"
)

// Handler owns the websocket endpoint: it upgrades connections, runs the
// per-connection read loop and state machine, and applies bus envelopes to
// local sockets.
type Handler struct {
	registry   *registry.Registry
	bus        broker.Bus
	verifier   TokenVerifier
	authorizer Authorizer
	presence   Presence
	cfg        *config.AppConfig
	upgrader   websocket.Upgrader
	clock      func() time.Time
}

func NewHandler(reg *registry.Registry, bus broker.Bus, verifier TokenVerifier, authorizer Authorizer, presence Presence, cfg *config.AppConfig) *Handler {
	return &Handler{
		registry:   reg,
		bus:        bus,
		verifier:   verifier,
		authorizer: authorizer,
		presence:   presence,
		cfg:        cfg,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: time.Duration(cfg.WebSocket.HandshakeTimeout) * time.Second,
			CheckOrigin:      func(r *http.Request) bool { return true },
		},
	}
}

// HandleWebSocket handles one incoming websocket connection for its entire
// lifetime.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("WebSocket upgrade failed")
		return
	}

	metrics.TotalConnections.Inc()
	metrics.ActiveConnections.Inc()
	defer metrics.ActiveConnections.Dec()

	cs := NewClientSession(conn, &h.cfg.WebSocket)
	sess := newSession(cs)

	// A socket may not idle unauthenticated: the liveness sweeper only
	// covers registered connections.
	authDeadline := time.Duration(h.cfg.Auth.AuthDeadline) * time.Second
	authTimer := time.AfterFunc(authDeadline, func() {
		if sess.State() == stateUnauthenticated {
			log.Info().Str("remote", r.RemoteAddr).Msg("closing connection: authentication deadline passed")
			cs.Send(newErrorFrame(CodeNotAuthenticated, "Not authenticated"))
			cs.Terminate("authentication deadline passed")
		}
	})
	defer authTimer.Stop()

	conn.SetReadLimit(h.cfg.WebSocket.MessageSizeLimit)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) &&
				!errors.Is(err, net.ErrClosed) {
				log.Debug().Err(err).Str("user_id", sess.userID).Msg("read error")
			}
			break
		}
		metrics.FramesReceived.Inc()

		h.dispatch(r.Context(), sess, raw)
		if sess.State() == stateClosed {
			break
		}
	}

	// The request context is gone once the socket drops; teardown talks to
	// the shared store with its own context.
	h.teardown(context.Background(), sess)
}

// teardown runs on every exit from the read loop. An authenticated session
// leaves the registry and presence and its departure is announced; the
// registry entry is only removed while it still belongs to this socket, so
// a superseded connection cannot tear down its replacement.
func (h *Handler) teardown(ctx context.Context, sess *session) {
	cs, _ := sess.conn.(*ClientSession)
	if cs != nil {
		cs.Close(websocket.CloseNormalClosure, "closed")
	}

	if sess.State() != stateAuthenticated {
		sess.setState(stateClosed)
		return
	}
	sess.setState(stateClosed)

	if _, removed := h.registry.RemoveIfConn(sess.userID, sess.conn); removed {
		announceDeparture(ctx, h.presence, h.bus, sess.roomID, sess.userID)
		log.Info().Str("user_id", sess.userID).Str("call_room_id", sess.roomID).
			Msg("participant disconnected")
	}
}

// DeliverBusMessage applies one envelope from the broadcast bus to this
// process's sockets. Installed as the bus subscription handler. The
// publishing process receives its own messages; relying on SendIfLocal's
// boolean (instead of excluding self) is what makes that safe.
func (h *Handler) DeliverBusMessage(roomID string, env broker.Envelope) {
	if env.TargetUserID == broker.TargetBroadcast {
		h.registry.BroadcastToRoom(roomID, env.Payload, env.ExcludeUserID)
		return
	}
	h.registry.SendIfLocal(env.TargetUserID, env.Payload)
}

// Shutdown force-closes every registered connection, flushing presence
// removals and departure announcements before the bus goes away.
func (h *Handler) Shutdown(ctx context.Context) {
	for _, entry := range h.registry.Drain() {
		entry.Conn.Terminate("server shutting down")
		announceDeparture(ctx, h.presence, h.bus, entry.RoomID, entry.UserID)
	}
}
