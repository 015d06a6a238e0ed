package signaling

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/tusharsach16/LawProject-sub001/config"
	"github.com/tusharsach16/LawProject-sub001/metrics"
)

var errSessionClosed = errors.New("session closed")

// ClientSession wraps one websocket connection. It owns the write side:
// all writes go through the mutex, with bounded constant-backoff retry.
// It satisfies registry.Conn.
type ClientSession struct {
	conn *websocket.Conn
	cfg  *config.WebSocketConfig

	mu     sync.Mutex
	closed bool
}

func NewClientSession(conn *websocket.Conn, cfg *config.WebSocketConfig) *ClientSession {
	return &ClientSession{conn: conn, cfg: cfg}
}

// Send writes one raw frame to the socket, retrying transient failures.
func (s *ClientSession) Send(payload json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errSessionClosed
	}

	writeTimeout := time.Duration(s.cfg.WriteTimeout) * time.Second
	operation := func() error {
		s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return s.conn.WriteMessage(websocket.TextMessage, payload)
	}

	backoffStrategy := backoff.WithMaxRetries(
		backoff.NewConstantBackOff(time.Duration(s.cfg.WriteRetryDelay)*time.Millisecond),
		uint64(s.cfg.MaxWriteRetries),
	)

	err := backoff.RetryNotify(operation, backoffStrategy, func(err error, d time.Duration) {
		log.Warn().Err(err).Dur("next_attempt_in", d).Msg("retrying WebSocket write")
	})
	if err == nil {
		metrics.FramesSent.Inc()
	}
	return err
}

// Open reports whether the socket can still be written to.
func (s *ClientSession) Open() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

// Close sends a close frame and tears the socket down. Idempotent.
func (s *ClientSession) Close(code int, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	writeTimeout := time.Duration(s.cfg.WriteTimeout) * time.Second
	if err := s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text),
		time.Now().Add(writeTimeout),
	); err != nil {
		log.Debug().Err(err).Msg("error sending close frame")
	}

	return s.conn.Close()
}

// Terminate force-closes the socket with a policy-violation close frame.
// Used for supersession, heartbeat timeout and shutdown.
func (s *ClientSession) Terminate(reason string) error {
	return s.Close(websocket.ClosePolicyViolation, reason)
}
