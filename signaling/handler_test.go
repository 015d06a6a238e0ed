package signaling

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tusharsach16/LawProject-sub001/broker"
)

func TestDeliverBusMessage_Broadcast(t *testing.T) {
	env := newTestEnv()
	u1 := newFakeConn()
	u2 := newFakeConn()
	authenticate(t, env, u1, "token-u1")
	authenticate(t, env, u2, "token-u2")

	payload := json.RawMessage(`{"type":"peer_joined","otherUserId":"u2"}`)
	env.handler.DeliverBusMessage("r1", broker.Envelope{
		TargetUserID:  broker.TargetBroadcast,
		Payload:       payload,
		ExcludeUserID: "u2",
	})

	assert.Equal(t, payload, u1.sent[len(u1.sent)-1])
	for _, raw := range u2.sent {
		assert.NotEqual(t, payload, raw, "excluded user must not receive the fan-out")
	}
}

func TestDeliverBusMessage_TargetedMissIsSilent(t *testing.T) {
	env := newTestEnv()
	// No panic, no frames: the process that does hold the target delivers.
	env.handler.DeliverBusMessage("r1", broker.Envelope{
		TargetUserID: "elsewhere",
		Payload:      json.RawMessage(`{}`),
	})
}

// Two real websocket clients against two handler instances sharing one
// loopback bus and presence store: the cross-process relay path without
// external services.
func TestCrossInstanceRelay(t *testing.T) {
	envA := newTestEnv()
	envB := newTestEnv()

	// One shared bus and presence store, two registries: two "processes".
	sharedBus := &loopbackBus{}
	sharedPresence := newMemPresence()
	envA.handler.bus = sharedBus
	envB.handler.bus = sharedBus
	envA.handler.presence = sharedPresence
	envB.handler.presence = sharedPresence

	// Fan the single subscription out to both instances, as the real bus
	// does with its channel-per-room pattern subscription.
	require.NoError(t, sharedBus.Subscribe(context.Background(), func(roomID string, env broker.Envelope) {
		envA.handler.DeliverBusMessage(roomID, env)
		envB.handler.DeliverBusMessage(roomID, env)
	}))

	srvA := httptest.NewServer(http.HandlerFunc(envA.handler.HandleWebSocket))
	defer srvA.Close()
	srvB := httptest.NewServer(http.HandlerFunc(envB.handler.HandleWebSocket))
	defer srvB.Close()

	u1 := dialWS(t, srvA.URL)
	defer u1.Close()
	u2 := dialWS(t, srvB.URL)
	defer u2.Close()

	// u1 joins an empty room on instance A.
	sendJSON(t, u1, map[string]string{"type": "authenticate", "token": "token-u1"})
	assert.Equal(t, TypeAuthenticated, readFrame(t, u1)["type"])
	assert.Equal(t, TypeWaitingForPeer, readFrame(t, u1)["type"])

	// u2 joins on instance B and sees u1 in the snapshot.
	sendJSON(t, u2, map[string]string{"type": "authenticate", "token": "token-u2"})
	assert.Equal(t, TypeAuthenticated, readFrame(t, u2)["type"])
	snapshot := readFrame(t, u2)
	assert.Equal(t, TypeExistingParticipants, snapshot["type"])
	assert.Equal(t, []interface{}{"u1"}, snapshot["participants"])

	// u1 learns of the join through the bus.
	joined := readFrame(t, u1)
	assert.Equal(t, TypePeerJoined, joined["type"])
	assert.Equal(t, "u2", joined["otherUserId"])

	// u1's offer misses locally on A and reaches u2 on B via the bus,
	// byte-for-byte.
	offer := map[string]interface{}{
		"type": "offer", "from": "u1", "to": "u2",
		"sdp": map[string]string{"type": "offer", "sdp": "v=0\r\no=- 1 1 IN IP4 0.0.0.0"},
	}
	sendJSON(t, u1, offer)
	relayed := readFrame(t, u2)
	assert.Equal(t, TypeOffer, relayed["type"])
	assert.Equal(t, "u1", relayed["from"])
	assert.Equal(t, offer["sdp"].(map[string]string)["sdp"], relayed["sdp"].(map[string]interface{})["sdp"])

	// u2's answer comes back the same way.
	sendJSON(t, u2, map[string]interface{}{
		"type": "answer", "from": "u2", "to": "u1",
		"sdp": map[string]string{"type": "answer", "sdp": "v=0"},
	})
	assert.Equal(t, TypeAnswer, readFrame(t, u1)["type"])

	// u2 disconnects; u1 is told.
	u2.Close()
	left := readFrame(t, u1)
	assert.Equal(t, TypePeerDisconnected, left["type"])
	assert.Equal(t, "u2", left["userId"])
}

func TestHandleWebSocket_RejectsFirstNonAuthFrame(t *testing.T) {
	env := newTestEnv()
	srv := httptest.NewServer(http.HandlerFunc(env.handler.HandleWebSocket))
	defer srv.Close()

	conn := dialWS(t, srv.URL)
	defer conn.Close()

	sendJSON(t, conn, map[string]string{"type": "heartbeat"})
	frame := readFrame(t, conn)
	assert.Equal(t, TypeError, frame["type"])
	assert.Equal(t, "Not authenticated", frame["message"])

	// The server closes after the error frame.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

// --- websocket test helpers ---

func dialWS(t *testing.T, serverURL string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(serverURL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	return conn
}

func sendJSON(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame map[string]interface{}
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}
