package broker

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelRoomMapping(t *testing.T) {
	assert.Equal(t, "call:room-42", ChannelForRoom("room-42"))
	assert.Equal(t, "room-42", RoomForChannel("call:room-42"))
	assert.Equal(t, "a:b", RoomForChannel(ChannelForRoom("a:b")))
}

func TestEnvelopeWireShape(t *testing.T) {
	env := Envelope{
		TargetUserID:  TargetBroadcast,
		Payload:       json.RawMessage(`{"type":"peer_joined","otherUserId":"u2"}`),
		ExcludeUserID: "u2",
	}
	data, err := json.Marshal(env)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "broadcast", m["targetUserId"])
	assert.Equal(t, "u2", m["excludeUserId"])

	// excludeUserId is omitted for point-to-point relays.
	data, err = json.Marshal(Envelope{TargetUserID: "u1", Payload: json.RawMessage(`{}`)})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "excludeUserId")
}
