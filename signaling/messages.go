package signaling

import "encoding/json"

// Client frame types.
const (
	TypeAuthenticate = "authenticate"
	TypeHeartbeat    = "heartbeat"
	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypeICECandidate = "ice-candidate"
)

// Server frame types.
const (
	TypeAuthenticated        = "authenticated"
	TypeExistingParticipants = "existing_participants"
	TypeWaitingForPeer       = "waiting_for_peer"
	TypePeerJoined           = "peer_joined"
	TypePeerDisconnected     = "peer_disconnected"
	TypeHeartbeatAck         = "heartbeat_ack"
	TypeError                = "error"
)

// Error codes carried in error frames.
const (
	CodeNotAuthenticated = "NOT_AUTHENTICATED"
	CodeInvalidToken     = "INVALID_TOKEN"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeInvalidFormat    = "INVALID_FORMAT"
)

// clientFrame is the envelope probe for every inbound frame. Signaling
// frames (offer/answer/ice-candidate) are relayed as the original raw bytes;
// only type and addressing are decoded here.
type clientFrame struct {
	Type  string `json:"type"`
	Token string `json:"token,omitempty"`
	From  string `json:"from,omitempty"`
	To    string `json:"to,omitempty"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

type authenticatedFrame struct {
	Type       string `json:"type"`
	UserID     string `json:"userId"`
	CallRoomID string `json:"callRoomId"`
}

type existingParticipantsFrame struct {
	Type         string   `json:"type"`
	Participants []string `json:"participants"`
}

type waitingForPeerFrame struct {
	Type string `json:"type"`
}

type peerJoinedFrame struct {
	Type        string `json:"type"`
	OtherUserID string `json:"otherUserId"`
}

type peerDisconnectedFrame struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type heartbeatAckFrame struct {
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
}

// marshalFrame serializes a server frame. The frame structs above contain
// nothing that can fail to marshal.
func marshalFrame(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

func newErrorFrame(code, message string) json.RawMessage {
	return marshalFrame(errorFrame{Type: TypeError, Code: code, Message: message})
}

func newPeerJoinedFrame(userID string) json.RawMessage {
	return marshalFrame(peerJoinedFrame{Type: TypePeerJoined, OtherUserID: userID})
}

func newPeerDisconnectedFrame(userID string) json.RawMessage {
	return marshalFrame(peerDisconnectedFrame{Type: TypePeerDisconnected, UserID: userID})
}
