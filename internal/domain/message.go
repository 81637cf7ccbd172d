package domain

// MessageType is the "type" field of a rendezvous envelope.
type MessageType string

// Candidates travel inside the offer and answer SDP, so there is no
// separate candidate message.
const (
	MsgOpen    MessageType = "open"
	MsgIDTaken MessageType = "id-taken"
	MsgOffer   MessageType = "offer"
	MsgAnswer  MessageType = "answer"
	MsgLeave   MessageType = "leave"
	MsgExpire  MessageType = "expire"
	MsgPing    MessageType = "ping"
	MsgPong    MessageType = "pong"
	MsgError   MessageType = "error"
)

// Message is the envelope exchanged with the rendezvous service.
// Src is always stamped by the service, never trusted from the sender.
type Message struct {
	Type    MessageType `json:"type"`
	Src     PeerID      `json:"src,omitempty"`
	Dst     PeerID      `json:"dst,omitempty"`
	Payload *Payload    `json:"payload,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type Payload struct {
	ConnectionID ConnectionID  `json:"connection_id"`
	Kind         TransportKind `json:"kind,omitempty"`
	SDP          string        `json:"sdp,omitempty"`
	Label        string        `json:"label,omitempty"`
}
