package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the kind of a wire envelope. The integer values
// are part of the wire contract and must stay stable across client and
// server.
type MessageType int

const (
	MsgUnknown MessageType = iota
	MsgJoinRequest
	MsgJoinResponse
	MsgCreateRoom
	MsgCreateRoomResponse
	MsgClientList
	MsgDrawingOperation
	MsgClearScene
	MsgUndoRequest
	MsgRedoRequest
	MsgChatMessage
	MsgUserRoleChange
	MsgHeartbeat
	MsgLeaveRequest
	MsgRoomList
	MsgRoomError
)

func (t MessageType) String() string {
	switch t {
	case MsgJoinRequest:
		return "join-request"
	case MsgJoinResponse:
		return "join-response"
	case MsgCreateRoom:
		return "create-room"
	case MsgCreateRoomResponse:
		return "create-room-response"
	case MsgClientList:
		return "client-list"
	case MsgDrawingOperation:
		return "drawing-operation"
	case MsgClearScene:
		return "clear-scene"
	case MsgUndoRequest:
		return "undo-request"
	case MsgRedoRequest:
		return "redo-request"
	case MsgChatMessage:
		return "chat-message"
	case MsgUserRoleChange:
		return "user-role-change"
	case MsgHeartbeat:
		return "heartbeat"
	case MsgLeaveRequest:
		return "leave-request"
	case MsgRoomList:
		return "room-list"
	case MsgRoomError:
		return "room-error"
	}
	return "unknown"
}

// UserRole is the coarse permission tier of a session. Only a presenter
// may change other users' roles.
type UserRole int

const (
	RoleViewer UserRole = iota
	RoleEditor
	RolePresenter
)

// NetworkMessage is the wire envelope. SenderID is authoritative only as
// stamped by the server on receipt; the value a client puts there is
// ignored for any permission decision.
type NetworkMessage struct {
	Type      MessageType    `json:"type"`
	Data      map[string]any `json:"data"`
	SenderID  string         `json:"senderId"`
	Timestamp int64          `json:"timestamp"`
}

// NewMessage builds an envelope with the current unix timestamp.
func NewMessage(t MessageType, data map[string]any) NetworkMessage {
	return NetworkMessage{
		Type:      t,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
}

// Encode serializes the envelope to a single text frame.
func (m NetworkMessage) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeMessage parses one inbound text frame.
func DecodeMessage(frame []byte) (NetworkMessage, error) {
	var m NetworkMessage
	if err := json.Unmarshal(frame, &m); err != nil {
		return NetworkMessage{}, fmt.Errorf("decode frame: %w", err)
	}
	return m, nil
}
