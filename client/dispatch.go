package client

import (
	"go.uber.org/zap"

	"github.com/collabboard/collabboard/internal/logx"
	"github.com/collabboard/collabboard/protocol"
)

// dispatch applies one inbound envelope to local state and forwards it
// to the UI collaborator.
func (m *SyncManager) dispatch(msg protocol.NetworkMessage) {
	switch msg.Type {
	case protocol.MsgJoinResponse:
		m.onJoinResponse(msg)
	case protocol.MsgCreateRoomResponse:
		m.onCreateRoomResponse(msg)
	case protocol.MsgClientList:
		m.onClientList(msg)
	case protocol.MsgDrawingOperation:
		m.onDrawingOperation(msg)
	case protocol.MsgClearScene:
		m.onClearScene()
	case protocol.MsgUndoRequest:
		m.onUndoRequest(msg)
	case protocol.MsgChatMessage:
		if m.handlers.OnChat != nil {
			m.handlers.OnChat(
				protocol.AsString(msg.Data["userName"]),
				protocol.AsString(msg.Data["message"]),
			)
		}
	case protocol.MsgUserRoleChange:
		m.onRoleChange(msg)
	case protocol.MsgLeaveRequest:
		m.onLeave(msg)
	case protocol.MsgRoomList:
		m.onRoomList(msg)
	case protocol.MsgRoomError:
		m.report(&RoomError{Message: protocol.AsString(msg.Data["error"])})
	case protocol.MsgHeartbeat:
		// liveness ack, nothing to apply
	default:
		logx.L.Debug("unhandled message type", zap.Int("type", int(msg.Type)))
	}
}

func (m *SyncManager) onJoinResponse(msg protocol.NetworkMessage) {
	if !protocol.AsBool(msg.Data["success"]) {
		m.mu.Lock()
		if m.state == StateJoiningRoom {
			m.setStateLocked(StateConnected)
		}
		m.mu.Unlock()
		m.report(&RoomError{Message: protocol.AsString(msg.Data["error"])})
		return
	}

	m.mu.Lock()
	m.userID = protocol.AsString(msg.Data["userId"])
	m.roomID = protocol.AsString(msg.Data["roomId"])
	if name := protocol.AsString(msg.Data["userName"]); name != "" {
		m.userName = name
	}
	if v, ok := msg.Data["role"]; ok {
		m.role = protocol.UserRole(protocol.AsInt(v))
	}
	m.lastSeq = 0
	m.seen = make(map[string]bool)
	m.history.Reset()
	m.setStateLocked(StateInRoom)
	roomID, userID := m.roomID, m.userID
	m.mu.Unlock()

	// replay the snapshot before any live broadcast is applied
	if history, ok := msg.Data["drawingHistory"].([]any); ok {
		for _, item := range history {
			opMap, ok := item.(map[string]any)
			if !ok {
				continue
			}
			op, err := protocol.OperationFromMap(opMap)
			if err != nil {
				continue
			}
			m.applyOperation(op)
		}
	}

	if m.handlers.OnJoined != nil {
		m.handlers.OnJoined(roomID, userID)
	}
}

func (m *SyncManager) onCreateRoomResponse(msg protocol.NetworkMessage) {
	if !protocol.AsBool(msg.Data["success"]) {
		m.report(&RoomError{Message: protocol.AsString(msg.Data["error"])})
		return
	}

	m.mu.Lock()
	m.userID = protocol.AsString(msg.Data["userId"])
	m.roomID = protocol.AsString(msg.Data["roomId"])
	m.roomName = protocol.AsString(msg.Data["roomName"])
	roomID, roomName := m.roomID, m.roomName
	m.mu.Unlock()

	if m.handlers.OnRoomCreated != nil {
		m.handlers.OnRoomCreated(roomID, roomName)
	}
}

func (m *SyncManager) onClientList(msg protocol.NetworkMessage) {
	raw, ok := msg.Data["clients"].([]any)
	if !ok {
		return
	}
	clients := make([]ClientInfo, 0, len(raw))
	for _, v := range raw {
		cm, ok := v.(map[string]any)
		if !ok {
			continue
		}
		clients = append(clients, ClientInfo{
			UserID:   protocol.AsString(cm["userId"]),
			UserName: protocol.AsString(cm["userName"]),
			Role:     protocol.UserRole(protocol.AsInt(cm["role"])),
			Color:    protocol.AsString(cm["color"]),
		})
	}
	if m.handlers.OnClientList != nil {
		m.handlers.OnClientList(clients)
	}
}

func (m *SyncManager) onDrawingOperation(msg protocol.NetworkMessage) {
	op, err := protocol.OperationFromMap(msg.Data)
	if err != nil {
		logx.L.Debug("malformed operation payload", zap.Error(err))
		return
	}
	if op.SenderID == "" {
		op.SenderID = msg.SenderID
	}
	m.applyOperation(op)
}

// applyOperation forwards one remote operation to the renderer, exactly
// once even under duplicate delivery.
func (m *SyncManager) applyOperation(op protocol.DrawingOperation) {
	m.mu.Lock()
	if op.OperationID != "" {
		if m.seen[op.OperationID] {
			m.mu.Unlock()
			return
		}
		m.seen[op.OperationID] = true
	}
	if op.Seq > m.lastSeq {
		m.lastSeq = op.Seq
	}
	m.mu.Unlock()

	if m.handlers.OnOperation != nil {
		m.handlers.OnOperation(op)
	}
}

func (m *SyncManager) onClearScene() {
	m.mu.Lock()
	m.seen = make(map[string]bool)
	m.history.Reset()
	m.mu.Unlock()

	if m.handlers.OnClearScene != nil {
		m.handlers.OnClearScene()
	}
}

// onUndoRequest applies a server-driven removal. If the removal
// references an operation this client never applied, the local mirror
// has diverged and a resync is triggered instead of guessing.
func (m *SyncManager) onUndoRequest(msg protocol.NetworkMessage) {
	operationID := protocol.AsString(msg.Data["operationId"])
	seq := int64(protocol.AsInt(msg.Data["seq"]))

	m.mu.Lock()
	known := operationID == "" || m.seen[operationID]
	if known {
		delete(m.seen, operationID)
	}
	m.mu.Unlock()

	removed := m.history.RemoveByID(operationID)
	if !known && !removed {
		logx.L.Warn("undo references unknown operation, resyncing",
			zap.String("operationId", operationID),
		)
		if err := m.Resync(); err != nil {
			m.report(err)
		}
		return
	}

	if m.handlers.OnUndo != nil {
		m.handlers.OnUndo(operationID, seq)
	}
}

func (m *SyncManager) onRoleChange(msg protocol.NetworkMessage) {
	userID := protocol.AsString(msg.Data["userId"])
	role := protocol.UserRole(protocol.AsInt(msg.Data["role"]))

	m.mu.Lock()
	if userID == m.userID {
		m.role = role
	}
	m.mu.Unlock()

	if m.handlers.OnRoleChange != nil {
		m.handlers.OnRoleChange(userID, role)
	}
}

func (m *SyncManager) onLeave(msg protocol.NetworkMessage) {
	if protocol.AsBool(msg.Data["success"]) {
		// ack for this client's own leave
		return
	}
	if m.handlers.OnUserLeft != nil {
		m.handlers.OnUserLeft(protocol.AsString(msg.Data["userId"]))
	}
}

func (m *SyncManager) onRoomList(msg protocol.NetworkMessage) {
	raw, ok := msg.Data["rooms"].([]any)
	if !ok {
		return
	}
	rooms := make([]RoomInfo, 0, len(raw))
	for _, v := range raw {
		rm, ok := v.(map[string]any)
		if !ok {
			continue
		}
		rooms = append(rooms, RoomInfo{
			RoomID:      protocol.AsString(rm["roomId"]),
			RoomName:    protocol.AsString(rm["roomName"]),
			ClientCount: protocol.AsInt(rm["clientCount"]),
		})
	}
	if m.handlers.OnRoomList != nil {
		m.handlers.OnRoomList(rooms)
	}
}
