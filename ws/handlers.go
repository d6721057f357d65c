package ws

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/collabboard/collabboard/internal/logx"
	"github.com/collabboard/collabboard/protocol"
	"github.com/collabboard/collabboard/registry"
)

func handleJoinRequest(h *Hub, sess registry.Session, msg protocol.NetworkMessage) []directive {
	roomID := protocol.AsString(msg.Data["roomId"])
	userName := protocol.AsString(msg.Data["userName"])
	roomName := protocol.AsString(msg.Data["roomName"])

	info, err := h.reg.JoinRoom(sess.Handle, roomID, roomName, userName)
	if err != nil {
		if errors.Is(err, registry.ErrRoomNotFound) {
			resp := protocol.NewMessage(protocol.MsgJoinResponse, map[string]any{
				"success": false,
				"error":   "Room not found",
			})
			return []directive{reply(sess, resp)}
		}
		return []directive{reply(sess, roomError(err.Error()))}
	}

	logx.L.Info("join room",
		zap.String("roomId", info.RoomID),
		zap.String("userId", info.UserID),
	)

	joined, _ := h.reg.Session(sess.Handle)

	resp := protocol.NewMessage(protocol.MsgJoinResponse, map[string]any{
		"success":        true,
		"roomId":         info.RoomID,
		"userId":         info.UserID,
		"userName":       info.UserName,
		"role":           int(joined.Role),
		"drawingHistory": historyData(info.Snapshot),
	})

	// the joiner must see itself in the same client list as everyone else
	list := clientListMessage(h, info.RoomID)
	list.SenderID = info.UserID

	return []directive{
		reply(sess, resp),
		toRoom(info.RoomID, PolicyAll, list),
	}
}

func handleCreateRoom(h *Hub, sess registry.Session, msg protocol.NetworkMessage) []directive {
	roomID := protocol.AsString(msg.Data["roomId"])
	roomName := protocol.AsString(msg.Data["roomName"])
	userName := protocol.AsString(msg.Data["userName"])

	info, err := h.reg.CreateRoom(sess.Handle, roomID, roomName, userName)
	if err != nil {
		return []directive{reply(sess, roomError(err.Error()))}
	}

	logx.L.Info("room created",
		zap.String("roomId", info.RoomID),
		zap.String("userId", info.UserID),
	)

	created := protocol.NewMessage(protocol.MsgCreateRoomResponse, map[string]any{
		"success":  true,
		"roomId":   info.RoomID,
		"roomName": info.RoomName,
		"userId":   info.UserID,
	})
	joined := protocol.NewMessage(protocol.MsgJoinResponse, map[string]any{
		"success":  true,
		"roomId":   info.RoomID,
		"userId":   info.UserID,
		"userName": info.UserName,
	})

	return []directive{reply(sess, created), reply(sess, joined)}
}

func handleDrawingOperation(h *Hub, sess registry.Session, msg protocol.NetworkMessage) []directive {
	if sess.RoomID == "" {
		return []directive{reply(sess, roomError("not in a room"))}
	}

	op, err := protocol.OperationFromMap(msg.Data)
	if err != nil {
		return []directive{reply(sess, roomError("malformed drawing operation"))}
	}

	recorded, err := h.reg.AppendOperation(sess.RoomID, sess.UserID, op)
	if err != nil {
		return []directive{reply(sess, roomError(err.Error()))}
	}
	if h.recorder != nil {
		h.recorder.Record(sess.RoomID, recorded)
	}

	out := protocol.NewMessage(protocol.MsgDrawingOperation, recorded.ToMap())
	out.SenderID = sess.UserID
	return []directive{toRoom(sess.RoomID, PolicyAllExceptSender, out)}
}

func handleClearScene(h *Hub, sess registry.Session, msg protocol.NetworkMessage) []directive {
	if sess.RoomID == "" {
		return []directive{reply(sess, roomError("not in a room"))}
	}
	if err := h.reg.ClearOperations(sess.RoomID); err != nil {
		return []directive{reply(sess, roomError(err.Error()))}
	}

	out := protocol.NewMessage(protocol.MsgClearScene, map[string]any{})
	out.SenderID = sess.UserID
	return []directive{toRoom(sess.RoomID, PolicyAllExceptSender, out)}
}

func handleUndoRequest(h *Hub, sess registry.Session, msg protocol.NetworkMessage) []directive {
	if sess.RoomID == "" {
		return []directive{reply(sess, roomError("not in a room"))}
	}

	operationID := protocol.AsString(msg.Data["operationId"])
	op, ok, err := h.reg.Undo(sess.RoomID, operationID)
	if err != nil {
		return []directive{reply(sess, roomError(err.Error()))}
	}
	if !ok {
		// nothing to undo
		return nil
	}

	out := protocol.NewMessage(protocol.MsgUndoRequest, map[string]any{
		"operationId": op.OperationID,
		"seq":         op.Seq,
	})
	out.SenderID = sess.UserID
	return []directive{toRoom(sess.RoomID, PolicyAllExceptSender, out)}
}

func handleRedoRequest(h *Hub, sess registry.Session, msg protocol.NetworkMessage) []directive {
	if sess.RoomID == "" {
		return []directive{reply(sess, roomError("not in a room"))}
	}

	op, ok, err := h.reg.Redo(sess.RoomID)
	if err != nil {
		return []directive{reply(sess, roomError(err.Error()))}
	}
	if !ok {
		return nil
	}
	if h.recorder != nil {
		h.recorder.Record(sess.RoomID, op)
	}

	// the redone operation travels as a plain drawing operation, so peers
	// apply it without mirroring the server's undo stack
	out := protocol.NewMessage(protocol.MsgDrawingOperation, op.ToMap())
	out.SenderID = sess.UserID
	return []directive{toRoom(sess.RoomID, PolicyAllExceptSender, out)}
}

func handleChatMessage(h *Hub, sess registry.Session, msg protocol.NetworkMessage) []directive {
	if sess.RoomID == "" {
		return []directive{reply(sess, roomError("not in a room"))}
	}

	text := protocol.AsString(msg.Data["message"])
	if text == "" {
		return nil
	}
	userName := protocol.AsString(msg.Data["userName"])
	if userName == "" {
		userName = sess.Name
	}

	out := protocol.NewMessage(protocol.MsgChatMessage, map[string]any{
		"message":   text,
		"userName":  userName,
		"timestamp": time.Now().Format(time.RFC3339),
	})
	out.SenderID = sess.UserID
	return []directive{toRoom(sess.RoomID, PolicyAllExceptSender, out)}
}

func handleUserRoleChange(h *Hub, sess registry.Session, msg protocol.NetworkMessage) []directive {
	if sess.Role != protocol.RolePresenter {
		return []directive{reply(sess, roomError("permission denied"))}
	}

	targetID := protocol.AsString(msg.Data["userId"])
	role := protocol.AsInt(msg.Data["role"])
	if role < int(protocol.RoleViewer) || role > int(protocol.RolePresenter) {
		return []directive{reply(sess, roomError("invalid role"))}
	}

	target, ok := h.reg.SessionByUser(targetID)
	if !ok {
		return []directive{reply(sess, roomError("user not found"))}
	}
	h.reg.SetRole(targetID, protocol.UserRole(role))

	out := protocol.NewMessage(protocol.MsgUserRoleChange, map[string]any{
		"userId":   targetID,
		"role":     role,
		"userName": target.Name,
	})
	out.SenderID = sess.UserID
	return []directive{toRoom(sess.RoomID, PolicyAll, out)}
}

func handleHeartbeat(h *Hub, sess registry.Session, msg protocol.NetworkMessage) []directive {
	// lastActiveAt was already touched by the router
	ack := protocol.NewMessage(protocol.MsgHeartbeat, map[string]any{
		"status":     "alive",
		"serverTime": time.Now().Format(time.RFC3339),
	})
	return []directive{reply(sess, ack)}
}

func handleLeaveRequest(h *Hub, sess registry.Session, msg protocol.NetworkMessage) []directive {
	roomID, ok := h.reg.LeaveRoom(sess.Handle)
	if !ok {
		return nil
	}

	logx.L.Info("leave room",
		zap.String("roomId", roomID),
		zap.String("userId", sess.UserID),
	)

	notice := protocol.NewMessage(protocol.MsgLeaveRequest, map[string]any{
		"userId":   sess.UserID,
		"userName": sess.Name,
	})
	notice.SenderID = sess.UserID

	ack := protocol.NewMessage(protocol.MsgLeaveRequest, map[string]any{
		"success": true,
		"userId":  sess.UserID,
	})

	return []directive{
		toRoom(roomID, PolicyAllExceptSender, notice),
		reply(sess, ack),
	}
}

func handleRoomList(h *Hub, sess registry.Session, msg protocol.NetworkMessage) []directive {
	rooms := make([]any, 0)
	for _, info := range h.reg.Rooms() {
		rooms = append(rooms, map[string]any{
			"roomId":      info.RoomID,
			"roomName":    info.RoomName,
			"clientCount": info.ClientCount,
		})
	}

	out := protocol.NewMessage(protocol.MsgRoomList, map[string]any{"rooms": rooms})
	return []directive{reply(sess, out)}
}

func clientListMessage(h *Hub, roomID string) protocol.NetworkMessage {
	clients := make([]any, 0)
	for _, member := range h.reg.Members(roomID) {
		clients = append(clients, map[string]any{
			"userId":   member.UserID,
			"userName": member.Name,
			"role":     int(member.Role),
			"color":    member.Color,
		})
	}
	return protocol.NewMessage(protocol.MsgClientList, map[string]any{"clients": clients})
}

func historyData(ops []protocol.DrawingOperation) []any {
	out := make([]any, 0, len(ops))
	for _, op := range ops {
		out = append(out, op.ToMap())
	}
	return out
}
