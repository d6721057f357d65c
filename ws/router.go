package ws

import (
	"go.uber.org/zap"

	"github.com/collabboard/collabboard/internal/logx"
	"github.com/collabboard/collabboard/protocol"
	"github.com/collabboard/collabboard/registry"
)

// handlerFunc is one dispatch arm. It receives the resolved session and
// the decoded envelope (senderId already stamped by the server) and
// returns delivery directives. Handlers never touch sockets, which keeps
// them testable without a live connection.
type handlerFunc func(h *Hub, sess registry.Session, msg protocol.NetworkMessage) []directive

var handlers = map[protocol.MessageType]handlerFunc{
	protocol.MsgJoinRequest:      handleJoinRequest,
	protocol.MsgCreateRoom:       handleCreateRoom,
	protocol.MsgDrawingOperation: handleDrawingOperation,
	protocol.MsgClearScene:       handleClearScene,
	protocol.MsgUndoRequest:      handleUndoRequest,
	protocol.MsgRedoRequest:      handleRedoRequest,
	protocol.MsgChatMessage:      handleChatMessage,
	protocol.MsgUserRoleChange:   handleUserRoleChange,
	protocol.MsgHeartbeat:        handleHeartbeat,
	protocol.MsgLeaveRequest:     handleLeaveRequest,
	protocol.MsgRoomList:         handleRoomList,
}

// route decodes one inbound frame, resolves the sending session and
// dispatches to exactly one handler. Failures are reported to the sender
// only; nothing here can take the server down or leak to other rooms.
func (h *Hub) route(c *Client, frame []byte) {
	sess, ok := h.reg.Session(c.handle)
	if !ok {
		return
	}
	h.reg.Touch(c.handle)

	msg, err := protocol.DecodeMessage(frame)
	if err != nil {
		logx.L.Debug("malformed frame", zap.String("userId", sess.UserID), zap.Error(err))
		h.sendToUser(sess.UserID, roomError("malformed message"))
		return
	}

	// senderId is authoritative only as set here
	msg.SenderID = sess.UserID

	handler, ok := handlers[msg.Type]
	if !ok {
		logx.L.Warn("unknown message type",
			zap.Int("type", int(msg.Type)),
			zap.String("userId", sess.UserID),
		)
		h.sendToUser(sess.UserID, roomError("unknown message type"))
		return
	}

	for _, d := range handler(h, sess, msg) {
		h.deliver(d, sess)
	}
}

func roomError(text string) protocol.NetworkMessage {
	return protocol.NewMessage(protocol.MsgRoomError, map[string]any{
		"error": text,
	})
}
