package ws

import (
	"go.uber.org/zap"

	"github.com/collabboard/collabboard/internal/logx"
	"github.com/collabboard/collabboard/protocol"
	"github.com/collabboard/collabboard/registry"
)

// RecipientPolicy selects who receives a delivery. It is an explicit
// argument on every broadcast; there is no shared mode flag.
type RecipientPolicy int

const (
	// PolicyAllExceptSender delivers to every room member but the
	// originator. This is the default for edit traffic.
	PolicyAllExceptSender RecipientPolicy = iota

	// PolicyAll delivers to every room member including the originator.
	// Join notifications use this so the new member sees itself in the
	// client list.
	PolicyAll

	// PolicySenderOnly delivers to the originating session alone.
	PolicySenderOnly
)

// directive is one delivery decision produced by a message handler.
// Handlers are pure with respect to the wire layer: they only return
// directives, and the hub turns them into socket writes.
type directive struct {
	policy RecipientPolicy
	roomID string
	target string // userId, for PolicySenderOnly
	msg    protocol.NetworkMessage
}

func reply(sess registry.Session, msg protocol.NetworkMessage) directive {
	return directive{policy: PolicySenderOnly, target: sess.UserID, msg: msg}
}

func toRoom(roomID string, policy RecipientPolicy, msg protocol.NetworkMessage) directive {
	return directive{policy: policy, roomID: roomID, msg: msg}
}

func (h *Hub) deliver(d directive, sender registry.Session) {
	switch d.policy {
	case PolicySenderOnly:
		h.sendToUser(d.target, d.msg)
	default:
		h.broadcast(d.roomID, d.msg, d.policy, sender.UserID)
	}
}

// broadcast fans one encoded frame out to the room. The recipient set is
// computed fresh from current membership at send time, so a member that
// left mid-flight is simply not reached.
func (h *Hub) broadcast(roomID string, msg protocol.NetworkMessage, policy RecipientPolicy, senderUserID string) {
	if roomID == "" {
		return
	}
	frame, err := msg.Encode()
	if err != nil {
		logx.L.Error("encode broadcast", zap.Error(err))
		return
	}

	for _, member := range h.reg.Members(roomID) {
		if policy == PolicyAllExceptSender && member.UserID == senderUserID {
			continue
		}
		if c := h.connForUser(member.UserID); c != nil {
			c.enqueue(frame)
		}
	}
}

func (h *Hub) sendToUser(userID string, msg protocol.NetworkMessage) {
	c := h.connForUser(userID)
	if c == nil {
		return
	}
	frame, err := msg.Encode()
	if err != nil {
		logx.L.Error("encode message", zap.Error(err))
		return
	}
	c.enqueue(frame)
}
