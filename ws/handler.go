package ws

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/collabboard/collabboard/internal/logx"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandleWS upgrades the connection, creates a session for it and starts
// the read and write pumps. The session stays roomless until the client
// sends a join or create request.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logx.From(r.Context()).Warn("upgrade failed", zap.Error(err))
		return
	}

	sess := h.reg.CreateSession(r.URL.Query().Get("userName"))
	client := newClient(h, conn, sess.Handle, sess.UserID)
	h.register(client)

	logx.From(r.Context()).Info("client connected", zap.String("userId", sess.UserID))

	go client.writePump()
	go client.readPump()
}
