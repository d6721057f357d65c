package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/collabboard/collabboard/protocol"
	"github.com/collabboard/collabboard/registry"
)

func startServer(t *testing.T) (*httptest.Server, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	hub := NewHub(reg)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleWS)
	srv := httptest.NewServer(mux)

	t.Cleanup(func() {
		hub.Stop()
		srv.Close()
	})
	return srv, reg
}

func dial(t *testing.T, srv *httptest.Server, userName string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	if userName != "" {
		url += "?userName=" + userName
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendMsg(t *testing.T, conn *websocket.Conn, mt protocol.MessageType, data map[string]any) {
	t.Helper()
	frame, err := protocol.NewMessage(mt, data).Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func recvMsg(t *testing.T, conn *websocket.Conn) protocol.NetworkMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	msg, err := protocol.DecodeMessage(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return msg
}

func recvTyped(t *testing.T, conn *websocket.Conn, want protocol.MessageType) protocol.NetworkMessage {
	t.Helper()
	msg := recvMsg(t, conn)
	if msg.Type != want {
		t.Fatalf("message type = %v, want %v (data %#v)", msg.Type, want, msg.Data)
	}
	return msg
}

// joinPair wires two clients into one freshly created room and drains the
// join-time traffic, so tests start from a quiet two-member room.
func joinPair(t *testing.T, srv *httptest.Server) (a, b *websocket.Conn, roomID, aUserID, bUserID string) {
	t.Helper()
	a = dial(t, srv, "ana")
	b = dial(t, srv, "bob")

	sendMsg(t, a, protocol.MsgCreateRoom, map[string]any{"roomName": "pair"})
	created := recvTyped(t, a, protocol.MsgCreateRoomResponse)
	roomID = protocol.AsString(created.Data["roomId"])
	aUserID = protocol.AsString(created.Data["userId"])
	recvTyped(t, a, protocol.MsgJoinResponse)

	sendMsg(t, b, protocol.MsgJoinRequest, map[string]any{"roomId": roomID})
	joined := recvTyped(t, b, protocol.MsgJoinResponse)
	bUserID = protocol.AsString(joined.Data["userId"])
	recvTyped(t, b, protocol.MsgClientList)
	recvTyped(t, a, protocol.MsgClientList)

	return a, b, roomID, aUserID, bUserID
}

func TestDrawingReachesPeerNotSender(t *testing.T) {
	srv, reg := startServer(t)
	a, b, roomID, aUserID, _ := joinPair(t, srv)

	sendMsg(t, a, protocol.MsgDrawingOperation, map[string]any{
		"opType": float64(protocol.OpDrawLine),
		"data": map[string]any{
			"x1": 0.0, "y1": 0.0, "x2": 100.0, "y2": 50.0,
			"penColor": "#ff0000", "penWidth": 3.0,
		},
	})

	msg := recvTyped(t, b, protocol.MsgDrawingOperation)
	if msg.SenderID != aUserID {
		t.Fatalf("senderId = %q, want %q", msg.SenderID, aUserID)
	}
	op, err := protocol.OperationFromMap(msg.Data)
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if op.OpType != protocol.OpDrawLine {
		t.Fatalf("opType = %v", op.OpType)
	}
	if protocol.AsFloat(op.Data["x2"]) != 100 || protocol.AsString(op.Data["penColor"]) != "#ff0000" {
		t.Fatalf("payload altered: %#v", op.Data)
	}

	logLen, _, err := reg.HistoryDepth(roomID)
	if err != nil || logLen != 1 {
		t.Fatalf("log length = %d (err %v), want 1", logLen, err)
	}

	// the sender must not get its own operation echoed back
	sendMsg(t, a, protocol.MsgHeartbeat, map[string]any{})
	ack := recvTyped(t, a, protocol.MsgHeartbeat)
	if protocol.AsString(ack.Data["status"]) != "alive" {
		t.Fatalf("heartbeat ack = %#v", ack.Data)
	}
}

func TestUndoRedoOverTheWire(t *testing.T) {
	srv, reg := startServer(t)
	a, b, roomID, _, _ := joinPair(t, srv)

	ids := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		sendMsg(t, a, protocol.MsgDrawingOperation, map[string]any{
			"opType": float64(protocol.OpDrawLine),
			"data":   map[string]any{"x1": float64(i)},
		})
		msg := recvTyped(t, b, protocol.MsgDrawingOperation)
		op, _ := protocol.OperationFromMap(msg.Data)
		ids = append(ids, op.OperationID)
	}

	sendMsg(t, a, protocol.MsgUndoRequest, map[string]any{})
	undo := recvTyped(t, b, protocol.MsgUndoRequest)
	if protocol.AsString(undo.Data["operationId"]) != ids[2] {
		t.Fatalf("undo removed %q, want the newest op %q", undo.Data["operationId"], ids[2])
	}
	logLen, undoneLen, _ := reg.HistoryDepth(roomID)
	if logLen != 2 || undoneLen != 1 {
		t.Fatalf("after undo: log=%d undone=%d", logLen, undoneLen)
	}

	sendMsg(t, a, protocol.MsgRedoRequest, map[string]any{})
	redo := recvTyped(t, b, protocol.MsgDrawingOperation)
	op, _ := protocol.OperationFromMap(redo.Data)
	if op.OperationID != ids[2] {
		t.Fatalf("redo restored %q, want %q", op.OperationID, ids[2])
	}
	logLen, undoneLen, _ = reg.HistoryDepth(roomID)
	if logLen != 3 || undoneLen != 0 {
		t.Fatalf("after redo: log=%d undone=%d", logLen, undoneLen)
	}
}

func TestLateJoinerGetsHistorySnapshot(t *testing.T) {
	srv, _ := startServer(t)
	a := dial(t, srv, "ana")

	sendMsg(t, a, protocol.MsgJoinRequest, map[string]any{"roomName": "sketch"})
	joined := recvTyped(t, a, protocol.MsgJoinResponse)
	roomID := protocol.AsString(joined.Data["roomId"])
	recvTyped(t, a, protocol.MsgClientList)

	for i := 0; i < 2; i++ {
		sendMsg(t, a, protocol.MsgDrawingOperation, map[string]any{
			"opType": float64(protocol.OpDrawRectangle),
			"data":   map[string]any{"x": float64(i)},
		})
	}
	// operations are applied in order on the read pump; a heartbeat ack
	// confirms both were processed before the late joiner arrives
	sendMsg(t, a, protocol.MsgHeartbeat, map[string]any{})
	recvTyped(t, a, protocol.MsgHeartbeat)

	b := dial(t, srv, "bob")
	sendMsg(t, b, protocol.MsgJoinRequest, map[string]any{"roomId": roomID})
	resp := recvTyped(t, b, protocol.MsgJoinResponse)

	history, ok := resp.Data["drawingHistory"].([]any)
	if !ok || len(history) != 2 {
		t.Fatalf("drawingHistory = %#v, want 2 entries", resp.Data["drawingHistory"])
	}
	first, err := protocol.OperationFromMap(history[0].(map[string]any))
	if err != nil {
		t.Fatalf("snapshot entry: %v", err)
	}
	if first.Seq != 1 || first.OperationID == "" {
		t.Fatalf("snapshot entries must carry server identity: %+v", first)
	}
}

func TestDisconnectNotifiesRoom(t *testing.T) {
	srv, _ := startServer(t)
	a, b, _, _, bUserID := joinPair(t, srv)

	b.Close()

	notice := recvTyped(t, a, protocol.MsgLeaveRequest)
	if protocol.AsString(notice.Data["userId"]) != bUserID {
		t.Fatalf("leave notice for %q, want %q", notice.Data["userId"], bUserID)
	}
}

func TestJoinUnknownRoomOverTheWire(t *testing.T) {
	srv, _ := startServer(t)
	a := dial(t, srv, "")

	sendMsg(t, a, protocol.MsgJoinRequest, map[string]any{"roomId": "missing1"})
	resp := recvTyped(t, a, protocol.MsgJoinResponse)
	if protocol.AsBool(resp.Data["success"]) {
		t.Fatalf("join must fail: %#v", resp.Data)
	}
	if protocol.AsString(resp.Data["error"]) == "" {
		t.Fatalf("failure must carry an error text")
	}
}

func TestMalformedFrameGetsErrorNotDisconnect(t *testing.T) {
	srv, _ := startServer(t)
	a := dial(t, srv, "")

	if err := a.WriteMessage(websocket.TextMessage, []byte("{broken")); err != nil {
		t.Fatalf("write: %v", err)
	}
	errMsg := recvTyped(t, a, protocol.MsgRoomError)
	if protocol.AsString(errMsg.Data["error"]) != "malformed message" {
		t.Fatalf("error = %#v", errMsg.Data)
	}

	// the connection survives
	sendMsg(t, a, protocol.MsgHeartbeat, map[string]any{})
	recvTyped(t, a, protocol.MsgHeartbeat)
}

func TestUnknownMessageTypeOverTheWire(t *testing.T) {
	srv, _ := startServer(t)
	a := dial(t, srv, "")

	sendMsg(t, a, protocol.MessageType(99), map[string]any{})
	errMsg := recvTyped(t, a, protocol.MsgRoomError)
	if protocol.AsString(errMsg.Data["error"]) != "unknown message type" {
		t.Fatalf("error = %#v", errMsg.Data)
	}
}
