// Package client is the sync manager bridging local edit events and the
// wire protocol. It owns the connection state machine, the heartbeat
// timer and a local undo/redo cache, and hands every applied remote
// operation to the rendering collaborator as plain data.
package client

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/collabboard/collabboard/internal/logx"
	"github.com/collabboard/collabboard/protocol"
)

// State is the connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateJoiningRoom
	StateInRoom
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateJoiningRoom:
		return "joining-room"
	case StateInRoom:
		return "in-room"
	}
	return "disconnected"
}

var (
	ErrNotConnected = errors.New("not connected to server")
	ErrNotJoined    = errors.New("not in a room")
)

// RoomError is a server-reported recoverable error.
type RoomError struct {
	Message string
}

func (e *RoomError) Error() string { return e.Message }

// TransportError is a connection-level failure.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("transport: %v", e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// ClientInfo is one entry of a room's client list.
type ClientInfo struct {
	UserID   string
	UserName string
	Role     protocol.UserRole
	Color    string
}

// RoomInfo is one entry of the server's room listing.
type RoomInfo struct {
	RoomID      string
	RoomName    string
	ClientCount int
}

// Handlers are the callbacks into the external UI collaborator. Nil
// callbacks are skipped. All callbacks receive data, never references
// into the manager's state.
type Handlers struct {
	OnStateChange func(State)
	OnOperation   func(protocol.DrawingOperation)
	OnClearScene  func()
	OnUndo        func(operationID string, seq int64)
	OnChat        func(userName, message string)
	OnClientList  func([]ClientInfo)
	OnRoomList    func([]RoomInfo)
	OnRoleChange  func(userID string, role protocol.UserRole)
	OnUserLeft    func(userID string)
	OnJoined      func(roomID, userID string)
	OnRoomCreated func(roomID, roomName string)
	OnError       func(error)
}

// SyncManager is the client-side mirror of the server's room state.
type SyncManager struct {
	url      string
	handlers Handlers

	mu       sync.Mutex
	conn     *websocket.Conn
	state    State
	userID   string
	userName string
	roomID   string
	roomName string
	role     protocol.UserRole
	lastSeq  int64
	seen     map[string]bool // applied operation ids, for duplicate delivery
	done     chan struct{}

	// serializes writes so operations leave in creation order
	writeMu sync.Mutex

	history           *history
	heartbeatInterval time.Duration
}

type Option func(*SyncManager)

// WithHeartbeat overrides the heartbeat interval.
func WithHeartbeat(interval time.Duration) Option {
	return func(m *SyncManager) { m.heartbeatInterval = interval }
}

func New(url string, handlers Handlers, opts ...Option) *SyncManager {
	m := &SyncManager{
		url:               url,
		handlers:          handlers,
		state:             StateDisconnected,
		role:              protocol.RoleEditor,
		seen:              make(map[string]bool),
		history:           &history{},
		heartbeatInterval: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Connect dials the server and starts the read loop and heartbeat timer.
func (m *SyncManager) Connect() error {
	m.mu.Lock()
	if m.state != StateDisconnected {
		m.mu.Unlock()
		return nil
	}
	m.setStateLocked(StateConnecting)
	m.mu.Unlock()

	conn, _, err := websocket.DefaultDialer.Dial(m.url, nil)
	if err != nil {
		m.mu.Lock()
		m.setStateLocked(StateDisconnected)
		m.mu.Unlock()
		return fmt.Errorf("connect %s: %w", m.url, err)
	}

	m.mu.Lock()
	m.conn = conn
	m.done = make(chan struct{})
	m.setStateLocked(StateConnected)
	done := m.done
	m.mu.Unlock()

	go m.readLoop(conn)
	go m.heartbeatLoop(done)
	return nil
}

// Close disconnects. Closing an already-closed manager is a no-op.
func (m *SyncManager) Close() {
	m.mu.Lock()
	if m.state == StateDisconnected {
		m.mu.Unlock()
		return
	}
	conn := m.conn
	if m.done != nil {
		close(m.done)
		m.done = nil
	}
	m.teardownLocked()
	m.mu.Unlock()

	if conn != nil {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}
}

// teardownLocked resets to the disconnected state.
func (m *SyncManager) teardownLocked() {
	m.conn = nil
	m.userID = ""
	m.roomID = ""
	m.lastSeq = 0
	m.seen = make(map[string]bool)
	m.history.Reset()
	m.setStateLocked(StateDisconnected)
}

func (m *SyncManager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	m.state = s
	if m.handlers.OnStateChange != nil {
		go m.handlers.OnStateChange(s)
	}
}

// State returns the current lifecycle state.
func (m *SyncManager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// UserID returns the server-assigned user id, empty until joined.
func (m *SyncManager) UserID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userID
}

// RoomID returns the current room id, empty when not in a room.
func (m *SyncManager) RoomID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roomID
}

// Role returns the current user role.
func (m *SyncManager) Role() protocol.UserRole {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.role
}

// LastSeq returns the highest room sequence number applied locally.
func (m *SyncManager) LastSeq() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSeq
}

// JoinRoom requests membership in roomID; an empty id asks the server to
// allocate a new room.
func (m *SyncManager) JoinRoom(roomID, userName string) error {
	m.mu.Lock()
	if m.state == StateDisconnected || m.state == StateConnecting {
		m.mu.Unlock()
		return ErrNotConnected
	}
	m.userName = userName
	m.setStateLocked(StateJoiningRoom)
	m.mu.Unlock()

	return m.send(protocol.NewMessage(protocol.MsgJoinRequest, map[string]any{
		"roomId":   roomID,
		"userName": userName,
	}))
}

// CreateRoom asks the server for a new room and joins it. The room id is
// pre-generated client-side so the caller can hand it out immediately.
func (m *SyncManager) CreateRoom(roomName string) (string, error) {
	m.mu.Lock()
	if m.state == StateDisconnected || m.state == StateConnecting {
		m.mu.Unlock()
		return "", ErrNotConnected
	}
	userName := m.userName
	m.setStateLocked(StateJoiningRoom)
	m.mu.Unlock()

	roomID := shortID(8)
	err := m.send(protocol.NewMessage(protocol.MsgCreateRoom, map[string]any{
		"roomId":   roomID,
		"roomName": roomName,
		"userName": userName,
	}))
	if err != nil {
		return "", err
	}
	return roomID, nil
}

// LeaveRoom leaves the current room.
func (m *SyncManager) LeaveRoom() error {
	m.mu.Lock()
	if m.state != StateInRoom {
		m.mu.Unlock()
		return ErrNotJoined
	}
	roomID := m.roomID
	m.roomID = ""
	m.lastSeq = 0
	m.seen = make(map[string]bool)
	m.history.Reset()
	m.setStateLocked(StateConnected)
	m.mu.Unlock()

	return m.send(protocol.NewMessage(protocol.MsgLeaveRequest, map[string]any{
		"roomId": roomID,
	}))
}

// SendOperation encodes and sends a locally-created drawing operation.
// Operations created while not connected and joined are dropped;
// ErrNotJoined tells the UI collaborator so it can surface that.
func (m *SyncManager) SendOperation(op protocol.DrawingOperation) error {
	m.mu.Lock()
	if m.state != StateInRoom {
		m.mu.Unlock()
		return ErrNotJoined
	}
	m.mu.Unlock()

	if op.OperationID == "" {
		op.OperationID = shortID(12)
	}
	m.history.Push(op)

	return m.send(protocol.NewMessage(protocol.MsgDrawingOperation, op.ToMap()))
}

// Undo requests removal of this client's most recent operation (by id
// when the local cache knows it, otherwise the room's newest entry).
func (m *SyncManager) Undo() error {
	m.mu.Lock()
	if m.state != StateInRoom {
		m.mu.Unlock()
		return ErrNotJoined
	}
	m.mu.Unlock()

	data := map[string]any{}
	if op, ok := m.history.Undo(); ok {
		data["operationId"] = op.OperationID
	}
	return m.send(protocol.NewMessage(protocol.MsgUndoRequest, data))
}

// Redo asks the server to restore the most recently undone operation.
// The restored operation reaches peers as a normal drawing operation;
// this client replays it from its own redo stack.
func (m *SyncManager) Redo() error {
	m.mu.Lock()
	if m.state != StateInRoom {
		m.mu.Unlock()
		return ErrNotJoined
	}
	m.mu.Unlock()

	m.history.Redo()
	return m.send(protocol.NewMessage(protocol.MsgRedoRequest, map[string]any{}))
}

// ClearScene asks the server to reset the room's drawing history.
func (m *SyncManager) ClearScene() error {
	m.mu.Lock()
	if m.state != StateInRoom {
		m.mu.Unlock()
		return ErrNotJoined
	}
	m.history.Reset()
	m.mu.Unlock()

	return m.send(protocol.NewMessage(protocol.MsgClearScene, map[string]any{}))
}

// SendChat sends a chat message to the room. Empty text is dropped.
func (m *SyncManager) SendChat(text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	m.mu.Lock()
	if m.state != StateInRoom {
		m.mu.Unlock()
		return ErrNotJoined
	}
	userName := m.userName
	m.mu.Unlock()

	return m.send(protocol.NewMessage(protocol.MsgChatMessage, map[string]any{
		"message":  text,
		"userName": userName,
	}))
}

// ChangeRole asks the server to change another user's role. The server
// enforces that only a presenter may do this.
func (m *SyncManager) ChangeRole(userID string, role protocol.UserRole) error {
	return m.send(protocol.NewMessage(protocol.MsgUserRoleChange, map[string]any{
		"userId": userID,
		"role":   int(role),
	}))
}

// RequestRoomList asks for the server's live room listing.
func (m *SyncManager) RequestRoomList() error {
	return m.send(protocol.NewMessage(protocol.MsgRoomList, map[string]any{}))
}

// Resync re-joins the current room to fetch a fresh snapshot, clearing
// the scene and both local stacks first. Used when the local mirror has
// diverged from the server's log.
func (m *SyncManager) Resync() error {
	m.mu.Lock()
	roomID := m.roomID
	userName := m.userName
	if roomID == "" {
		m.mu.Unlock()
		return ErrNotJoined
	}
	m.lastSeq = 0
	m.seen = make(map[string]bool)
	m.history.Reset()
	m.setStateLocked(StateJoiningRoom)
	m.mu.Unlock()

	if m.handlers.OnClearScene != nil {
		m.handlers.OnClearScene()
	}
	return m.send(protocol.NewMessage(protocol.MsgJoinRequest, map[string]any{
		"roomId":   roomID,
		"userName": userName,
	}))
}

func (m *SyncManager) send(msg protocol.NetworkMessage) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	frame, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Type, err)
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return &TransportError{Err: err}
	}
	return nil
}

func (m *SyncManager) heartbeatLoop(done chan struct{}) {
	ticker := time.NewTicker(m.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			state := m.State()
			if state != StateConnected && state != StateInRoom {
				continue
			}
			if err := m.send(protocol.NewMessage(protocol.MsgHeartbeat, map[string]any{})); err != nil {
				logx.L.Debug("heartbeat send", zap.Error(err))
			}
		}
	}
}

func (m *SyncManager) readLoop(conn *websocket.Conn) {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			m.mu.Lock()
			if m.conn != conn {
				// already closed, or superseded by a reconnect
				m.mu.Unlock()
				return
			}
			if m.done != nil {
				close(m.done)
				m.done = nil
			}
			m.teardownLocked()
			m.mu.Unlock()

			m.report(&TransportError{Err: err})
			return
		}

		msg, err := protocol.DecodeMessage(frame)
		if err != nil {
			logx.L.Debug("malformed server frame", zap.Error(err))
			continue
		}
		m.dispatch(msg)
	}
}

func (m *SyncManager) report(err error) {
	if m.handlers.OnError != nil {
		m.handlers.OnError(err)
	}
}

func shortID(n int) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if n > len(id) {
		n = len(id)
	}
	return id[:n]
}
