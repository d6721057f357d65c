// Package registry is the single owner of all room and session state.
// Every mutation goes through its API; lookups hand out copies, never
// references into the internal maps, so nothing a caller holds can go
// stale after a later mutation.
package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/collabboard/collabboard/protocol"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrSessionNotFound = errors.New("session not found")
)

// Session is the server-side record of one live connection.
type Session struct {
	Handle       string
	UserID       string
	Name         string
	Color        string
	Role         protocol.UserRole
	RoomID       string
	LastActiveAt time.Time
}

// JoinInfo is returned to a session that entered a room.
type JoinInfo struct {
	RoomID   string
	RoomName string
	UserID   string
	UserName string
	Snapshot []protocol.DrawingOperation
}

// RoomInfo is one entry of a room listing.
type RoomInfo struct {
	RoomID      string
	RoomName    string
	ClientCount int
}

type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session // handle -> session
	byUser   map[string]string   // userId -> handle
	rooms    map[string]*room
}

func New() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		byUser:   make(map[string]string),
		rooms:    make(map[string]*room),
	}
}

// CreateSession registers a fresh session with a unique server-assigned
// user id. Default role is editor.
func (r *Registry) CreateSession(name string) Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID := newUserID()
	for r.byUser[userID] != "" {
		userID = newUserID()
	}
	if name == "" {
		name = "User_" + userID[:4]
	}

	s := &Session{
		Handle:       newHandle(),
		UserID:       userID,
		Name:         name,
		Color:        colorForUser(userID),
		Role:         protocol.RoleEditor,
		LastActiveAt: time.Now(),
	}
	r.sessions[s.Handle] = s
	r.byUser[s.UserID] = s.Handle
	return *s
}

// DestroySession removes the session and its room membership. It returns
// the vacated room id, if any. Destroying an already-destroyed session is
// a no-op.
func (r *Registry) DestroySession(handle string) (Session, string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[handle]
	if !ok {
		return Session{}, "", false
	}
	roomID := s.RoomID
	r.leaveLocked(s)
	delete(r.sessions, handle)
	delete(r.byUser, s.UserID)
	return *s, roomID, true
}

// Session returns a copy of the session for the given handle.
func (r *Registry) Session(handle string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[handle]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// SessionByUser returns a copy of the session owning the given user id.
func (r *Registry) SessionByUser(userID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handle, ok := r.byUser[userID]
	if !ok {
		return Session{}, false
	}
	s, ok := r.sessions[handle]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Touch records liveness for the session.
func (r *Registry) Touch(handle string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[handle]; ok {
		s.LastActiveAt = time.Now()
	}
}

// StaleSessions returns copies of all sessions idle for longer than
// maxIdle. The liveness monitor feeds these into the normal disconnect
// cleanup path.
func (r *Registry) StaleSessions(maxIdle time.Duration) []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cutoff := time.Now().Add(-maxIdle)
	var stale []Session
	for _, s := range r.sessions {
		if s.LastActiveAt.Before(cutoff) {
			stale = append(stale, *s)
		}
	}
	return stale
}

// SetRole updates the role of the session owning userID.
func (r *Registry) SetRole(userID string, role protocol.UserRole) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	handle, ok := r.byUser[userID]
	if !ok {
		return false
	}
	s, ok := r.sessions[handle]
	if !ok {
		return false
	}
	s.Role = role
	return true
}

// JoinRoom puts the session into roomID. An empty roomID allocates a new
// room with a fresh 8-character id. A non-empty id that does not name a
// live room fails with ErrRoomNotFound. Re-joining the current room is
// allowed and returns a fresh snapshot.
func (r *Registry) JoinRoom(handle, roomID, roomName, displayName string) (JoinInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[handle]
	if !ok {
		return JoinInfo{}, ErrSessionNotFound
	}

	var rm *room
	if roomID == "" {
		if roomName == "" {
			roomName = "Default Room"
		}
		rm = r.allocRoomLocked(roomID, roomName)
	} else {
		rm, ok = r.rooms[roomID]
		if !ok {
			return JoinInfo{}, ErrRoomNotFound
		}
	}

	if s.RoomID != "" && s.RoomID != rm.id {
		r.leaveLocked(s)
	}
	if displayName != "" {
		s.Name = displayName
	}
	s.RoomID = rm.id
	rm.members[s.UserID] = true

	return JoinInfo{
		RoomID:   rm.id,
		RoomName: rm.name,
		UserID:   s.UserID,
		UserName: s.Name,
		Snapshot: rm.snapshot(),
	}, nil
}

// CreateRoom explicitly creates a room and joins the creator. A non-empty
// roomID is honored if it is free (the client may pre-generate one);
// otherwise a fresh id is allocated.
func (r *Registry) CreateRoom(handle, roomID, roomName, displayName string) (JoinInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[handle]
	if !ok {
		return JoinInfo{}, ErrSessionNotFound
	}
	if roomName == "" {
		roomName = "New Room"
	}
	rm := r.allocRoomLocked(roomID, roomName)

	if s.RoomID != "" {
		r.leaveLocked(s)
	}
	if displayName != "" {
		s.Name = displayName
	}
	s.RoomID = rm.id
	rm.members[s.UserID] = true

	return JoinInfo{
		RoomID:   rm.id,
		RoomName: rm.name,
		UserID:   s.UserID,
		UserName: s.Name,
	}, nil
}

// LeaveRoom removes the session from its room. The room is destroyed when
// its last member leaves.
func (r *Registry) LeaveRoom(handle string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[handle]
	if !ok || s.RoomID == "" {
		return "", false
	}
	roomID := s.RoomID
	r.leaveLocked(s)
	return roomID, true
}

// Members returns copies of all sessions currently in the room, computed
// fresh from the membership set.
func (r *Registry) Members(roomID string) []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	members := make([]Session, 0, len(rm.members))
	for userID := range rm.members {
		if handle, ok := r.byUser[userID]; ok {
			if s, ok := r.sessions[handle]; ok {
				members = append(members, *s)
			}
		}
	}
	return members
}

// RoomExists reports whether roomID names a live room.
func (r *Registry) RoomExists(roomID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[roomID]
	return ok
}

// Rooms enumerates the live rooms.
func (r *Registry) Rooms() []RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rooms := make([]RoomInfo, 0, len(r.rooms))
	for id, rm := range r.rooms {
		rooms = append(rooms, RoomInfo{
			RoomID:      id,
			RoomName:    rm.name,
			ClientCount: len(rm.members),
		})
	}
	return rooms
}

// allocRoomLocked creates a room, generating a collision-free id when the
// requested one is empty or already taken.
func (r *Registry) allocRoomLocked(roomID, roomName string) *room {
	if roomID == "" || r.rooms[roomID] != nil {
		roomID = newRoomID()
		for r.rooms[roomID] != nil {
			roomID = newRoomID()
		}
	}
	rm := newRoom(roomID, roomName)
	r.rooms[roomID] = rm
	return rm
}

func (r *Registry) leaveLocked(s *Session) {
	if s.RoomID == "" {
		return
	}
	if rm, ok := r.rooms[s.RoomID]; ok {
		delete(rm.members, s.UserID)
		if len(rm.members) == 0 {
			delete(r.rooms, s.RoomID)
		}
	}
	s.RoomID = ""
}

// lookupRoom fetches the room for log mutation. Room log operations hold
// only the room's own lock, so rooms stay independent units of
// concurrency.
func (r *Registry) lookupRoom(roomID string) (*room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return rm, nil
}

// AppendOperation records op into the room's operation log, assigning the
// next sequence number and an operation id if the client sent none. The
// returned copy is the authoritative recorded form. Any append clears the
// redo stack.
func (r *Registry) AppendOperation(roomID, senderID string, op protocol.DrawingOperation) (protocol.DrawingOperation, error) {
	rm, err := r.lookupRoom(roomID)
	if err != nil {
		return protocol.DrawingOperation{}, err
	}
	return rm.append(senderID, op), nil
}

// Undo removes an operation from the room log onto the undo stack. With a
// non-empty operationID the addressed entry is removed; otherwise the
// newest one. Returns the removed operation, or ok=false when there was
// nothing to undo.
func (r *Registry) Undo(roomID, operationID string) (protocol.DrawingOperation, bool, error) {
	rm, err := r.lookupRoom(roomID)
	if err != nil {
		return protocol.DrawingOperation{}, false, err
	}
	op, ok := rm.undoOp(operationID)
	return op, ok, nil
}

// Redo moves the most recently undone operation back onto the log and
// returns it, or ok=false when the undo stack is empty.
func (r *Registry) Redo(roomID string) (protocol.DrawingOperation, bool, error) {
	rm, err := r.lookupRoom(roomID)
	if err != nil {
		return protocol.DrawingOperation{}, false, err
	}
	op, ok := rm.redoOp()
	return op, ok, nil
}

// ClearOperations resets the room's log and both stacks.
func (r *Registry) ClearOperations(roomID string) error {
	rm, err := r.lookupRoom(roomID)
	if err != nil {
		return err
	}
	rm.clear()
	return nil
}

// Snapshot returns a copy of the room's operation log in replay order.
func (r *Registry) Snapshot(roomID string) ([]protocol.DrawingOperation, error) {
	rm, err := r.lookupRoom(roomID)
	if err != nil {
		return nil, err
	}
	return rm.snapshot(), nil
}

// HistoryDepth returns the operation log length and the number of undone
// operations currently available for redo.
func (r *Registry) HistoryDepth(roomID string) (logLen, undoneLen int, err error) {
	rm, err := r.lookupRoom(roomID)
	if err != nil {
		return 0, 0, err
	}
	logLen, undoneLen = rm.depth()
	return logLen, undoneLen, nil
}
