package ws

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/collabboard/collabboard/internal/logx"
	"github.com/collabboard/collabboard/protocol"
	"github.com/collabboard/collabboard/registry"
)

// Recorder receives every operation accepted into a room log. The
// operation journal implements it; a nil recorder disables recording.
type Recorder interface {
	Record(roomID string, op protocol.DrawingOperation)
}

// Hub owns the live connections and drives message routing, broadcast
// delivery and liveness pruning. All room and session state lives in the
// registry; the hub only maps user ids to sockets.
type Hub struct {
	reg      *registry.Registry
	recorder Recorder

	mu     sync.RWMutex
	conns  map[string]*Client // handle -> connection
	byUser map[string]*Client // userId -> connection

	heartbeatInterval time.Duration
	heartbeatMisses   int

	done     chan struct{}
	stopOnce sync.Once
}

type Option func(*Hub)

// WithRecorder attaches an operation journal.
func WithRecorder(rec Recorder) Option {
	return func(h *Hub) { h.recorder = rec }
}

// WithHeartbeat configures the liveness sweep. A session is pruned after
// interval * misses of inactivity.
func WithHeartbeat(interval time.Duration, misses int) Option {
	return func(h *Hub) {
		h.heartbeatInterval = interval
		h.heartbeatMisses = misses
	}
}

func NewHub(reg *registry.Registry, opts ...Option) *Hub {
	h := &Hub{
		reg:               reg,
		conns:             make(map[string]*Client),
		byUser:            make(map[string]*Client),
		heartbeatInterval: 30 * time.Second,
		heartbeatMisses:   3,
		done:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	go h.livenessLoop()
	return h
}

// Stop ends the liveness monitor and closes every live connection.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })

	h.mu.Lock()
	conns := make([]*Client, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.conns[c.handle] = c
	h.byUser[c.userID] = c
	h.mu.Unlock()
}

// unregister tears down one connection: session destruction, room
// cleanup and the leave broadcast to the vacated room. Safe to call more
// than once for the same connection.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.conns[c.handle]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.conns, c.handle)
	delete(h.byUser, c.userID)
	h.mu.Unlock()

	sess, roomID, ok := h.reg.DestroySession(c.handle)
	if !ok {
		return
	}

	logx.L.Info("client disconnected",
		zap.String("userId", sess.UserID),
		zap.String("roomId", roomID),
	)

	if roomID != "" {
		msg := protocol.NewMessage(protocol.MsgLeaveRequest, map[string]any{
			"userId":   sess.UserID,
			"userName": sess.Name,
		})
		msg.SenderID = sess.UserID
		h.broadcast(roomID, msg, PolicyAllExceptSender, sess.UserID)
	}
}

func (h *Hub) connForUser(userID string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.byUser[userID]
}

// livenessLoop prunes sessions whose last activity is older than the
// heartbeat budget. Closing the socket funnels the session through the
// same unregister path as a normal disconnect.
func (h *Hub) livenessLoop() {
	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			maxIdle := h.heartbeatInterval * time.Duration(h.heartbeatMisses)
			for _, sess := range h.reg.StaleSessions(maxIdle) {
				logx.L.Warn("pruning unresponsive session",
					zap.String("userId", sess.UserID),
					zap.Time("lastActiveAt", sess.LastActiveAt),
				)
				if c := h.connForUser(sess.UserID); c != nil {
					c.close()
				} else {
					h.reg.DestroySession(sess.Handle)
				}
			}
		}
	}
}
