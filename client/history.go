package client

import (
	"sync"

	"github.com/collabboard/collabboard/protocol"
)

// history is the client-local undo/redo cache. It exists for snappy
// local undo before the server round trip completes; the server's room
// log is the source of truth, and the cache is reset whenever the client
// resynchronizes from a snapshot.
type history struct {
	mu   sync.Mutex
	undo []protocol.DrawingOperation
	redo []protocol.DrawingOperation
}

// Push records a locally-applied operation. New edits invalidate any
// redo history, matching the server's rule.
func (h *history) Push(op protocol.DrawingOperation) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.undo = append(h.undo, op)
	h.redo = nil
}

// Undo pops the most recent local operation onto the redo stack.
func (h *history) Undo() (protocol.DrawingOperation, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.undo) == 0 {
		return protocol.DrawingOperation{}, false
	}
	op := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, op)
	return op, true
}

// Redo pops the most recently undone operation back onto the undo stack.
func (h *history) Redo() (protocol.DrawingOperation, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.redo) == 0 {
		return protocol.DrawingOperation{}, false
	}
	op := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, op)
	return op, true
}

// RemoveByID drops the identified operation from the undo stack, for
// server-driven undos of operations this client authored. Reports
// whether the id was known locally.
func (h *history) RemoveByID(operationID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.undo) - 1; i >= 0; i-- {
		if h.undo[i].OperationID == operationID {
			h.undo = append(h.undo[:i], h.undo[i+1:]...)
			return true
		}
	}
	return false
}

// Reset clears both stacks.
func (h *history) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.undo = nil
	h.redo = nil
}

// Depth returns the undo and redo stack sizes.
func (h *history) Depth() (int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undo), len(h.redo)
}
