package registry

import (
	"sync"

	"github.com/collabboard/collabboard/protocol"
)

// room holds one room's ordered operation log and its stack of undone
// operations. The log is the replay-order source of truth; undo and redo
// mutate it directly rather than layering on top of it. A fresh append
// clears the undone stack, so edits made after an undo invalidate the old
// redo history.
type room struct {
	id   string
	name string

	// userIds; guarded by the registry lock, not the room lock
	members map[string]bool

	mu     sync.Mutex
	seq    int64
	log    []protocol.DrawingOperation
	undone []protocol.DrawingOperation
}

func newRoom(id, name string) *room {
	return &room{
		id:      id,
		name:    name,
		members: make(map[string]bool),
	}
}

func (rm *room) append(senderID string, op protocol.DrawingOperation) protocol.DrawingOperation {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.seq++
	op.Seq = rm.seq
	op.SenderID = senderID
	if op.OperationID == "" {
		op.OperationID = newOperationID()
	}
	op.Data = cloneData(op.Data)

	rm.log = append(rm.log, op)
	rm.undone = nil
	return op
}

func (rm *room) undoOp(operationID string) (protocol.DrawingOperation, bool) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if len(rm.log) == 0 {
		return protocol.DrawingOperation{}, false
	}

	idx := len(rm.log) - 1
	if operationID != "" {
		idx = -1
		for i := len(rm.log) - 1; i >= 0; i-- {
			if rm.log[i].OperationID == operationID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return protocol.DrawingOperation{}, false
		}
	}

	op := rm.log[idx]
	rm.log = append(rm.log[:idx], rm.log[idx+1:]...)
	rm.undone = append(rm.undone, op)
	return op, true
}

func (rm *room) redoOp() (protocol.DrawingOperation, bool) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if len(rm.undone) == 0 {
		return protocol.DrawingOperation{}, false
	}
	op := rm.undone[len(rm.undone)-1]
	rm.undone = rm.undone[:len(rm.undone)-1]

	rm.seq++
	op.Seq = rm.seq
	rm.log = append(rm.log, op)
	return op, true
}

func (rm *room) clear() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.log = nil
	rm.undone = nil
}

func (rm *room) snapshot() []protocol.DrawingOperation {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	out := make([]protocol.DrawingOperation, len(rm.log))
	for i, op := range rm.log {
		op.Data = cloneData(op.Data)
		out[i] = op
	}
	return out
}

func (rm *room) depth() (int, int) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.log), len(rm.undone)
}

func cloneData(data map[string]any) map[string]any {
	if data == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
