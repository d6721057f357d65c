package protocol

import "fmt"

// DrawingOperationType identifies a drawing operation. Undo and redo are
// envelope-level kinds, not operation types.
type DrawingOperationType int

const (
	OpBeginStroke DrawingOperationType = iota
	OpAddPoint
	OpEndStroke
	OpDrawLine
	OpDrawRectangle
	OpDrawEllipse
	OpAddText
	OpErase
)

// Path segment kinds inside a freehand stroke.
const (
	SegMoveTo  = 0
	SegLineTo  = 1
	SegCurveTo = 2
)

// PathPoint is one element of a freehand stroke path.
type PathPoint struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Type int     `json:"type"`
}

// DrawingOperation is the payload of a MsgDrawingOperation envelope. Data
// holds the operation-specific geometry and style keys (coordinates, pen
// color and width, text, erase center and radius, a "path" array of
// PathPoints for strokes).
//
// Seq and SenderID are filled in by the server when the operation is
// recorded into a room's log; they ride along in snapshots and redo
// broadcasts so peers can version their local mirror.
type DrawingOperation struct {
	OpType      DrawingOperationType `json:"opType"`
	Data        map[string]any       `json:"data"`
	OperationID string               `json:"operationId,omitempty"`
	Seq         int64                `json:"seq,omitempty"`
	SenderID    string               `json:"senderId,omitempty"`
}

// ToMap converts the operation to the generic form carried inside an
// envelope's data object.
func (op DrawingOperation) ToMap() map[string]any {
	m := map[string]any{
		"opType": int(op.OpType),
		"data":   op.Data,
	}
	if op.OperationID != "" {
		m["operationId"] = op.OperationID
	}
	if op.Seq != 0 {
		m["seq"] = op.Seq
	}
	if op.SenderID != "" {
		m["senderId"] = op.SenderID
	}
	return m
}

// OperationFromMap parses an operation out of an envelope data object.
func OperationFromMap(m map[string]any) (DrawingOperation, error) {
	if m == nil {
		return DrawingOperation{}, fmt.Errorf("empty operation payload")
	}
	op := DrawingOperation{
		OpType:      DrawingOperationType(AsInt(m["opType"])),
		OperationID: AsString(m["operationId"]),
		Seq:         int64(AsInt(m["seq"])),
		SenderID:    AsString(m["senderId"]),
	}
	if data, ok := m["data"].(map[string]any); ok {
		op.Data = data
	} else {
		op.Data = map[string]any{}
	}
	return op, nil
}

// Path extracts the freehand path from the operation data, if present.
func (op DrawingOperation) Path() []PathPoint {
	raw, ok := op.Data["path"].([]any)
	if !ok {
		return nil
	}
	points := make([]PathPoint, 0, len(raw))
	for _, v := range raw {
		pm, ok := v.(map[string]any)
		if !ok {
			continue
		}
		points = append(points, PathPoint{
			X:    AsFloat(pm["x"]),
			Y:    AsFloat(pm["y"]),
			Type: AsInt(pm["type"]),
		})
	}
	return points
}

// PathData converts a point slice into the generic form stored under the
// "path" key.
func PathData(points []PathPoint) []any {
	out := make([]any, 0, len(points))
	for _, p := range points {
		out = append(out, map[string]any{"x": p.X, "y": p.Y, "type": p.Type})
	}
	return out
}
