// Package journal is an optional append-only record of the operations
// accepted into room logs, kept in sqlite. It is write-only with respect
// to room state: rooms always start empty on boot, and the journal only
// backs the replay endpoint.
package journal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/collabboard/collabboard/internal/logx"
	"github.com/collabboard/collabboard/protocol"
)

// Entry is one journaled operation.
type Entry struct {
	RoomID      string          `json:"roomId"`
	Seq         int64           `json:"seq"`
	SenderID    string          `json:"senderId"`
	OperationID string          `json:"operationId"`
	OpType      int             `json:"opType"`
	Payload     json.RawMessage `json:"op"`
	CreatedAt   int64           `json:"ts"`
}

type job struct {
	entry Entry
}

// Writer serializes all journal writes through a single goroutine fed by
// a buffered channel, so the hot broadcast path never waits on disk.
type Writer struct {
	db   *sql.DB
	jobs chan job
	done chan struct{}
}

func Open(path string) (*Writer, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	if _, err := db.Exec(`
        PRAGMA journal_mode = WAL;
        PRAGMA synchronous = NORMAL;
        PRAGMA busy_timeout = 5000;
    `); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal pragmas: %w", err)
	}

	if _, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS operations (
            room_id      TEXT NOT NULL,
            seq          INTEGER NOT NULL,
            sender_id    TEXT NOT NULL,
            operation_id TEXT NOT NULL,
            op_type      INTEGER NOT NULL,
            payload      BLOB NOT NULL,
            created_at   INTEGER NOT NULL
        );
    `); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}

	if _, err := db.Exec(`
        CREATE INDEX IF NOT EXISTS idx_operations_room_seq
        ON operations(room_id, seq);
    `); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal index: %w", err)
	}

	w := &Writer{
		db:   db,
		jobs: make(chan job, 4096),
		done: make(chan struct{}),
	}
	go w.writeLoop()
	return w, nil
}

// Record enqueues one operation. The queue is bounded; if the disk
// cannot keep up the entry is dropped rather than stalling delivery.
func (w *Writer) Record(roomID string, op protocol.DrawingOperation) {
	payload, err := json.Marshal(op.ToMap())
	if err != nil {
		logx.L.Error("journal encode", zap.Error(err))
		return
	}
	entry := Entry{
		RoomID:      roomID,
		Seq:         op.Seq,
		SenderID:    op.SenderID,
		OperationID: op.OperationID,
		OpType:      int(op.OpType),
		Payload:     payload,
		CreatedAt:   time.Now().UnixMilli(),
	}
	select {
	case w.jobs <- job{entry: entry}:
	default:
		logx.L.Warn("journal queue full, dropping entry",
			zap.String("roomId", roomID),
			zap.Int64("seq", op.Seq),
		)
	}
}

func (w *Writer) writeLoop() {
	defer close(w.done)
	for j := range w.jobs {
		_, err := w.db.Exec(`
            INSERT INTO operations
                (room_id, seq, sender_id, operation_id, op_type, payload, created_at)
            VALUES (?, ?, ?, ?, ?, ?, ?)`,
			j.entry.RoomID, j.entry.Seq, j.entry.SenderID,
			j.entry.OperationID, j.entry.OpType, j.entry.Payload, j.entry.CreatedAt,
		)
		if err != nil {
			logx.L.Error("journal write", zap.Error(err))
		}
	}
}

// Events returns journaled operations for the room with seq > fromSeq,
// in seq order.
func (w *Writer) Events(roomID string, fromSeq int64) ([]Entry, error) {
	rows, err := w.db.Query(`
        SELECT room_id, seq, sender_id, operation_id, op_type, payload, created_at
        FROM operations
        WHERE room_id = ? AND seq > ?
        ORDER BY seq`,
		roomID, fromSeq,
	)
	if err != nil {
		return nil, fmt.Errorf("journal query: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.RoomID, &e.Seq, &e.SenderID, &e.OperationID,
			&e.OpType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("journal scan: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close drains pending writes and closes the database.
func (w *Writer) Close() error {
	close(w.jobs)
	<-w.done
	return w.db.Close()
}
