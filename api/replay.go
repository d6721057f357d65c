// Package api exposes the HTTP replay endpoint over the operation
// journal. Live synchronization happens over the WebSocket; this is for
// audit, debugging and clients that want history beyond the join
// snapshot.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/collabboard/collabboard/internal/logx"
	"github.com/collabboard/collabboard/journal"
)

// GetReplay serves GET /replay?roomId=R&from=N: all journaled operations
// for room R with seq > N, in replay order.
func GetReplay(j *journal.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := r.URL.Query().Get("roomId")
		if roomID == "" {
			http.Error(w, "roomId required", http.StatusBadRequest)
			return
		}

		from := int64(0)
		if s := r.URL.Query().Get("from"); s != "" {
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				http.Error(w, "invalid from", http.StatusBadRequest)
				return
			}
			from = n
		}

		entries, err := j.Events(roomID, from)
		if err != nil {
			logx.From(r.Context()).Error("replay query", zap.Error(err))
			http.Error(w, "failed to load replay", http.StatusInternalServerError)
			return
		}
		if entries == nil {
			entries = []journal.Entry{}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(entries)
	}
}
