package registry

import (
	"crypto/rand"
	"encoding/base64"
	"strings"

	"github.com/google/uuid"

	"github.com/collabboard/collabboard/middleware"
)

// Short opaque tokens cut from UUIDs. Room ids are 8 characters and user
// ids 6; both are collision-checked against live state by the caller.

func shortUUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func newUserID() string { return shortUUID()[:6] }

func newRoomID() string { return shortUUID()[:8] }

func newOperationID() string { return shortUUID()[:12] }

// newHandle returns the connection handle. Handles are never shown to
// other clients, so they use a longer random token than the short ids.
func newHandle() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "h_" + shortUUID()
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

func colorForUser(userID string) string {
	return middleware.ColorFromUserID(userID)
}
