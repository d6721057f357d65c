package middleware

import (
	"fmt"
	"hash/fnv"
)

// ColorFromUserID derives a stable display color from a user id, so every
// client renders the same user with the same color.
func ColorFromUserID(userID string) string {
	h := fnv.New32a()
	h.Write([]byte(userID))
	hash := h.Sum32()

	hue := int(hash % 360)
	return fmt.Sprintf("hsl(%d, 70%%, 55%%)", hue)
}
