package types

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewSessionID generates a UUIDv7 session identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewSessionID() SessionID {
	return SessionID(uuid.Must(uuid.NewV7()).String())
}

// NewAttemptID generates a UUIDv7 attempt identifier.
// Time-ordered IDs keep audit inserts clustered in B-tree pages.
func NewAttemptID() AttemptID {
	return AttemptID(uuid.Must(uuid.NewV7()).String())
}

// NewNodeID generates a short identifier for rule nodes the model left unnamed.
// Uses the random tail of a UUIDv7; the timestamp head is shared by ids minted together.
func NewNodeID(prefix string) string {
	id := strings.ReplaceAll(uuid.Must(uuid.NewV7()).String(), "-", "")
	return prefix + "_" + id[len(id)-12:]
}

// ParseSessionID validates and converts a string to SessionID.
// Rejects malformed UUIDs to prevent invalid IDs from entering the system.
func ParseSessionID(s string) (SessionID, error) {
	_, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return SessionID(s), nil
}

// SessionIDTime extracts the timestamp embedded in a UUIDv7 ID.
// Returns zero time for invalid UUIDs; caller should check IsZero().
func SessionIDTime(id SessionID) time.Time {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}
