package chat

import (
	"time"

	"github.com/suPer8Hu/sentinel-chat/internal/common"
)

// NewSessionID returns a timestamp-encoded session id (ULID). Ids minted by one
// process are strictly increasing, so a new chat never reuses an id.
func NewSessionID() (string, error) {
	return common.NewULID()
}

// SessionTime decodes the creation time carried by a session id.
func SessionTime(sessionID string) (time.Time, bool) {
	return common.ULIDTime(sessionID)
}
