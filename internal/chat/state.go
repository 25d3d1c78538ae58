package chat

import (
	"slices"
	"sync"
)

// SessionState is the per-connection view of one chat: which session is
// active, what the user sees, and what was loaded from the store. It is owned
// by one user; turns on it are serialized with Lock/Unlock.
//
// A state is never reset in place. New chat and delete chat produce a fresh
// value (see Catalog.NewChat).
type SessionState struct {
	mu sync.Mutex

	UserID   string
	ActiveID string
	// NewChatID is the key of the synthetic "New Chat" catalog entry.
	NewChatID string

	// Display is the rendering list: greeting followed by the transcript.
	Display []DisplayMessage
	// History is the transcript as last loaded or appended.
	History []Message
	// Registered is true once ActiveID has a row in the store.
	Registered bool
	// Unlisted is true while the active session is registered but no catalog
	// listing has shown it yet.
	Unlisted bool

	DocumentIndex string
	CatalogKeys   []string
}

func (s *SessionState) Lock()   { s.mu.Lock() }
func (s *SessionState) Unlock() { s.mu.Unlock() }

// IsNew reports whether the active session is the one behind the synthetic
// "New Chat" entry and has not yet been persisted.
func (s *SessionState) IsNew() bool {
	return s.ActiveID == s.NewChatID && !s.Registered
}

func (s *SessionState) offered(sessionID string) bool {
	return slices.Contains(s.CatalogKeys, sessionID)
}

// Snapshot copies the display list so callers can render it outside the lock.
func (s *SessionState) Snapshot() []DisplayMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]DisplayMessage(nil), s.Display...)
}
