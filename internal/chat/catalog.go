package chat

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/suPer8Hu/sentinel-chat/internal/common"
	"go.uber.org/zap"
)

const (
	labelDateLayout = "2006-01-02"
	maxTitleRunes   = 40
)

type Entry struct {
	SessionID string `json:"session_id"`
	Label     string `json:"label"`
}

// Catalog lists a user's chats and manages which one a SessionState points at.
// Methods that take a *SessionState expect the caller to hold its lock.
type Catalog struct {
	store        Store
	greeting     string
	newChatLabel string
	logger       *zap.Logger
	newID        func() (string, error)
}

func NewCatalog(store Store, greeting, newChatLabel string, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	if newChatLabel == "" {
		newChatLabel = "New Chat"
	}
	return &Catalog{
		store:        store,
		greeting:     greeting,
		newChatLabel: newChatLabel,
		logger:       logger,
		newID:        NewSessionID,
	}
}

func (c *Catalog) Greeting() DisplayMessage {
	return DisplayMessage{Role: RoleAssistant, Content: c.greeting}
}

// Open returns a fresh state for userID whose active session is a brand-new
// chat that exists only as the synthetic catalog entry.
func (c *Catalog) Open(userID string) (*SessionState, error) {
	id, err := c.newID()
	if err != nil {
		return nil, err
	}
	return &SessionState{
		UserID:      userID,
		ActiveID:    id,
		NewChatID:   id,
		Display:     []DisplayMessage{c.Greeting()},
		CatalogKeys: []string{id},
	}, nil
}

// NewChat discards st and returns a fresh one for the same user. Nothing is
// deleted from the store.
func (c *Catalog) NewChat(st *SessionState) (*SessionState, error) {
	return c.Open(st.UserID)
}

// DeleteChat deletes sessionID from the store and then behaves like NewChat.
// Deleting an unknown session succeeds. On store failure st is returned
// unchanged together with the error.
func (c *Catalog) DeleteChat(ctx context.Context, st *SessionState, sessionID string) (*SessionState, error) {
	if err := c.store.DeleteSession(ctx, st.UserID, sessionID); err != nil {
		c.logger.Error("delete chat failed",
			zap.String("user_id", st.UserID),
			zap.String("session_id", sessionID),
			zap.Error(err))
		return st, common.WithKind(common.ErrStoreUnavailable, err)
	}
	c.logger.Info("chat deleted", zap.String("user_id", st.UserID), zap.String("session_id", sessionID))
	return c.NewChat(st)
}

// Entries builds the catalog for userID: the synthetic new-chat entry first,
// then persisted sessions newest first. If the store fails the result is just
// the synthetic entry and the returned error is a transient-store error; the
// entries are usable either way.
func (c *Catalog) Entries(ctx context.Context, userID, newChatID string) ([]Entry, error) {
	entries := []Entry{{SessionID: newChatID, Label: c.newChatEntryLabel(newChatID)}}

	sessions, err := c.store.ListSessions(ctx, userID)
	if err != nil {
		c.logger.Warn("list sessions failed, showing new chat only",
			zap.String("user_id", userID),
			zap.Error(err))
		return entries, common.WithKind(common.ErrTransientStore, err)
	}

	for _, s := range sessions {
		if s.SessionID == newChatID {
			continue
		}
		entries = append(entries, Entry{SessionID: s.SessionID, Label: sessionLabel(s)})
	}
	return entries, nil
}

// List is Entries for st; the keys are remembered so Select can validate
// against them. The active session stays selectable even when the store
// could not list it.
func (c *Catalog) List(ctx context.Context, st *SessionState) ([]Entry, error) {
	entries, err := c.Entries(ctx, st.UserID, st.NewChatID)
	keys := make([]string, 0, len(entries)+1)
	for _, e := range entries {
		keys = append(keys, e.SessionID)
	}
	if err != nil && st.Registered && !slices.Contains(keys, st.ActiveID) {
		keys = append(keys, st.ActiveID)
	}
	st.CatalogKeys = keys
	if err == nil {
		st.Unlisted = false
	}
	return entries, err
}

// Promote is called once the active session has been registered in the
// store. If it was the synthetic new-chat session, a fresh synthetic key is
// minted so the two never collide, and st is marked Unlisted until the next
// successful List.
func (c *Catalog) Promote(st *SessionState) error {
	st.Registered = true
	if st.ActiveID != st.NewChatID {
		return nil
	}
	st.Unlisted = true
	id, err := c.newID()
	if err != nil {
		return err
	}
	st.NewChatID = id
	st.CatalogKeys = append(st.CatalogKeys, id)
	return nil
}

// Select makes sessionID the active session and loads its transcript.
// sessionID must come from the most recent List. A transcript that cannot be
// read loads as empty.
func (c *Catalog) Select(ctx context.Context, st *SessionState, sessionID string) error {
	if !st.offered(sessionID) {
		return common.ErrUnknownSession
	}

	st.ActiveID = sessionID
	st.Registered = sessionID != st.NewChatID
	st.History = nil
	st.Display = []DisplayMessage{c.Greeting()}
	if !st.Registered {
		return nil
	}

	msgs, err := c.store.ListMessages(ctx, sessionID)
	if err != nil {
		c.logger.Warn("load transcript failed, showing empty chat",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return nil
	}
	st.History = msgs
	for _, m := range msgs {
		st.Display = append(st.Display, m.Display())
	}
	return nil
}

// Refresh lists the catalog again after a brand-new chat was registered, so
// the chat shows under its own label next to a new synthetic entry.
func (c *Catalog) Refresh(ctx context.Context, st *SessionState) ([]Entry, error) {
	if err := c.Promote(st); err != nil {
		return nil, err
	}
	return c.List(ctx, st)
}

func (c *Catalog) newChatEntryLabel(sessionID string) string {
	t, ok := SessionTime(sessionID)
	if !ok {
		t = time.Now()
	}
	return t.Local().Format(labelDateLayout) + " : " + c.newChatLabel
}

func sessionLabel(s Session) string {
	title := s.Title
	if title == "" {
		title = "Chat"
	}
	return s.CreatedAt.Local().Format(labelDateLayout) + " : " + title
}

// TitleFrom derives a short catalog title from the first user message.
func TitleFrom(text string) string {
	title := strings.Join(strings.Fields(text), " ")
	r := []rune(title)
	if len(r) > maxTitleRunes {
		title = string(r[:maxTitleRunes-1]) + "…"
	}
	return title
}
