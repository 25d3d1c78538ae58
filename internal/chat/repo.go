package chat

import (
	"context"
	"errors"

	"github.com/suPer8Hu/sentinel-chat/internal/common"
	"gorm.io/gorm"
)

// Store is the transcript store as the catalog and the turn orchestrator see it.
type Store interface {
	EnsureSession(ctx context.Context, s *Session) error
	AppendMessage(ctx context.Context, m *Message) (replayed bool, err error)
	ListMessages(ctx context.Context, sessionID string) ([]Message, error)
	ListSessions(ctx context.Context, userID string) ([]Session, error)
	DeleteSession(ctx context.Context, userID, sessionID string) error
}

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

var _ Store = (*Repo)(nil)

// EnsureSession registers s if its session id is new. An id already owned by
// another user reports common.ErrNotFound.
func (r *Repo) EnsureSession(ctx context.Context, s *Session) error {
	var existing Session
	err := r.db.WithContext(ctx).
		Where(Session{SessionID: s.SessionID}).
		Attrs(Session{UserID: s.UserID, Title: s.Title}).
		FirstOrCreate(&existing).Error
	if err != nil {
		return err
	}
	if existing.UserID != s.UserID {
		return common.ErrNotFound
	}
	*s = existing
	return nil
}

// AppendMessage inserts m. When m carries an idempotency key that was already
// used in the same session, the stored message is loaded into m, no new row
// is written and replayed is true.
func (r *Repo) AppendMessage(ctx context.Context, m *Message) (bool, error) {
	if m.IdempotencyKey != nil && *m.IdempotencyKey == "" {
		m.IdempotencyKey = nil
	}

	err := r.db.WithContext(ctx).Create(m).Error
	if err == nil || m.IdempotencyKey == nil {
		return false, err
	}

	var existing Message
	getErr := r.db.WithContext(ctx).
		Where("session_id = ? AND idempotency_key = ?", m.SessionID, *m.IdempotencyKey).
		First(&existing).Error
	if getErr == nil {
		*m = existing
		return true, nil
	}
	if errors.Is(getErr, gorm.ErrRecordNotFound) {
		return false, err
	}
	return false, getErr
}

// ListMessages returns the whole transcript in insertion order.
func (r *Repo) ListMessages(ctx context.Context, sessionID string) ([]Message, error) {
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// ListSessions returns the user's sessions, newest first.
func (r *Repo) ListSessions(ctx context.Context, userID string) ([]Session, error) {
	var sessions []Session
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

// DeleteSession removes the session and its transcript. Deleting a session
// that does not exist (or belongs to someone else) changes nothing and
// returns nil.
func (r *Repo) DeleteSession(ctx context.Context, userID, sessionID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ? AND user_id = ?", sessionID, userID).
			Delete(&Message{}).Error; err != nil {
			return err
		}
		return tx.Where("session_id = ? AND user_id = ?", sessionID, userID).
			Delete(&Session{}).Error
	})
}
