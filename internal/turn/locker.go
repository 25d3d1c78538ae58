package turn

import (
	"context"
	"sync"

	"github.com/suPer8Hu/sentinel-chat/internal/common"
)

// Locker guarantees at most one running turn per session id. Acquire does not
// wait: a held session reports common.ErrTurnInProgress.
type Locker interface {
	Acquire(ctx context.Context, sessionID string) (release func(), err error)
}

// LocalLocker is a Locker for a single process.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

func (l *LocalLocker) Acquire(_ context.Context, sessionID string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[sessionID]; busy {
		return nil, common.ErrTurnInProgress
	}
	l.held[sessionID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, sessionID)
			l.mu.Unlock()
		})
	}, nil
}
