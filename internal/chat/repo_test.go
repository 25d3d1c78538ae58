package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/suPer8Hu/sentinel-chat/internal/common"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := gorm.Open(gormsqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Session{}, &Message{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func mustSession(t *testing.T, repo *Repo, userID, title string) string {
	t.Helper()
	id, err := NewSessionID()
	if err != nil {
		t.Fatalf("new id: %v", err)
	}
	if err := repo.EnsureSession(context.Background(), &Session{SessionID: id, UserID: userID, Title: title}); err != nil {
		t.Fatalf("ensure session: %v", err)
	}
	return id
}

func TestRepo_AppendAndListInOrder(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()
	id := mustSession(t, repo, "alice", "t")

	for i, content := range []string{"a", "b", "c", "d"} {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		if _, err := repo.AppendMessage(ctx, &Message{SessionID: id, UserID: "alice", Role: role, Content: content}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	msgs, err := repo.ListMessages(ctx, id)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var got []string
	for _, m := range msgs {
		got = append(got, m.Content)
	}
	if strings.Join(got, "") != "abcd" {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestRepo_AppendIdempotent(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()
	id := mustSession(t, repo, "alice", "t")

	key := "retry-1"
	first := &Message{SessionID: id, UserID: "alice", Role: RoleUser, Content: "hi", IdempotencyKey: &key}
	if replayed, err := repo.AppendMessage(ctx, first); err != nil || replayed {
		t.Fatalf("append: replayed=%v err=%v", replayed, err)
	}
	key2 := "retry-1"
	second := &Message{SessionID: id, UserID: "alice", Role: RoleUser, Content: "hi", IdempotencyKey: &key2}
	replayed, err := repo.AppendMessage(ctx, second)
	if err != nil {
		t.Fatalf("append again: %v", err)
	}
	if !replayed {
		t.Fatalf("second append with the same key should report a replay")
	}
	if second.ID != first.ID {
		t.Fatalf("expected the stored message back, got id %d want %d", second.ID, first.ID)
	}

	msgs, _ := repo.ListMessages(ctx, id)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
}

func TestRepo_EnsureSessionOwnership(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()
	id := mustSession(t, repo, "alice", "mine")

	// same owner again is a no-op
	s := &Session{SessionID: id, UserID: "alice", Title: "other title"}
	if err := repo.EnsureSession(ctx, s); err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if s.Title != "mine" {
		t.Fatalf("title should be kept, got %q", s.Title)
	}

	err := repo.EnsureSession(ctx, &Session{SessionID: id, UserID: "mallory"})
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected not found for another owner, got %v", err)
	}
}

func TestRepo_ListSessionsNewestFirstPerUser(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()
	older := mustSession(t, repo, "alice", "older")
	newer := mustSession(t, repo, "alice", "newer")
	mustSession(t, repo, "bob", "bob's")

	sessions, err := repo.ListSessions(ctx, "alice")
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 2 || sessions[0].SessionID != newer || sessions[1].SessionID != older {
		t.Fatalf("unexpected sessions %+v", sessions)
	}
}

func TestRepo_DeleteSession(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()
	id := mustSession(t, repo, "alice", "t")
	_, _ = repo.AppendMessage(ctx, &Message{SessionID: id, UserID: "alice", Role: RoleUser, Content: "x"})

	// someone else cannot delete it
	if err := repo.DeleteSession(ctx, "bob", id); err != nil {
		t.Fatalf("delete as bob: %v", err)
	}
	if msgs, _ := repo.ListMessages(ctx, id); len(msgs) != 1 {
		t.Fatalf("bob's delete must not touch alice's chat")
	}

	for i := 0; i < 2; i++ {
		if err := repo.DeleteSession(ctx, "alice", id); err != nil {
			t.Fatalf("delete #%d: %v", i+1, err)
		}
	}
	if msgs, _ := repo.ListMessages(ctx, id); len(msgs) != 0 {
		t.Fatalf("messages should be gone, got %d", len(msgs))
	}
	if sessions, _ := repo.ListSessions(ctx, "alice"); len(sessions) != 0 {
		t.Fatalf("session should be gone, got %+v", sessions)
	}
}
