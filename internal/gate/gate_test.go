package gate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/suPer8Hu/sentinel-chat/internal/common"
)

func TestKeywordClassifier(t *testing.T) {
	k := NewKeywordClassifier("Nope.", []string{"Credit  Card Number", "", "bomb"})

	tests := []struct {
		text    string
		blocked bool
	}{
		{"What is 2+2?", false},
		{"give me a credit card   number", true},
		{"BOMB", true},
		{"bombastic prose", true},
		{"   ", false},
	}
	for _, tt := range tests {
		v, err := k.Classify(context.Background(), tt.text)
		if err != nil {
			t.Fatalf("classify %q: %v", tt.text, err)
		}
		b, isBlocked := v.(Blocked)
		if isBlocked != tt.blocked {
			t.Fatalf("classify %q: blocked=%v, want %v", tt.text, isBlocked, tt.blocked)
		}
		if isBlocked && b.Response != "Nope." {
			t.Fatalf("unexpected response %q", b.Response)
		}
	}
}

func TestLoadPhraseList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "phrases.yaml")
	body := "response: \"I can't help with that topic.\"\nphrases:\n  - forbidden topic\n  - another one\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	pl, err := LoadPhraseList(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if pl.Response != "I can't help with that topic." || len(pl.Phrases) != 2 {
		t.Fatalf("unexpected phrase list %+v", pl)
	}
}

func TestGate_FailsClosed(t *testing.T) {
	g := New(ClassifierFunc(func(ctx context.Context, text string) (Verdict, error) {
		return nil, errors.New("boom")
	}), nil)

	v, err := g.Check(context.Background(), "hello")
	if !errors.Is(err, common.ErrGate) {
		t.Fatalf("expected gate error, got %v", err)
	}
	b, ok := v.(Blocked)
	if !ok || b.Response != FailClosedResponse {
		t.Fatalf("expected fail-closed verdict, got %#v", v)
	}
}

func TestGate_NilVerdictFailsClosed(t *testing.T) {
	g := New(ClassifierFunc(func(ctx context.Context, text string) (Verdict, error) {
		return nil, nil
	}), nil)

	v, err := g.Check(context.Background(), "hello")
	if !errors.Is(err, common.ErrGate) {
		t.Fatalf("expected gate error, got %v", err)
	}
	if _, ok := v.(Blocked); !ok {
		t.Fatalf("expected blocked, got %#v", v)
	}
}

func TestGate_EmptyBlockedResponseGetsDefault(t *testing.T) {
	g := New(ClassifierFunc(func(ctx context.Context, text string) (Verdict, error) {
		return Blocked{}, nil
	}), nil)

	v, err := g.Check(context.Background(), "hello")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if b := v.(Blocked); b.Response != DefaultBlockedResponse {
		t.Fatalf("response = %q", b.Response)
	}
}

func TestRemoteClassifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req remoteReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		switch req.Text {
		case "fine":
			_, _ = w.Write([]byte(`{"answer": null}`))
		case "broken":
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		default:
			_, _ = w.Write([]byte(`{"answer": "Let's talk about something else."}`))
		}
	}))
	defer srv.Close()

	rc := NewRemoteClassifier(srv.URL)
	ctx := context.Background()

	if v, err := rc.Classify(ctx, "fine"); err != nil || v != (Passed{}) {
		t.Fatalf("fine: %#v %v", v, err)
	}
	v, err := rc.Classify(ctx, "spicy")
	if err != nil {
		t.Fatalf("spicy: %v", err)
	}
	if b, ok := v.(Blocked); !ok || b.Response != "Let's talk about something else." {
		t.Fatalf("spicy: %#v", v)
	}
	if _, err := rc.Classify(ctx, "broken"); err == nil {
		t.Fatalf("expected error on 503")
	}
}

type memKV struct {
	mu     sync.Mutex
	m      map[string]string
	broken bool
}

func (k *memKV) Get(_ context.Context, key string) (string, bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.broken {
		return "", false, errors.New("kv down")
	}
	v, ok := k.m[key]
	return v, ok, nil
}

func (k *memKV) Set(_ context.Context, key, value string, _ time.Duration) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.broken {
		return errors.New("kv down")
	}
	k.m[key] = value
	return nil
}

func TestCachedClassifier(t *testing.T) {
	calls := 0
	inner := ClassifierFunc(func(ctx context.Context, text string) (Verdict, error) {
		calls++
		if normalizeText(text) == "bad words" {
			return Blocked{Response: "no"}, nil
		}
		return Passed{}, nil
	})
	kv := &memKV{m: map[string]string{}}
	c := NewCachedClassifier(inner, kv, time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if v, _ := c.Classify(ctx, "hello"); v != (Passed{}) {
			t.Fatalf("expected passed, got %#v", v)
		}
		v, _ := c.Classify(ctx, "Bad   Words")
		if b, ok := v.(Blocked); !ok || b.Response != "no" {
			t.Fatalf("expected blocked, got %#v", v)
		}
	}
	if calls != 2 {
		t.Fatalf("inner classifier called %d times, want 2", calls)
	}

	kv.broken = true
	if _, err := c.Classify(ctx, "hello"); err != nil {
		t.Fatalf("cache failure must fall through: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected a fall-through call, got %d", calls)
	}
}

func TestDecodeModelJSON(t *testing.T) {
	var v llmVerdict
	if err := decodeModelJSON("```json\n{\"blocked\": true, \"reason\": \"x\"}\n```", &v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !v.Blocked {
		t.Fatalf("expected blocked")
	}
	if err := decodeModelJSON("", &v); err == nil {
		t.Fatalf("expected error on empty output")
	}
}

func TestVerdictSchemaIsStrict(t *testing.T) {
	if llmVerdictSchema["additionalProperties"] != false {
		t.Fatalf("schema must forbid extra properties")
	}
	req, _ := llmVerdictSchema["required"].([]string)
	if len(req) != 2 {
		t.Fatalf("required = %v", llmVerdictSchema["required"])
	}
}
