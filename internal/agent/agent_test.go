package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/suPer8Hu/sentinel-chat/internal/ai"
	"github.com/suPer8Hu/sentinel-chat/internal/common"
	"github.com/suPer8Hu/sentinel-chat/internal/docs"
)

type scriptedProvider struct {
	last  []ai.Message
	reply string
	err   error
	delay time.Duration
}

func (p *scriptedProvider) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	p.last = append([]ai.Message(nil), messages...)
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return p.reply, p.err
}

// streamingProvider answers word by word.
type streamingProvider struct {
	scriptedProvider
}

func (p *streamingProvider) StreamChat(ctx context.Context, messages []ai.Message) (<-chan string, <-chan error) {
	p.last = append([]ai.Message(nil), messages...)
	out := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errs)
		for _, w := range strings.SplitAfter(p.reply, " ") {
			select {
			case out <- w:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()
	return out, errs
}

func registryWith(p ai.Provider) *ai.Registry {
	reg := ai.NewRegistry()
	reg.Register("fake", func(ctx context.Context, model string) (ai.Provider, error) {
		return p, nil
	})
	return reg
}

type fakeSearcher struct {
	chunks []docs.Chunk
	err    error
}

func (s fakeSearcher) Search(ctx context.Context, indexID, query string, k int) ([]docs.Chunk, error) {
	return s.chunks, s.err
}

func newTestRouter(t *testing.T, p ai.Provider, s Searcher, window int, timeout time.Duration) *Router {
	t.Helper()
	reg := registryWith(p)
	r, err := NewRouter(window, timeout,
		NewGeneralAgent(reg, Backend{Provider: "fake"}),
		NewDocumentAgent(reg, Backend{Provider: "fake"}, s, 2, nil),
	)
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	return r
}

func TestNewRouterRequiresGeneral(t *testing.T) {
	reg := registryWith(&scriptedProvider{})
	if _, err := NewRouter(10, 0, NewDocumentAgent(reg, Backend{Provider: "fake"}, fakeSearcher{}, 2, nil)); err == nil {
		t.Fatalf("expected error without a general agent")
	}
}

func TestRoute(t *testing.T) {
	r := newTestRouter(t, &scriptedProvider{}, fakeSearcher{}, 10, 0)

	tests := []struct {
		name      string
		utterance string
		index     string
		agent     string
		text      string
	}{
		{"plain", "hello", "", General, "hello"},
		{"with documents", "what does the contract say?", "IDX", Documents, "what does the contract say?"},
		{"force general", "@general tell a joke", "IDX", General, "tell a joke"},
		{"force documents", "@documents summarize", "IDX", Documents, "summarize"},
		{"documents without index", "@documents summarize", "", General, "summarize"},
		{"prefix needs a space", "@generalized claims", "", General, "@generalized claims"},
		{"bare prefix is plain text", "@general", "", General, "@general"},
		{"bare documents prefix is plain text", "  @documents  ", "IDX", Documents, "  @documents  "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, p := r.Route(tt.utterance, nil, tt.index)
			if a.Name() != tt.agent {
				t.Fatalf("agent = %s, want %s", a.Name(), tt.agent)
			}
			if p.Utterance != tt.text {
				t.Fatalf("utterance = %q, want %q", p.Utterance, tt.text)
			}
		})
	}
}

func TestRouteTrimsHistoryToWindow(t *testing.T) {
	r := newTestRouter(t, &scriptedProvider{}, fakeSearcher{}, 3, 0)
	var history []ai.Message
	for i := 0; i < 8; i++ {
		history = append(history, ai.Message{Role: ai.RoleUser, Content: fmt.Sprint(i)})
	}

	_, p := r.Route("next", history, "")
	if len(p.History) != 3 || p.History[0].Content != "5" || p.History[2].Content != "7" {
		t.Fatalf("unexpected history %+v", p.History)
	}
	p.History[0].Content = "changed"
	if history[5].Content != "5" {
		t.Fatalf("prompt history must not alias the caller's slice")
	}
}

func TestInvokeStreamsToSink(t *testing.T) {
	prov := &streamingProvider{scriptedProvider{reply: "two plus two is four"}}
	r := newTestRouter(t, prov, fakeSearcher{}, 10, time.Second)

	a, p := r.Route("What is 2+2?", []ai.Message{{Role: ai.RoleUser, Content: "hi"}, {Role: ai.RoleAssistant, Content: "hello"}}, "")
	var buf Buffer
	reply, err := r.Invoke(context.Background(), a, p, &buf)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if reply != "two plus two is four" || buf.String() != reply {
		t.Fatalf("reply %q, streamed %q", reply, buf.String())
	}
	if buf.Chunks() != 5 {
		t.Fatalf("expected 5 chunks, got %d", buf.Chunks())
	}

	roles := []string{ai.RoleSystem, ai.RoleUser, ai.RoleAssistant, ai.RoleUser}
	if len(prov.last) != len(roles) {
		t.Fatalf("provider saw %+v", prov.last)
	}
	for i, role := range roles {
		if prov.last[i].Role != role {
			t.Fatalf("message %d role %q, want %q", i, prov.last[i].Role, role)
		}
	}
}

func TestInvokeErrors(t *testing.T) {
	t.Run("provider error", func(t *testing.T) {
		r := newTestRouter(t, &scriptedProvider{err: errors.New("rate limited")}, fakeSearcher{}, 10, time.Second)
		a, p := r.Route("hi", nil, "")
		if _, err := r.Invoke(context.Background(), a, p, nil); !errors.Is(err, common.ErrAgentInvocation) {
			t.Fatalf("expected agent invocation error, got %v", err)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		r := newTestRouter(t, &scriptedProvider{reply: "late", delay: time.Second}, fakeSearcher{}, 10, 20*time.Millisecond)
		a, p := r.Route("hi", nil, "")
		_, err := r.Invoke(context.Background(), a, p, nil)
		if !errors.Is(err, common.ErrAgentInvocation) || !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected timeout, got %v", err)
		}
	})

	t.Run("sink error aborts", func(t *testing.T) {
		r := newTestRouter(t, &scriptedProvider{reply: "hello"}, fakeSearcher{}, 10, time.Second)
		a, p := r.Route("hi", nil, "")
		sink := SinkFunc(func(string) error { return errors.New("client gone") })
		if _, err := r.Invoke(context.Background(), a, p, sink); !errors.Is(err, common.ErrAgentInvocation) {
			t.Fatalf("expected agent invocation error, got %v", err)
		}
	})
}

func TestDocumentAgentUsesExcerpts(t *testing.T) {
	prov := &scriptedProvider{reply: "It says 30 days."}
	s := fakeSearcher{chunks: []docs.Chunk{{FileName: "contract.pdf", Content: "Notice period is 30 days."}}}
	r := newTestRouter(t, prov, s, 10, time.Second)

	a, p := r.Route("what is the notice period?", nil, "IDX")
	if _, err := r.Invoke(context.Background(), a, p, nil); err != nil {
		t.Fatalf("invoke: %v", err)
	}
	sys := prov.last[0].Content
	if !strings.Contains(sys, "[1] contract.pdf") || !strings.Contains(sys, "Notice period is 30 days.") {
		t.Fatalf("system prompt lacks excerpts: %q", sys)
	}
}

func TestDocumentAgentSearchFailureDegrades(t *testing.T) {
	prov := &scriptedProvider{reply: "I don't know."}
	r := newTestRouter(t, prov, fakeSearcher{err: errors.New("db down")}, 10, time.Second)

	a, p := r.Route("what is the notice period?", nil, "IDX")
	reply, err := r.Invoke(context.Background(), a, p, nil)
	if err != nil || reply != "I don't know." {
		t.Fatalf("expected a reply without excerpts, got %q %v", reply, err)
	}
	if !strings.Contains(prov.last[0].Content, "No relevant excerpts") {
		t.Fatalf("system prompt should say no excerpts: %q", prov.last[0].Content)
	}
}
