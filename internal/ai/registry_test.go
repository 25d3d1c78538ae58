package ai

import (
	"context"
	"strings"
	"testing"
)

type echoProvider struct{ model string }

func (p echoProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	return p.model, nil
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Register(" Ollama ", func(_ context.Context, model string) (Provider, error) {
		return echoProvider{model: model}, nil
	})
	reg.Register("openrouter", func(_ context.Context, model string) (Provider, error) {
		return echoProvider{model: "router/" + model}, nil
	})

	p, err := reg.Get(context.Background(), "OLLAMA", "llama3")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got, _ := p.Chat(context.Background(), nil); got != "llama3" {
		t.Fatalf("resolved wrong provider, got %q", got)
	}

	if names := strings.Join(reg.Names(), ","); names != "ollama,openrouter" {
		t.Fatalf("Names() = %q", names)
	}

	_, err = reg.Get(context.Background(), "anthropic", "")
	if err == nil || !strings.Contains(err.Error(), "ollama, openrouter") {
		t.Fatalf("unknown provider error should list registered ones, got %v", err)
	}
}
