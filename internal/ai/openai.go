package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type OpenAIProvider struct {
	client *openai.Client
	Model  string
}

func NewOpenAIClient(apiKey string) *openai.Client {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &client
}

func NewOpenAIProvider(client *openai.Client, model string) *OpenAIProvider {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIProvider{client: client, Model: model}
}

func (p *OpenAIProvider) params(messages []Message) openai.ChatCompletionNewParams {
	wire := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			wire = append(wire, openai.SystemMessage(m.Content))
		case RoleAssistant:
			wire = append(wire, openai.AssistantMessage(m.Content))
		default:
			wire = append(wire, openai.UserMessage(m.Content))
		}
	}
	return openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(p.Model),
		Messages: wire,
	}
}

func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	if p.client == nil {
		return "", errors.New("openai: client is nil")
	}
	resp, err := p.client.Chat.Completions.New(ctx, p.params(messages))
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) StreamChat(ctx context.Context, messages []Message) (<-chan string, <-chan error) {
	chunks := make(chan string, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		if p.client == nil {
			errs <- errors.New("openai: client is nil")
			return
		}

		stream := p.client.Chat.Completions.NewStreaming(ctx, p.params(messages))
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}
			select {
			case chunks <- chunk.Choices[0].Delta.Content:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if err := stream.Err(); err != nil {
			errs <- err
		}
	}()

	return chunks, errs
}

func NewOpenAIFactory(client *openai.Client, defaultModel string) ProviderFactory {
	return func(_ context.Context, model string) (Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = defaultModel
		}
		return NewOpenAIProvider(client, m), nil
	}
}

var _ StreamProvider = (*OpenAIProvider)(nil)
