package ai

import (
	"context"
	"strings"
)

// StreamProvider is an optional interface. Providers may implement streaming chat.
// Both channels are closed when streaming ends.
type StreamProvider interface {
	StreamChat(ctx context.Context, messages []Message) (<-chan string, <-chan error)
}

// Complete runs messages through p. Streaming providers hand every chunk to
// emit as it arrives; others hand the whole reply over once. The assembled
// reply is returned either way. An error from emit aborts the call.
func Complete(ctx context.Context, p Provider, messages []Message, emit func(string) error) (string, error) {
	sp, ok := p.(StreamProvider)
	if !ok {
		reply, err := p.Chat(ctx, messages)
		if err != nil {
			return "", err
		}
		if emit != nil && reply != "" {
			if err := emit(reply); err != nil {
				return "", err
			}
		}
		return reply, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks, errs := sp.StreamChat(ctx, messages)
	var b strings.Builder
	for c := range chunks {
		b.WriteString(c)
		if emit != nil {
			if err := emit(c); err != nil {
				cancel()
				for range chunks {
				}
				return "", err
			}
		}
	}
	if err := <-errs; err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return b.String(), nil
}
