package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/suPer8Hu/sentinel-chat/internal/ai"
	"github.com/suPer8Hu/sentinel-chat/internal/docs"
	"go.uber.org/zap"
)

const (
	General   = "general"
	Documents = "documents"
)

// Prompt is everything an agent gets for one turn.
type Prompt struct {
	Utterance string
	// History holds the prior turns, oldest first, without Utterance.
	History       []ai.Message
	DocumentIndex string
}

type Agent interface {
	Name() string
	Run(ctx context.Context, p Prompt, sink Sink) (string, error)
}

// Backend names the registry entry an agent resolves its provider from.
type Backend struct {
	Provider string
	Model    string
}

const generalSystemPrompt = "You are a helpful assistant. Answer clearly and concisely."

type GeneralAgent struct {
	registry *ai.Registry
	backend  Backend
}

func NewGeneralAgent(registry *ai.Registry, backend Backend) *GeneralAgent {
	return &GeneralAgent{registry: registry, backend: backend}
}

func (a *GeneralAgent) Name() string { return General }

func (a *GeneralAgent) Run(ctx context.Context, p Prompt, sink Sink) (string, error) {
	provider, err := a.registry.Get(ctx, a.backend.Provider, a.backend.Model)
	if err != nil {
		return "", err
	}
	return ai.Complete(ctx, provider, conversation(generalSystemPrompt, p), sink.Emit)
}

// Searcher finds document excerpts for a query.
type Searcher interface {
	Search(ctx context.Context, indexID, query string, k int) ([]docs.Chunk, error)
}

const documentsSystemPrompt = `You answer questions using the user's uploaded documents.
Use the excerpts below as your primary source and say so when they do not contain the answer.`

type DocumentAgent struct {
	registry *ai.Registry
	backend  Backend
	searcher Searcher
	topK     int
	logger   *zap.Logger
}

func NewDocumentAgent(registry *ai.Registry, backend Backend, searcher Searcher, topK int, logger *zap.Logger) *DocumentAgent {
	if topK <= 0 {
		topK = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentAgent{registry: registry, backend: backend, searcher: searcher, topK: topK, logger: logger}
}

func (a *DocumentAgent) Name() string { return Documents }

func (a *DocumentAgent) Run(ctx context.Context, p Prompt, sink Sink) (string, error) {
	provider, err := a.registry.Get(ctx, a.backend.Provider, a.backend.Model)
	if err != nil {
		return "", err
	}

	var chunks []docs.Chunk
	if p.DocumentIndex != "" {
		chunks, err = a.searcher.Search(ctx, p.DocumentIndex, p.Utterance, a.topK)
		if err != nil {
			// answer without excerpts rather than fail the turn
			a.logger.Warn("document search failed", zap.String("index_id", p.DocumentIndex), zap.Error(err))
			chunks = nil
		}
	}

	var sys strings.Builder
	sys.WriteString(documentsSystemPrompt)
	if len(chunks) == 0 {
		sys.WriteString("\n\nNo relevant excerpts were found.")
	}
	for i, c := range chunks {
		fmt.Fprintf(&sys, "\n\n[%d] %s\n%s", i+1, c.FileName, c.Content)
	}

	return ai.Complete(ctx, provider, conversation(sys.String(), p), sink.Emit)
}

func conversation(system string, p Prompt) []ai.Message {
	msgs := make([]ai.Message, 0, len(p.History)+2)
	msgs = append(msgs, ai.Message{Role: ai.RoleSystem, Content: system})
	msgs = append(msgs, p.History...)
	msgs = append(msgs, ai.Message{Role: ai.RoleUser, Content: p.Utterance})
	return msgs
}
