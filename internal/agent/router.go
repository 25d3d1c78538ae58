package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/suPer8Hu/sentinel-chat/internal/ai"
	"github.com/suPer8Hu/sentinel-chat/internal/common"
)

// Router picks one of a fixed set of agents per utterance and runs it.
type Router struct {
	agents  map[string]Agent
	window  int
	timeout time.Duration
}

// NewRouter needs at least an agent named General. window bounds how many
// history messages reach the agent; timeout bounds one invocation (0 means
// none).
func NewRouter(window int, timeout time.Duration, agents ...Agent) (*Router, error) {
	r := &Router{agents: make(map[string]Agent, len(agents)), window: window, timeout: timeout}
	for _, a := range agents {
		r.agents[a.Name()] = a
	}
	if _, ok := r.agents[General]; !ok {
		return nil, errors.New("router: general agent is required")
	}
	return r, nil
}

// Route selects the agent for utterance. An "@general" or "@documents"
// prefix followed by text forces the choice; otherwise a session with a document index goes to
// the documents agent and everything else to the general one.
func (r *Router) Route(utterance string, history []ai.Message, documentIndex string) (Agent, Prompt) {
	name, text := override(utterance)
	if name == "" {
		name = General
		if documentIndex != "" {
			name = Documents
		}
	}
	a, ok := r.agents[name]
	if !ok || (name == Documents && documentIndex == "") {
		a = r.agents[General]
	}

	if r.window > 0 && len(history) > r.window {
		history = history[len(history)-r.window:]
	}
	return a, Prompt{
		Utterance:     text,
		History:       append([]ai.Message(nil), history...),
		DocumentIndex: documentIndex,
	}
}

// Invoke runs a and returns its complete reply. Chunks reach sink as they are
// produced. Any failure, including the timeout, carries
// common.ErrAgentInvocation. There are no retries.
func (r *Router) Invoke(ctx context.Context, a Agent, p Prompt, sink Sink) (string, error) {
	if sink == nil {
		sink = Discard
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	reply, err := a.Run(ctx, p, sink)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		return "", common.WithKind(common.ErrAgentInvocation, fmt.Errorf("agent %s: %w", a.Name(), err))
	}
	return reply, nil
}

// override reads an "@agent <text>" prefix. A bare prefix with no text is
// left as ordinary text.
func override(utterance string) (agentName, text string) {
	trimmed := strings.TrimSpace(utterance)
	for _, name := range []string{General, Documents} {
		prefix := "@" + name
		if strings.HasPrefix(trimmed, prefix+" ") {
			return name, strings.TrimSpace(strings.TrimPrefix(trimmed, prefix))
		}
	}
	return "", utterance
}
