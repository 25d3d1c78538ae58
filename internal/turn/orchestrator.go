// Package turn runs one user turn: admit, gate, route, persist.
package turn

import (
	"context"
	"errors"
	"strings"

	"github.com/suPer8Hu/sentinel-chat/internal/agent"
	"github.com/suPer8Hu/sentinel-chat/internal/ai"
	"github.com/suPer8Hu/sentinel-chat/internal/chat"
	"github.com/suPer8Hu/sentinel-chat/internal/common"
	"github.com/suPer8Hu/sentinel-chat/internal/gate"
	"github.com/suPer8Hu/sentinel-chat/internal/observability"
	"go.uber.org/zap"
)

type Phase string

const (
	Idle           Phase = "idle"
	Admitted       Phase = "admitted"
	Gated          Phase = "gated"
	ShortCircuited Phase = "short_circuited"
	Routed         Phase = "routed"
	Persisted      Phase = "persisted"
)

type Input struct {
	Text string
	// IdempotencyKey makes a retried submission reuse the stored user message.
	IdempotencyKey string
}

// Result describes a finished (or failed) turn. Diagnostics holds the
// non-fatal problems the turn worked around.
type Result struct {
	SessionID   string
	User        chat.Message
	Assistant   chat.Message
	Agent       string
	Blocked     bool
	Replayed    bool
	Path        []Phase
	Diagnostics []error
	// Catalog is set when the turn registered a brand-new chat.
	Catalog []chat.Entry
}

func (r *Result) enter(p Phase) { r.Path = append(r.Path, p) }

type Orchestrator struct {
	store   chat.Store
	catalog *chat.Catalog
	gate    *gate.Gate
	router  *agent.Router
	locker  Locker
	logger  *zap.Logger
}

// New builds an Orchestrator. A nil locker falls back to a LocalLocker.
func New(store chat.Store, catalog *chat.Catalog, g *gate.Gate, router *agent.Router, locker Locker, logger *zap.Logger) *Orchestrator {
	if locker == nil {
		locker = NewLocalLocker()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{store: store, catalog: catalog, gate: g, router: router, locker: locker, logger: logger}
}

// Submit runs one turn on st. It holds st's lock for the whole turn, so turns
// on one state never interleave; a second state on the same session gets
// common.ErrTurnInProgress.
//
// The turn is not cancelled when ctx is: the client may go away, the reply is
// still produced and persisted. A non-nil error means the turn ended before
// the assistant message was stored.
func (o *Orchestrator) Submit(ctx context.Context, st *chat.SessionState, in Input, sink agent.Sink) (*Result, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, common.Wrap(common.ErrInvalidInput, "empty message")
	}
	if sink == nil {
		sink = agent.Discard
	}

	log := observability.FromContext(ctx, o.logger)
	ctx = context.WithoutCancel(ctx)

	st.Lock()
	defer st.Unlock()

	release, err := o.locker.Acquire(ctx, st.ActiveID)
	if err != nil {
		return nil, err
	}
	defer release()

	log = log.With(zap.String("session_id", st.ActiveID), zap.String("user_id", st.UserID))
	res := &Result{SessionID: st.ActiveID}
	res.enter(Idle)

	if !st.Registered {
		sess := &chat.Session{SessionID: st.ActiveID, UserID: st.UserID, Title: chat.TitleFrom(text)}
		if err := o.store.EnsureSession(ctx, sess); err != nil {
			log.Error("register session failed", zap.Error(err))
			return res, common.WithKind(common.ErrStoreWrite, err)
		}
		if err := o.catalog.Promote(st); err != nil {
			log.Warn("mint new chat id failed", zap.Error(err))
			res.Diagnostics = append(res.Diagnostics, err)
		}
	}

	history, err := o.store.ListMessages(ctx, st.ActiveID)
	if err != nil {
		log.Warn("load history failed, continuing without it", zap.Error(err))
		res.Diagnostics = append(res.Diagnostics, common.WithKind(common.ErrTransientStore, err))
		history = nil
	}

	user := chat.Message{
		SessionID: st.ActiveID,
		UserID:    st.UserID,
		Role:      chat.RoleUser,
		Content:   text,
	}
	if in.IdempotencyKey != "" {
		key := in.IdempotencyKey
		user.IdempotencyKey = &key
	}
	replayed, err := o.store.AppendMessage(ctx, &user)
	if err != nil {
		log.Error("store user message failed", zap.Error(err))
		return res, common.WithKind(common.ErrStoreWrite, err)
	}
	res.User = user

	prior, reply, found := splitReplay(history, user.ID)
	if replayed && !found {
		// the earlier attempt is stored but history could not show what followed it
		history, err = o.store.ListMessages(ctx, st.ActiveID)
		if err != nil {
			log.Error("load history for retried turn failed", zap.Uint64("message_id", user.ID), zap.Error(err))
			return res, common.WithKind(common.ErrTransientStore, err)
		}
		prior, reply, _ = splitReplay(history, user.ID)
	}
	if replayed && reply != nil {
		// the turn already completed earlier; hand back what was stored
		res.Replayed = true
		res.Assistant = *reply
		res.enter(Persisted)
		o.refresh(ctx, st, res)
		res.enter(Idle)
		log.Info("turn replayed", zap.Uint64("message_id", user.ID))
		return res, nil
	}

	if !replayed {
		st.Display = append(st.Display, user.Display())
		st.History = append(st.History, user)
	}
	res.enter(Admitted)

	verdict, err := o.gate.Check(ctx, text)
	if err != nil {
		res.Diagnostics = append(res.Diagnostics, err)
	}
	res.enter(Gated)

	var content string
	switch v := verdict.(type) {
	case gate.Blocked:
		res.Blocked = true
		content = v.Response
		res.enter(ShortCircuited)
		if err := sink.Emit(content); err != nil {
			log.Debug("sink closed", zap.Error(err))
		}
	case gate.Passed:
		a, prompt := o.router.Route(text, toAI(prior), st.DocumentIndex)
		res.Agent = a.Name()
		content, err = o.router.Invoke(ctx, a, prompt, &detached{next: sink, log: log})
		if err != nil {
			log.Error("agent invocation failed", zap.String("agent", a.Name()), zap.Error(err))
			return res, err
		}
		res.enter(Routed)
	}

	assistant := chat.Message{
		SessionID: st.ActiveID,
		UserID:    st.UserID,
		Role:      chat.RoleAssistant,
		Content:   content,
	}
	st.Display = append(st.Display, assistant.Display())
	if _, err := o.store.AppendMessage(ctx, &assistant); err != nil {
		log.Error("store assistant message failed, display and store diverge",
			zap.Uint64("user_message_id", user.ID),
			zap.Error(err))
		return res, common.WithKind(common.ErrStoreWrite, err)
	}
	st.History = append(st.History, assistant)
	res.Assistant = assistant
	res.enter(Persisted)

	o.refresh(ctx, st, res)

	res.enter(Idle)
	log.Info("turn completed",
		zap.String("agent", res.Agent),
		zap.Bool("blocked", res.Blocked),
		zap.Int("diagnostics", len(res.Diagnostics)))
	return res, nil
}

// refresh re-lists the catalog when the active chat was registered but has
// not been listed yet, typically after the first completed turn of a new chat.
func (o *Orchestrator) refresh(ctx context.Context, st *chat.SessionState, res *Result) {
	if !st.Unlisted {
		return
	}
	entries, err := o.catalog.Refresh(ctx, st)
	res.Catalog = entries
	if err != nil {
		res.Diagnostics = append(res.Diagnostics, err)
	}
}

// splitReplay looks for userID in history. When present the message was
// stored by an earlier attempt: prior is what precedes it and reply the
// assistant message that followed, if any. History read before the append
// never contains a message that append created.
func splitReplay(history []chat.Message, userID uint64) (prior []chat.Message, reply *chat.Message, found bool) {
	for i, m := range history {
		if m.ID != userID {
			continue
		}
		if i+1 < len(history) && history[i+1].Role == chat.RoleAssistant {
			reply = &history[i+1]
		}
		return history[:i], reply, true
	}
	return history, nil, false
}

func toAI(msgs []chat.Message) []ai.Message {
	out := make([]ai.Message, 0, len(msgs))
	for _, m := range msgs {
		role := ai.RoleUser
		if m.Role == chat.RoleAssistant {
			role = ai.RoleAssistant
		}
		out = append(out, ai.Message{Role: role, Content: m.Content})
	}
	return out
}

// detached forwards chunks until the first failed Emit and then drops the
// rest, so a vanished client does not abort the agent.
type detached struct {
	next   agent.Sink
	log    *zap.Logger
	closed bool
}

func (d *detached) Emit(chunk string) error {
	if d.closed {
		return nil
	}
	if err := d.next.Emit(chunk); err != nil {
		d.closed = true
		if !errors.Is(err, context.Canceled) {
			d.log.Debug("sink closed", zap.Error(err))
		}
	}
	return nil
}
