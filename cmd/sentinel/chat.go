package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/suPer8Hu/sentinel-chat/internal/agent"
	"github.com/suPer8Hu/sentinel-chat/internal/app"
	"github.com/suPer8Hu/sentinel-chat/internal/chat"
	"github.com/suPer8Hu/sentinel-chat/internal/common"
	"github.com/suPer8Hu/sentinel-chat/internal/docs"
	"github.com/suPer8Hu/sentinel-chat/internal/identity"
	"github.com/suPer8Hu/sentinel-chat/internal/turn"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	userStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	assistantStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	activeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

var chatUser string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat in the terminal",
	Long: `Chat in the terminal against the configured store and agents.

Commands inside the chat:
  /list            list your chats
  /open <n>        switch to chat n from the last /list
  /new             start a new chat
  /delete <n>      delete chat n from the last /list
  /upload <files>  attach documents to the current chat
  /quit            leave`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if logLevel == "" {
			logLevel = "warn"
		}
		// indexes are built inline so answers can use them right away
		a, logger, err := setup(app.Options{NoQueue: true})
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
		defer a.Close()

		user := strings.TrimSpace(chatUser)
		if user == "" {
			user = identity.Resolve(a.Cfg.AnonymousAllowed, http.Header{}, a.Cfg.IdentityHeader)
		}

		r, err := newREPL(a.Catalog, a.Turns, a.Docs, user, cmd.InOrStdin(), cmd.OutOrStdout())
		if err != nil {
			return err
		}
		fmt.Fprintln(r.out, titleStyle.Render(a.Cfg.UI.PageTitle)+dimStyle.Render("  ("+user+", /help for commands)"))
		return r.run(cmd.Context())
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatUser, "user", "", "Identity to chat as (default: resolved like the HTTP API)")
	rootCmd.AddCommand(chatCmd)
}

type repl struct {
	catalog *chat.Catalog
	turns   *turn.Orchestrator
	docs    *docs.Service
	in      io.Reader
	out     io.Writer

	st      *chat.SessionState
	entries []chat.Entry
}

func newREPL(catalog *chat.Catalog, turns *turn.Orchestrator, d *docs.Service, user string, in io.Reader, out io.Writer) (*repl, error) {
	st, err := catalog.Open(user)
	if err != nil {
		return nil, err
	}
	return &repl{catalog: catalog, turns: turns, docs: d, in: in, out: out, st: st}, nil
}

func (r *repl) run(ctx context.Context) error {
	r.render()
	sc := bufio.NewScanner(r.in)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		fmt.Fprint(r.out, userStyle.Render("> "))
		if !sc.Scan() {
			fmt.Fprintln(r.out)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			return nil
		}
		if err := r.handle(ctx, line); err != nil {
			fmt.Fprintln(r.out, errorStyle.Render("error: "+err.Error()))
		}
	}
}

func (r *repl) handle(ctx context.Context, line string) error {
	if !strings.HasPrefix(line, "/") {
		return r.send(ctx, line)
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/help":
		fmt.Fprintln(r.out, dimStyle.Render("/list /open <n> /new /delete <n> /upload <files> /quit"))
		return nil
	case "/list":
		return r.list(ctx)
	case "/new":
		st, err := r.catalog.NewChat(r.st)
		if err != nil {
			return err
		}
		r.st = st
		r.render()
		return nil
	case "/open":
		id, err := r.pick(fields)
		if err != nil {
			return err
		}
		r.st.Lock()
		err = r.catalog.Select(ctx, r.st, id)
		r.st.Unlock()
		if err != nil {
			return err
		}
		r.render()
		return nil
	case "/delete":
		id, err := r.pick(fields)
		if err != nil {
			return err
		}
		r.st.Lock()
		st, err := r.catalog.DeleteChat(ctx, r.st, id)
		r.st.Unlock()
		if err != nil {
			return err
		}
		r.st = st
		r.entries = nil
		fmt.Fprintln(r.out, dimStyle.Render("deleted"))
		r.render()
		return nil
	case "/upload":
		return r.upload(ctx, fields[1:])
	default:
		return fmt.Errorf("unknown command %s", fields[0])
	}
}

func (r *repl) send(ctx context.Context, text string) error {
	fmt.Fprint(r.out, assistantStyle.Render("assistant: "))
	sink := agent.SinkFunc(func(chunk string) error {
		_, err := io.WriteString(r.out, chunk)
		return err
	})
	res, err := r.turns.Submit(ctx, r.st, turn.Input{Text: text}, sink)
	fmt.Fprintln(r.out)
	if err != nil {
		return err
	}
	for _, d := range res.Diagnostics {
		fmt.Fprintln(r.out, dimStyle.Render("note: "+d.Error()))
	}
	if res.Catalog != nil {
		r.entries = res.Catalog
	}
	return nil
}

func (r *repl) list(ctx context.Context) error {
	r.st.Lock()
	entries, err := r.catalog.List(ctx, r.st)
	active := r.st.ActiveID
	r.st.Unlock()
	if err != nil && !errors.Is(err, common.ErrTransientStore) {
		return err
	}
	if err != nil {
		fmt.Fprintln(r.out, dimStyle.Render("(store unavailable, showing new chat only)"))
	}
	r.entries = entries
	for i, e := range entries {
		label := fmt.Sprintf("%2d  %s", i+1, e.Label)
		if e.SessionID == active {
			label = activeStyle.Render(label + "  *")
		}
		fmt.Fprintln(r.out, label)
	}
	return nil
}

func (r *repl) pick(fields []string) (string, error) {
	if len(fields) != 2 {
		return "", fmt.Errorf("usage: %s <n>", fields[0])
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil || n < 1 || n > len(r.entries) {
		return "", errors.New("no such chat; run /list first")
	}
	return r.entries[n-1].SessionID, nil
}

func (r *repl) upload(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return errors.New("usage: /upload <file>...")
	}
	files := make([]docs.File, 0, len(paths))
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		files = append(files, docs.File{Name: filepath.Base(p), Data: b})
	}

	r.st.Lock()
	defer r.st.Unlock()
	idx, err := r.docs.Ingest(ctx, r.st.UserID, r.st.ActiveID, files)
	if err != nil {
		return err
	}
	r.st.DocumentIndex = idx.ID
	fmt.Fprintln(r.out, dimStyle.Render(fmt.Sprintf("index %s: %s (%d files)", idx.ID, idx.Status, idx.FileCount)))
	return nil
}

func (r *repl) render() {
	for _, m := range r.st.Snapshot() {
		style := assistantStyle
		if m.Role == chat.RoleUser {
			style = userStyle
		}
		fmt.Fprintln(r.out, style.Render(m.Role+": ")+m.Content)
	}
}
