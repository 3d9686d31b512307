package cli

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/vox/internal/compiler"
	"github.com/roach88/vox/internal/ir"
	"github.com/roach88/vox/internal/matcher"
	"github.com/roach88/vox/internal/store"
	"github.com/roach88/vox/internal/telemetry"
	"github.com/roach88/vox/internal/workflow"
)

// ListenOptions holds flags for the listen command.
type ListenOptions struct {
	*RootOptions
	DBPath      string
	MetricsAddr string
	Watch       bool
	Restore     bool
	Context     string
}

// NewListenCommand creates the listen command.
func NewListenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Interactive session over stdin",
		Long: `Read transcripts from stdin, one per line, and classify each in the
current conversation context. Lines starting with ":" drive the context
manager:

  :set <ctx>        switch context (the current one is stacked)
  :push <ctx>       push a context
  :pop              resume the most recently stacked context
  :error <msg>      report an error in the current context
  :recover <action> end error recovery (retry, abort, fallback)
  :var <n>=<v>      set a local variable (value parsed as JSON if possible)
  :global <n>=<v>   set a global variable
  :unset <n>        remove a local variable
  :state            show the current context and stack
  :stats            show matcher and context statistics
  :suggest          rank the contexts reachable from here
  :save [name]      save a snapshot to the store
  :quit             end the session

With --db (or store.path) every match result is logged and the context
state is saved under store.snapshot when the session ends.

Examples:
  vox listen
  vox listen --db vox.db --restore
  vox listen --watch --metrics-addr :9090`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListen(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "", "path to the SQLite store (overrides store.path)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (overrides metrics.addr)")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "reload patterns when the directory changes")
	cmd.Flags().BoolVar(&opts.Restore, "restore", false, "restore the last saved snapshot before reading input")
	cmd.Flags().StringVarP(&opts.Context, "context", "c", "", "initial context")

	return cmd
}

// session is one listen run: the matcher, the context manager and the
// optional store, plus a writer shared with timer-driven notifications.
type session struct {
	opts    *ListenOptions
	matcher *matcher.Matcher
	manager *workflow.Manager
	store   *store.Store

	mu   sync.Mutex
	out  io.Writer
	json bool
}

func runListen(opts *ListenOptions, cmd *cobra.Command) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	cfg := opts.Config

	reg, res, err := loadRegistry(cfg.Patterns)
	if err != nil {
		return err
	}

	var (
		matchObs   []matcher.Option
		managerObs []workflow.Option
		metrics    *http.Server
	)
	addr := cfg.Metrics.Addr
	if cmd.Flags().Changed("metrics-addr") {
		addr = opts.MetricsAddr
	}
	if addr != "" {
		promReg := prometheus.NewRegistry()
		mt := telemetry.NewMetrics(promReg)
		matchObs = append(matchObs, matcher.WithObserver(mt))
		managerObs = append(managerObs, workflow.WithObserver(mt))
		metrics = serveMetrics(addr, promReg, opts)
		defer shutdownMetrics(metrics)
	}

	m, err := opts.newMatcher(reg, matchObs...)
	if err != nil {
		return err
	}

	mgrOpts := cfg.WorkflowOptions()
	mgrOpts = append(mgrOpts, workflow.WithTimeouts(res.Timeouts), workflow.WithLogger(opts.Logger))
	mgrOpts = append(mgrOpts, managerObs...)
	mgr := workflow.NewManager(mgrOpts...)
	defer mgr.Close()

	s := &session{
		opts:    opts,
		matcher: m,
		manager: mgr,
		out:     cmd.OutOrStdout(),
		json:    opts.Format == "json",
	}
	for _, kind := range workflow.Kinds {
		mgr.On(kind, s.notify)
	}

	path := cfg.Store.Path
	if cmd.Flags().Changed("db") {
		path = opts.DBPath
	}
	if path != "" {
		st, err := store.Open(path, store.WithLogger(opts.Logger))
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open store", err)
		}
		defer st.Close()
		s.store = st
	}

	if opts.Restore {
		if err := s.restore(ctx); err != nil {
			return err
		}
	}
	if opts.Context != "" {
		ct, err := ir.ParseContextType(opts.Context)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --context", err)
		}
		if err := mgr.SetContext(ct, nil, workflow.Force(), workflow.NoStack()); err != nil {
			return WrapExitError(ExitCommandError, "failed to enter initial context", err)
		}
	}

	if opts.Watch {
		w, err := compiler.NewWatcher(cfg.Patterns, func(reg *compiler.Registry, _ *compiler.LoadResult) {
			if m.Reload(reg) {
				s.event("reload", map[string]any{"patterns": reg.Len(), "hash": reg.Hash},
					func(w io.Writer) { fmt.Fprintf(w, "↻ patterns reloaded (%d)\n", reg.Len()) })
			}
		}, compiler.WithWatchLogger(opts.Logger), compiler.WithInitialHash(reg.Hash))
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to watch patterns", err)
		}
		if err := w.Start(ctx); err != nil {
			return WrapExitError(ExitCommandError, "failed to watch patterns", err)
		}
		defer w.Stop()
	}

	if cfg.Workflow.SweepInterval > 0 {
		mgr.StartSweeper(ctx, cfg.Workflow.SweepInterval)
	}

	opts.Logger.Info("listening", "patterns", reg.Len(), "context", mgr.Current().Type)
	if err := s.loop(ctx, cmd.InOrStdin()); err != nil {
		return err
	}
	return s.saveSnapshot(ctx, cfg.Store.Snapshot)
}

// loop reads lines until EOF, :quit or cancellation.
func (s *session) loop(ctx context.Context, in io.Reader) error {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, ":") {
			s.match(ctx, line)
			continue
		}
		if quit := s.control(ctx, line[1:]); quit {
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		return WrapExitError(ExitFailure, "failed to read input", err)
	}
	return nil
}

func (s *session) match(ctx context.Context, transcript string) {
	current := s.manager.Current().Type
	r := s.matcher.Match(transcript, matcher.WithContext(current))
	if s.store != nil {
		if _, err := s.store.AppendMatch(ctx, r, time.Now()); err != nil {
			s.opts.Logger.Warn("failed to log match", "error", err)
		}
	}
	s.event("match", r, func(w io.Writer) {
		if r.Matched() {
			writeMatch(w, r)
			return
		}
		fmt.Fprintf(w, "✗ no match for %q\n", r.Preprocessed)
	})
}

// control runs one ":" command and reports whether the session should end.
func (s *session) control(ctx context.Context, line string) bool {
	verb, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	var err error
	switch verb {
	case "quit", "q", "exit":
		return true
	case "set", "push":
		var ct ir.ContextType
		if ct, err = ir.ParseContextType(arg); err == nil {
			if verb == "set" {
				err = s.manager.SetContext(ct, nil)
			} else {
				err = s.manager.PushContext(ct, nil)
			}
		}
	case "pop":
		err = s.manager.PopContext()
	case "error":
		if arg == "" {
			arg = "unspecified error"
		}
		s.manager.HandleError(errors.New(arg))
	case "recover":
		var action workflow.RecoveryAction
		if action, err = workflow.ParseRecoveryAction(arg); err == nil {
			err = s.manager.RecoverFromError(action)
		}
	case "var", "global":
		scope := workflow.Local
		if verb == "global" {
			scope = workflow.Global
		}
		err = s.setVariable(arg, scope)
	case "unset":
		err = s.manager.RemoveVariable(arg, workflow.Local)
	case "state":
		s.showState()
	case "stats":
		s.showStats()
	case "suggest":
		sug := s.manager.SuggestNextContexts()
		s.event("suggestions", sug, func(w io.Writer) {
			for _, x := range sug {
				fmt.Fprintf(w, "  %3d %-18s %s\n", x.Priority, x.Type, x.Reason)
			}
		})
	case "save":
		name := arg
		if name == "" {
			name = s.opts.Config.Store.Snapshot
		}
		err = s.saveSnapshot(ctx, name)
	default:
		err = fmt.Errorf("unknown command :%s", verb)
	}

	if err != nil {
		code := string(workflow.CodeOf(err))
		s.event("error", map[string]any{"code": code, "message": err.Error()},
			func(w io.Writer) { fmt.Fprintf(w, "✗ %v\n", err) })
	}
	return false
}

// setVariable parses "name=value". The value is decoded as JSON when it
// is valid JSON and kept as a string otherwise.
func (s *session) setVariable(arg string, scope workflow.Scope) error {
	name, raw, ok := strings.Cut(arg, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return fmt.Errorf("expected <name>=<value>, got %q", arg)
	}
	raw = strings.TrimSpace(raw)
	v, err := ir.UnmarshalValue([]byte(raw))
	if err != nil {
		v = ir.String(raw)
	}
	return s.manager.SetVariable(name, v, scope)
}

func (s *session) showState() {
	cur := s.manager.Current()
	stack := s.manager.Stack()
	type stateView struct {
		Current ir.Context                         `json:"current"`
		Stack   []workflow.SuspendedContext        `json:"stack"`
		Globals map[string]workflow.GlobalVariable `json:"globals"`
	}
	view := stateView{Current: cur, Stack: stack, Globals: s.manager.Globals()}
	s.event("state", view, func(w io.Writer) {
		fmt.Fprintf(w, "  context: %s (%s)\n", cur.Type, cur.ID)
		for _, k := range cur.Variables.SortedKeys() {
			fmt.Fprintf(w, "    %s = %s\n", k, formatValue(cur.Variables[k]))
		}
		for i := len(stack) - 1; i >= 0; i-- {
			fmt.Fprintf(w, "  stacked: %s\n", stack[i].Context.Type)
		}
		for _, k := range sortedKeys(view.Globals) {
			fmt.Fprintf(w, "  global %s = %s\n", k, formatValue(view.Globals[k].Value))
		}
	})
}

func (s *session) showStats() {
	type cacheView struct {
		Hits   int64 `json:"hits"`
		Misses int64 `json:"misses"`
		Size   int   `json:"size"`
	}
	type statsView struct {
		Matcher matcher.Stats  `json:"matcher"`
		Context workflow.Stats `json:"context"`
		Cache   cacheView      `json:"entity_cache"`
	}
	view := statsView{Matcher: s.matcher.Stats(), Context: s.manager.Stats()}
	view.Cache.Hits, view.Cache.Misses, view.Cache.Size = s.matcher.Extractor().CacheStats()
	s.event("stats", view, func(w io.Writer) {
		ms, cs, es := view.Matcher, view.Context, view.Cache
		fmt.Fprintf(w, "  matches: %d (%d ok, %d failed, avg %.2f)\n",
			ms.Total, ms.Successful, ms.Failed, ms.AverageConfidence)
		fmt.Fprintf(w, "  transitions: %d (%d rejected), timeouts: %d, errors: %d, recoveries: %d\n",
			cs.Transitions, cs.InvalidTransitions, cs.TimeoutCount, cs.ErrorCount, cs.Recoveries)
		fmt.Fprintf(w, "  entity cache: %d hits, %d misses, %d cached\n", es.Hits, es.Misses, es.Size)
	})
}

func (s *session) restore(ctx context.Context) error {
	if s.store == nil {
		return NewExitError(ExitCommandError, "--restore needs a store: pass --db or set store.path")
	}
	name := s.opts.Config.Store.Snapshot
	st, err := s.store.LoadSnapshot(ctx, name)
	if errors.Is(err, sql.ErrNoRows) {
		s.opts.Logger.Info("no snapshot to restore", "name", name)
		return nil
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load snapshot", err)
	}
	if err := s.manager.ImportState(st); err != nil {
		return WrapExitError(ExitCommandError, "failed to restore snapshot", err)
	}
	s.opts.Logger.Info("snapshot restored", "name", name, "context", st.Current.Type)
	return nil
}

// saveSnapshot exports the context state to the store. Without a store
// it does nothing.
func (s *session) saveSnapshot(ctx context.Context, name string) error {
	if s.store == nil {
		return nil
	}
	hash, inserted, err := s.store.SaveSnapshot(ctx, name, s.manager.ExportState())
	if err != nil {
		return WrapExitError(ExitFailure, "failed to save snapshot", err)
	}
	s.opts.Logger.Info("snapshot saved", "name", name, "hash", hash, "inserted", inserted)
	return nil
}

// notify prints manager notifications. It may run on a timer goroutine.
func (s *session) notify(n workflow.Notification) {
	switch n := n.(type) {
	case workflow.ContextChanged:
		s.event(string(n.Kind()), map[string]any{"from": n.Previous.Type, "to": n.Current.Type, "reason": n.Current.Metadata.Reason},
			func(w io.Writer) { fmt.Fprintf(w, "→ %s -> %s\n", n.Previous.Type, n.Current.Type) })
	case workflow.ContextTimeout:
		s.event(string(n.Kind()), map[string]any{"context": n.Context.Type, "elapsed": n.Elapsed.String(), "next": n.Next},
			func(w io.Writer) { fmt.Fprintf(w, "⏱ %s timed out after %s\n", n.Context.Type, n.Elapsed.Round(time.Second)) })
	case workflow.ContextError:
		s.event(string(n.Kind()), map[string]any{"error": n.Err.Error(), "origin": n.Origin, "attempt": n.Attempt, "escalated": n.Escalated},
			func(w io.Writer) {
				fmt.Fprintf(w, "! error in %s (attempt %d): %v\n", n.Origin, n.Attempt, n.Err)
			})
	case workflow.VariableChanged:
		s.event(string(n.Kind()), map[string]any{"name": n.Name, "value": n.Value, "global": n.Global},
			func(w io.Writer) { fmt.Fprintf(w, "  %s := %s\n", n.Name, formatValue(n.Value)) })
	case workflow.VariableRemoved:
		s.event(string(n.Kind()), map[string]any{"name": n.Name, "global": n.Global},
			func(w io.Writer) { fmt.Fprintf(w, "  %s removed\n", n.Name) })
	}
}

// event writes one session event: a JSON line in json format, the text
// rendering otherwise.
func (s *session) event(kind string, data any, text func(io.Writer)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.json {
		text(s.out)
		return
	}
	enc := json.NewEncoder(s.out)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(map[string]any{"event": kind, "data": data}); err != nil {
		s.opts.Logger.Warn("failed to encode event", "event", kind, "error", err)
	}
}

func serveMetrics(addr string, g prometheus.Gatherer, opts *ListenOptions) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.Handler(g))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			opts.Logger.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	opts.Logger.Info("serving metrics", "addr", addr)
	return srv
}

func shutdownMetrics(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
