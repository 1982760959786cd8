package main

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vango-dev/vreconcile/internal/config"
	"github.com/vango-dev/vreconcile/internal/errors"
	"github.com/vango-dev/vreconcile/pkg/dom"
	"github.com/vango-dev/vreconcile/pkg/memdom"
	"github.com/vango-dev/vreconcile/pkg/metrics"
	"github.com/vango-dev/vreconcile/pkg/remote"
	"github.com/vango-dev/vreconcile/pkg/snapshot"
	"github.com/vango-dev/vreconcile/pkg/treedoc"
	"github.com/vango-dev/vreconcile/pkg/vdom"
)

// reloadKind marks the message pushed by the file watcher.
const reloadKind = "reload"

func serveCmd(g *globals) *cobra.Command {
	var addr string
	var watch bool
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "serve DOC",
		Short: "Render a document and mirror it to websocket observers",
		Long: `Render a tree document on an in-memory backend and serve it:

  /ws       websocket mirror (snapshot, then one frame per pass)
  /healthz  mount, pass sequence and client count
  /metrics  Prometheus metrics, when metrics are enabled

Events sent by observers are dispatched to the document's listeners and
the resulting messages are logged. With --watch the document is reloaded
whenever the file changes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = g.cfg.Serve.Addr
			}
			switch {
			case !watch:
				debounce = 0
			case debounce <= 0:
				debounce = time.Millisecond
			}
			return runServe(cmd.Context(), cmd.OutOrStdout(), g, args[0], addr, debounce)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (default from config, "+config.DefaultAddr+")")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "reload the document when the file changes")
	cmd.Flags().DurationVar(&debounce, "debounce", 100*time.Millisecond, "wait this long after the last change before reloading")

	return cmd
}

// server is one running `serve` session.
type server struct {
	path   string
	logger *slog.Logger
	loader *treedoc.Loader

	mu  sync.Mutex
	doc *treedoc.Document
}

// update is the application update of the render loop: it logs listener
// messages and reloads the document on a reload message.
func (s *server) update(msgs []treedoc.Message) *vdom.Tree[treedoc.Message] {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range msgs {
		if m.Kind == reloadKind && m.Source == "" {
			doc, err := treedoc.ReadFile(s.path)
			if err != nil {
				s.logger.Error("reload failed", "path", s.path, "error", err)
				continue
			}
			if doc.Mount != s.doc.Mount {
				s.logger.Error("reload failed", "path", s.path, "error", "mount changed", "mount", doc.Mount)
				continue
			}
			s.doc = doc
			s.logger.Info("document reloaded", "path", s.path)
			continue
		}
		if m.Err != nil {
			s.logger.Warn("listener failed", "kind", m.Kind, "source", m.Source, "error", m.Err)
			continue
		}
		s.logger.Info("message", "kind", m.Kind, "value", m.Value)
	}

	tree, err := s.loader.Tree(s.doc)
	if err != nil {
		s.logger.Error("build tree failed", "error", err)
		return vdom.NewTree[treedoc.Message](s.doc.Mount, nil)
	}
	return tree
}

// watchDocument starts watching the directory holding path. Editors often
// replace a file rather than write it, so the file itself is not watched.
func watchDocument(path string) (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.New("R405").Wrap(err)
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, errors.New("R405").WithDetailf("watch %s", filepath.Dir(path)).Wrap(err)
	}
	return w, nil
}

// watch pushes a reload message when the document is written, created or
// renamed. Events closer together than debounce collapse into one reload.
// It closes w when ctx is done.
func (s *server) watch(ctx context.Context, w *fsnotify.Watcher, pool *vdom.Messages[treedoc.Message], debounce time.Duration) {
	defer w.Close()

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != s.path || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			s.logger.Debug("document changed", "path", ev.Name, "op", ev.Op.String())
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(debounce)
			fire = timer.C

		case <-fire:
			fire = nil
			pool.Push(treedoc.Message{Kind: reloadKind, Value: s.path})

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.Warn("watch error", "path", s.path, "error", err)
		}
	}
}

// runServe serves path on addr. A positive debounce enables reloading the
// document when the file changes.
func runServe(ctx context.Context, out io.Writer, g *globals, path, addr string, debounce time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	doc, err := treedoc.ReadFile(path)
	if err != nil {
		return err
	}
	s := &server{path: path, logger: g.logger, loader: treedoc.NewLoader(), doc: doc}

	opts := []dom.Option{dom.WithLogger(g.logger)}
	var gatherer prometheus.Gatherer
	if g.cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		opts = append(opts, dom.WithObserver(metrics.New(
			metrics.WithRegistry(reg),
			metrics.WithNamespace(g.cfg.Metrics.Namespace),
		)))
		gatherer = reg
	}

	backend := memdom.NewDocument()
	r := dom.NewRenderer(doc.Mount, backend, backend.Root(), vdom.NewMessages[treedoc.Message](), opts...)

	store, err := openStore(g.cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		r.AddHook(snapshot.Recorder[treedoc.Message](store, g.logger))
	}

	hub := remote.NewHub(doc.Mount, backend, &remote.Config{
		ReadTimeout: g.cfg.ReadTimeout(),
		CheckOrigin: originChecker(g.cfg.Serve.AllowedOrigins),
		Logger:      g.logger,
	})
	defer hub.Close()
	remote.Mirror(hub, r)

	if err := r.Render(ctx, s.update(nil)); err != nil {
		return err
	}
	if debounce > 0 {
		w, err := watchDocument(path)
		if err != nil {
			return err
		}
		go s.watch(ctx, w, r.Pool(), debounce)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           remote.NewRouter(hub, gatherer),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	success(out, "serving %s on %s", doc.Mount, addr)

	loopCh := make(chan error, 1)
	go func() {
		loopCh <- dom.Run(ctx, r, s.update)
	}()

	var runErr error
	select {
	case err := <-errCh:
		if !stderrors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
	case err := <-loopCh:
		if !stderrors.Is(err, context.Canceled) {
			runErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		g.logger.Warn("shutdown failed", "error", err)
	}
	return runErr
}

// originChecker accepts same-origin requests plus the allowed origins.
// "*" allows any origin.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		u, err := url.Parse(origin)
		return err == nil && u.Host == r.Host
	}
}
