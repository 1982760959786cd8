package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/vango-dev/vreconcile/internal/config"
	"github.com/vango-dev/vreconcile/internal/errors"
	"github.com/vango-dev/vreconcile/pkg/snapshot"
	"github.com/vango-dev/vreconcile/pkg/vdom"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		errors.Print(os.Stderr, err)
		os.Exit(1)
	}
}

// globals holds the state shared by every subcommand.
type globals struct {
	configPath string
	logLevel   string
	noColor    bool

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:   "vreconcile",
		Short: "Diff, apply and mirror virtual element trees",
		Long: `vreconcile reconciles virtual element trees against a live backend.

Tree documents (JSON or YAML) describe elements, classes, attributes and
listeners. The CLI can:

  • diff two documents into a change sequence or a JSON Patch
  • apply a series of documents to an in-memory backend
  • serve a document to websocket observers
  • replay recorded render passes from a snapshot store`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.setup(cmd.ErrOrStderr())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&g.configPath, "config", "c", "", "config file (default: nearest vreconcile.json)")
	flags.StringVar(&g.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	flags.BoolVar(&g.noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(
		diffCmd(g),
		applyCmd(g),
		serveCmd(g),
		historyCmd(g),
		versionCmd(),
	)
	return rootCmd
}

// setup loads the configuration and builds the logger.
func (g *globals) setup(stderr io.Writer) error {
	var cfg *config.Config
	var err error
	if g.configPath != "" {
		cfg, err = config.LoadFile(g.configPath)
	} else {
		cfg, err = config.LoadFromWorkingDir()
	}
	if err != nil {
		return err
	}

	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	if g.noColor || !isatty.IsTerminal(os.Stdout.Fd()) {
		errors.DisableColors()
	}

	g.cfg = cfg
	g.logger = slog.New(cfg.LogHandler(stderr))
	slog.SetDefault(g.logger)
	return nil
}

// openStore opens the configured snapshot store. It returns nil when
// recording is disabled.
func openStore(cfg *config.Config) (snapshot.Store, error) {
	switch cfg.Snapshot.Driver {
	case config.DriverBolt:
		path := cfg.HistoryPath()
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, errors.New("R302").WithDetailf("create %s", filepath.Dir(path)).Wrap(err)
		}
		return snapshot.OpenBolt(path)
	case config.DriverS3:
		client := snapshot.NewS3Client(cfg.Snapshot.Region, cfg.Snapshot.Endpoint)
		return snapshot.NewS3Store(client, cfg.Snapshot.Bucket, cfg.Snapshot.Prefix), nil
	default:
		return nil, nil
	}
}

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	faint  = color.New(color.FgHiBlack).SprintFunc()
)

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", green("✓"), fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", yellow("⚠"), fmt.Sprintf(format, args...))
}

// opLine prefixes and colors a change line by its operation.
func opLine(op vdom.Op, line string) string {
	switch op {
	case vdom.OpAdd:
		return green("+ " + line)
	case vdom.OpRemove:
		return red("- " + line)
	default:
		return yellow("~ " + line)
	}
}
