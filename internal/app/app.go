// Package app wires configuration, logging, the broker session, and the
// operation engines behind the command-line surface.
package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/queueops/jmsqctl/internal/broker"
	"github.com/queueops/jmsqctl/internal/broker/natsjs"
	"github.com/queueops/jmsqctl/internal/config"
	"github.com/queueops/jmsqctl/internal/inventory"
	"github.com/queueops/jmsqctl/internal/metrics"
	"github.com/queueops/jmsqctl/internal/mutate"
	"github.com/queueops/jmsqctl/internal/report"
	"github.com/queueops/jmsqctl/internal/selector"
)

// Options carries the global command-line flags.
type Options struct {
	Env        string
	ConfigPath string
	Server     string
	LogLevel   string
	LogFormat  string
	Metrics    bool
	Yes        bool
}

// ErrPartialFailure marks a run that completed but left per-item failures
// behind; the command exits non-zero without a second error message.
var ErrPartialFailure = errors.New("completed with failures")

// App holds everything an operation needs: the resolved configuration, the
// logger, the open broker session, and the per-run metrics.
type App struct {
	Config  *config.Config
	Log     *slog.Logger
	Session broker.Session
	Run     *metrics.Run

	opts  Options
	conn  *natsjs.Session
	stdin *bufio.Reader
}

// New resolves configuration and logging from the global flags. The broker
// session is opened separately by Connect, so config-only commands stay
// offline.
func New(opts Options) (*App, error) {
	log, err := newLogger(opts.LogLevel, opts.LogFormat)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(opts.ConfigPath, opts.Server)
	if err != nil {
		return nil, err
	}
	if opts.Env != "" {
		if err := cfg.SetEnvironment(opts.Env); err != nil {
			return nil, err
		}
	}

	a := &App{
		Config: cfg,
		Log:    log,
		opts:   opts,
		stdin:  bufio.NewReader(os.Stdin),
	}
	if opts.Metrics {
		a.Run = metrics.NewRun()
	}
	return a, nil
}

// Connect dials the active environment's broker.
func (a *App) Connect() error {
	env := a.Config.CurrentEnvironment()
	a.Log.Debug("connecting",
		slog.String("environment", env.Name),
		slog.String("url", env.URL))
	conn, err := natsjs.Dial(env)
	if err != nil {
		return err
	}
	a.conn = conn
	a.Session = conn
	return nil
}

// Close releases the broker session if one was opened.
func (a *App) Close() {
	if a.conn != nil {
		a.conn.Close()
		a.conn = nil
	}
}

// Engine builds a mutation engine from the configured options.
func (a *App) Engine() *mutate.Engine {
	eng := a.Config.Engine
	return mutate.New(a.Session, mutate.Options{
		BatchSize:        eng.BatchSize,
		MaxConcurrent:    eng.MaxConcurrentMutations,
		RetryOnTransient: eng.RetryOnTransientError,
		RetryLimit:       eng.RetryLimit,
		RetryBackoff:     eng.GetRetryBackoff(),
	}, a.Log, a.Run)
}

// SkipConfirmations disables the stdin prompt; the interactive UI confirms
// through its own dialogs.
func (a *App) SkipConfirmations() {
	a.opts.Yes = true
}

// Confirm prints prompt and reads a yes/no answer, defaulting to yes on a
// bare return. --yes answers every prompt without asking.
func (a *App) Confirm(prompt string) bool {
	if a.opts.Yes {
		return true
	}
	fmt.Printf("%s Y/N [Y]? ", prompt)
	line, err := a.stdin.ReadString('\n')
	if err != nil {
		return false
	}
	line = strings.TrimSpace(strings.ToLower(line))
	return line == "" || line == "y" || line == "yes"
}

// FinishRun prints the metrics summary when --metrics was requested.
func (a *App) FinishRun(w io.Writer) {
	if a.Run == nil {
		return
	}
	fmt.Fprintln(w)
	if err := a.Run.Write(w); err != nil {
		a.Log.Warn("failed to render metrics", slog.String("error", err.Error()))
	}
}

// ListQueues prints the inventory for the requested class.
func (a *App) ListQueues(ctx context.Context, w io.Writer, className string) error {
	class, ok := inventory.ParseClass(className)
	if !ok {
		return fmt.Errorf("invalid --class %q (use: %s)", className, strings.Join(inventory.Classes(), "|"))
	}
	queues, err := inventory.List(ctx, a.Session, class, a.Config.Engine.DMQSuffix)
	if err != nil {
		return err
	}
	report.WriteInventory(w, queues)
	return nil
}

// DeleteMessages deletes messages matching filter from queue, after
// confirmation.
func (a *App) DeleteMessages(ctx context.Context, w io.Writer, queue, filter string, limit int) error {
	sel, err := selector.Compile(filter)
	if err != nil {
		return err
	}
	if !a.Confirm(fmt.Sprintf("Delete messages from %q matching %q", queue, sel.String())) {
		return nil
	}

	out, runErr := a.Engine().DeleteMessages(ctx, queue, sel, limit)
	report.WriteOutcome(w, out)
	if runErr != nil {
		return runErr
	}
	if out.Failed > 0 {
		return ErrPartialFailure
	}
	return nil
}

// MoveMessages moves messages matching filter from source to dest, after
// confirmation.
func (a *App) MoveMessages(ctx context.Context, w io.Writer, source, dest, filter string, limit int) error {
	sel, err := selector.Compile(filter)
	if err != nil {
		return err
	}
	if !a.Confirm(fmt.Sprintf("Move messages from %q to %q matching %q", source, dest, sel.String())) {
		return nil
	}

	out, runErr := a.Engine().MoveMessages(ctx, source, dest, sel, limit)
	report.WriteOutcome(w, out)
	if lost := out.Lost(); lost > 0 {
		fmt.Fprintf(w, "WARNING: %d message(s) removed from %s but not delivered to %s\n", lost, source, dest)
	}
	if runErr != nil {
		return runErr
	}
	if out.Failed > 0 {
		return ErrPartialFailure
	}
	return nil
}

// DeleteQueues removes the named queues, after confirmation. Every queue is
// attempted; failures are reported per queue.
func (a *App) DeleteQueues(ctx context.Context, w io.Writer, names []string) error {
	if !a.Confirm(fmt.Sprintf("Delete %d queue(s): %s", len(names), strings.Join(names, ", "))) {
		return nil
	}

	results := a.Engine().DeleteQueues(ctx, names)
	failed := 0
	for _, name := range names {
		if err := results[name]; err != nil {
			failed++
			fmt.Fprintf(w, "%s: %v\n", name, err)
		} else {
			fmt.Fprintf(w, "%s: deleted\n", name)
		}
	}
	if failed > 0 {
		return ErrPartialFailure
	}
	return nil
}

// Info prints the diagnostic report for one queue.
func (a *App) Info(ctx context.Context, w io.Writer, queue string) error {
	rep, err := report.Build(ctx, a.Session, queue)
	if err != nil {
		return err
	}
	report.WriteQueueReport(w, rep)
	return nil
}

// QueueNames returns the sorted names of all queues, for the interactive
// menu.
func (a *App) QueueNames(ctx context.Context) ([]string, error) {
	queues, err := inventory.List(ctx, a.Session, inventory.All, a.Config.Engine.DMQSuffix)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(queues))
	for i, q := range queues {
		names[i] = q.Name
	}
	return names, nil
}

// QueueDepth returns the current message count for one queue.
func (a *App) QueueDepth(ctx context.Context, queue string) (int64, error) {
	queues, err := inventory.List(ctx, a.Session, inventory.All, a.Config.Engine.DMQSuffix)
	if err != nil {
		return 0, err
	}
	for _, q := range queues {
		if q.Name == queue {
			return q.CurrentCount, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", broker.ErrQueueNotFound, queue)
}
