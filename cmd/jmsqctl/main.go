package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/queueops/jmsqctl/internal/app"
	"github.com/queueops/jmsqctl/internal/ui"
)

var (
	// Version information (set by goreleaser)
	version = "dev"
	commit  = "none"
	date    = "unknown"

	envName     string
	configPath  string
	serverURL   string
	logLevel    string
	logFormat   string
	showMetrics bool
	assumeYes   bool

	listClass     string
	filterExpr    string
	limitCount    int
	depthSamples  int
	depthInterval time.Duration
)

func newApp() (*app.App, error) {
	return app.New(app.Options{
		Env:        envName,
		ConfigPath: configPath,
		Server:     serverURL,
		LogLevel:   logLevel,
		LogFormat:  logFormat,
		Metrics:    showMetrics,
		Yes:        assumeYes,
	})
}

// withSession builds the app, connects, runs fn with a signal-cancelled
// context, and prints the metrics summary on the way out.
func withSession(fn func(ctx context.Context, a *app.App) error) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	if err := a.Connect(); err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := fn(ctx, a)
	a.FinishRun(os.Stdout)
	return runErr
}

var rootCmd = &cobra.Command{
	Use:   "jmsqctl",
	Short: "Queue operations tool",
	Long:  `Inspect and mutate message queues on a remote broker: inventory, selective delete, move, bulk queue delete, and diagnostics`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	SilenceUsage: true,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List queues by class",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, a *app.App) error {
			return a.ListQueues(ctx, os.Stdout, listClass)
		})
	},
}

var deleteMessagesCmd = &cobra.Command{
	Use:   "delete-messages QUEUE",
	Short: "Delete messages matching a selector from a queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, a *app.App) error {
			return a.DeleteMessages(ctx, os.Stdout, args[0], filterExpr, limitCount)
		})
	},
}

var moveCmd = &cobra.Command{
	Use:   "move SOURCE DEST",
	Short: "Move messages matching a selector between queues",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, a *app.App) error {
			return a.MoveMessages(ctx, os.Stdout, args[0], args[1], filterExpr, limitCount)
		})
	},
}

var deleteQueuesCmd = &cobra.Command{
	Use:   "delete-queues NAME...",
	Short: "Delete one or more queues",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, a *app.App) error {
			return a.DeleteQueues(ctx, os.Stdout, args)
		})
	},
}

var infoCmd = &cobra.Command{
	Use:   "info QUEUE",
	Short: "Show a queue's diagnostic report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, a *app.App) error {
			return a.Info(ctx, os.Stdout, args[0])
		})
	},
}

var depthCmd = &cobra.Command{
	Use:   "depth QUEUE",
	Short: "Chart a queue's message count over time",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, a *app.App) error {
			chart, err := ui.DepthChart(ctx, a, args[0], depthInterval, depthSamples)
			if err != nil {
				return err
			}
			fmt.Print(chart)
			return nil
		})
	},
}

var menuCmd = &cobra.Command{
	Use:   "menu",
	Short: "Interactive menu mode",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, a *app.App) error {
			return ui.NewManager(ctx, a).Start()
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("jmsqctl version %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&envName, "env", "e", "", "Environment name (overrides default_environment)")
	pf.StringVarP(&configPath, "config", "c", "", "Config file path")
	pf.StringVarP(&serverURL, "server", "s", "", "Broker URL (overrides config file)")
	pf.StringVar(&logLevel, "log-level", "info", "Log level (debug|info|warn|error)")
	pf.StringVar(&logFormat, "log-format", "text", "Log format (text|json)")
	pf.BoolVar(&showMetrics, "metrics", false, "Print run metrics after the operation")
	pf.BoolVarP(&assumeYes, "yes", "y", false, "Skip confirmation prompts")

	listCmd.Flags().StringVar(&listClass, "class", "all", "Queue class (all|no-listener|with-messages|dmq-with-messages)")

	for _, c := range []*cobra.Command{deleteMessagesCmd, moveCmd} {
		c.Flags().StringVarP(&filterExpr, "filter", "f", "", "Message selector expression (empty matches all)")
		c.Flags().IntVarP(&limitCount, "limit", "n", 0, "Maximum messages to process (0 = no limit)")
	}

	depthCmd.Flags().IntVar(&depthSamples, "samples", 20, "Number of samples to collect")
	depthCmd.Flags().DurationVar(&depthInterval, "interval", 500*time.Millisecond, "Delay between samples")

	rootCmd.AddCommand(listCmd, deleteMessagesCmd, moveCmd, deleteQueuesCmd,
		infoCmd, depthCmd, menuCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, app.ErrPartialFailure) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
