package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"spark-terminal/pkg/app"
	"spark-terminal/pkg/commands"
	"spark-terminal/pkg/logging"
	"spark-terminal/pkg/serial"
	"spark-terminal/pkg/session"
)

// stdioIsTerminal decides between the full screen UI and the line mode
var stdioIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func newConnectCmd(root *rootOptions) *cobra.Command {
	var (
		framing  framingFlags
		sessionF sessionFlags
		headless bool
	)

	connectCmd := &cobra.Command{
		Use:   "connect <port|profile>",
		Short: "Connect to a serial port",
		Long: `Connect to a serial port directly or using a saved profile.

The full screen terminal is used when stdin and stdout are a terminal;
otherwise, or with --headless, lines read from stdin are sent and
everything received is written to stdout.

Examples:
  # Connect to COM3 with the configured defaults
  spark-terminal connect COM3

  # Connect to /dev/ttyUSB0 at 9600 baud, 7-E-1, logging to a file
  spark-terminal connect /dev/ttyUSB0 -b 9600 -d 7 --parity even --log

  # Connect using a saved profile
  spark-terminal connect mydevice`,
		Args:    cobra.ExactArgs(1),
		Aliases: []string{"open", "c"},
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := root.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			settings, source, err := resolveSettings(cmd, env, args[0], &framing)
			if err != nil {
				return err
			}
			env.log.Debugf("using %s: %s", source, settings.Summary())

			return runSession(cmd, env, settings, &sessionF, headless)
		},
	}

	framing.register(connectCmd)
	sessionF.register(connectCmd)
	connectCmd.Flags().BoolVar(&headless, "headless", false, "line mode: send stdin lines, print received data to stdout")
	return connectCmd
}

// runSession connects with settings on the full screen UI or in line mode
func runSession(cmd *cobra.Command, env *environment, settings serial.ConnectionSettings, sf *sessionFlags, headless bool) error {
	opts, appOpts, err := sf.build(cmd, env)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if headless || !stdioIsTerminal() {
		cfg := sessionConfig(env, opts)
		h := app.NewHeadless(cmd.InOrStdin(), cmd.OutOrStdout(), settings, cfg, appOpts)
		return h.Run(ctx)
	}

	// the screen owns the terminal, so logs go to the debug file
	var logOut io.Writer = io.Discard
	if debugLog, err := os.Create(env.paths.DebugLogFile()); err == nil {
		defer debugLog.Close()
		logOut = debugLog
	}
	env.log = logging.New(env.level, logOut)
	cfg := sessionConfig(env, opts)

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("failed to create screen: %w", err)
	}

	a := app.New(screen, settings, cfg, appOpts)
	started := time.Now()
	if err := a.Run(ctx); err != nil {
		return err
	}

	printSessionSummary(cmd.OutOrStdout(), a.Controller().Stats(), time.Since(started))
	return nil
}

// sessionConfig opens the command store. A store that loaded but could not
// be saved is still used; only one that could not be opened at all leaves
// the session without shortcuts.
func sessionConfig(env *environment, opts session.Options) session.Config {
	store, err := commands.Open(env.paths.CommandLocations(), env.log)
	if err != nil {
		if store == nil {
			env.log.WithError(err).Warn("saved commands unavailable")
		} else {
			env.log.WithError(err).Warn("saved commands will not be persisted")
		}
	}

	return session.Config{
		Store:   store,
		Options: opts,
		Log:     env.log,
	}
}

func printSessionSummary(w io.Writer, stats session.Stats, duration time.Duration) {
	fmt.Fprintf(w, "\n=== Session Summary ===\n")
	fmt.Fprintf(w, "Session:        %s\n", stats.ID)
	fmt.Fprintf(w, "Duration:       %v\n", duration.Round(time.Second))
	fmt.Fprintf(w, "Bytes Sent:     %d\n", stats.BytesOut)
	fmt.Fprintf(w, "Bytes Received: %d\n", stats.BytesIn)
	fmt.Fprintf(w, "Commands:       %d\n", stats.History)
	fmt.Fprintf(w, "=======================\n")
}
