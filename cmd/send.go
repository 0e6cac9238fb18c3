package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"spark-terminal/pkg/app"
)

func newSendCmd(root *rootOptions) *cobra.Command {
	var (
		framing  framingFlags
		sessionF sessionFlags
		wait     time.Duration
	)

	sendCmd := &cobra.Command{
		Use:   "send <port|profile> <text>",
		Short: "Send one command and print the reply",
		Long: `Open the port, send one command and print what the device answers
within the --wait period.

Examples:
  spark-terminal send COM3 ATI
  spark-terminal send /dev/ttyUSB0 "01 03 00 00 00 01" --send-hex --line-ending none`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := root.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			settings, _, err := resolveSettings(cmd, env, args[0], &framing)
			if err != nil {
				return err
			}

			opts, appOpts, err := sessionF.build(cmd, env)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			in := strings.NewReader(args[1] + "\n")
			h := app.NewHeadless(in, cmd.OutOrStdout(), settings, sessionConfig(env, opts), appOpts)
			h.Linger = wait
			return h.Run(ctx)
		},
	}

	framing.register(sendCmd)
	sessionF.register(sendCmd)
	sendCmd.Flags().DurationVarP(&wait, "wait", "w", 500*time.Millisecond, "how long to wait for replies")
	return sendCmd
}
