package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"meshtalk/internal/app"
	"meshtalk/internal/logging"
)

var (
	cfg    app.Config
	wire   *app.Wire
	logger zerolog.Logger
)

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "meshtalk",
		Short:         "End-to-end encrypted mesh messaging and calls",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if cfg, err = app.LoadConfig(cmd.Flags()); err != nil {
				return err
			}
			logger = logging.New(cfg.LogLevel, cfg.Pretty)
			wire, err = app.NewWire(cfg, logger)
			return err
		},
	}
	app.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		initCmd(), whoamiCmd(), publishCmd(), pinCmd(),
		sendCmd(), recvCmd(), listenCmd(),
		callCmd(), answerCmd(), callsCmd(),
		hashCmd(), macCmd(), verifyMACCmd(),
	)
	return root
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

// openApp loads the identity and wires the network services.
func openApp() (*app.App, error) {
	return wire.Open()
}

// interruptible returns a context cancelled on SIGINT or SIGTERM.
func interruptible(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
