package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"meshtalk/internal/domain"
)

// listen: stay online, printing messages and call events until interrupted.
func listenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "listen",
		Short: "Receive messages and call events until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := interruptible(cmd.Context())
			defer stop()

			inbox, cancelInbox := a.Messages.Subscribe(64)
			defer cancelInbox()
			calls, cancelCalls := a.Calls.Subscribe(16)
			defer cancelCalls()

			errc := make(chan error, 1)
			go func() { errc <- a.Run(ctx) }()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "listening as %s\n", a.Self.NodeID)
			for {
				select {
				case m := <-inbox:
					printMessage(out, m)
				case e := <-calls:
					printCallEvent(out, e)
				case err := <-errc:
					return err
				}
			}
		},
	}
}

func printCallEvent(out io.Writer, e domain.CallEvent) {
	line := fmt.Sprintf("%s call %s with %s: %s", e.At.Format("15:04:05"), e.CallID, e.Peer, e.Type)
	if e.Err != nil {
		line += " (" + e.Err.Error() + ")"
	}
	fmt.Fprintln(out, line)
}
