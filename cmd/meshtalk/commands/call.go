package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"meshtalk/internal/app"
	"meshtalk/internal/domain"
)

// call <node>: place a call and hold it until the peer hangs up or we are
// interrupted.
func callCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "call <node>",
		Short: "Call a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := interruptible(cmd.Context())
			defer stop()
			events, cancel := a.Calls.Subscribe(16)
			defer cancel()
			go func() { _ = a.Run(ctx) }()

			peer := domain.NodeID(args[0])
			if err := a.Calls.InitiateCall(ctx, peer); err != nil {
				return err
			}
			return holdCall(ctx, a, events, cmd.OutOrStdout())
		},
	}
}

// answer: wait for an incoming call and accept or reject it.
func answerCmd() *cobra.Command {
	var (
		reject bool
		wait   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "answer",
		Short: "Wait for an incoming call and answer it",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := interruptible(cmd.Context())
			defer stop()
			if wait > 0 {
				var cancelWait context.CancelFunc
				ctx, cancelWait = context.WithTimeout(ctx, wait)
				defer cancelWait()
			}
			events, cancel := a.Calls.Subscribe(16)
			defer cancel()
			go func() { _ = a.Run(ctx) }()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "waiting for calls as %s\n", a.Self.NodeID)
			for {
				select {
				case <-ctx.Done():
					return errors.New("no incoming call")
				case e := <-events:
					printCallEvent(out, e)
					if e.Type != domain.EventIncomingCall {
						continue
					}
					if reject {
						return a.Calls.RejectCall(ctx)
					}
					if err := a.Calls.AcceptCall(ctx); err != nil {
						return err
					}
					return holdCall(ctx, a, events, out)
				}
			}
		},
	}
	cmd.Flags().BoolVar(&reject, "reject", false, "reject the call instead of accepting it")
	cmd.Flags().DurationVar(&wait, "wait", 0, "give up after this long (0 = until interrupted)")
	return cmd
}

// holdCall prints call events until the call ends. An interrupt hangs up.
func holdCall(ctx context.Context, a *app.App, events <-chan domain.CallEvent, out io.Writer) error {
	for {
		select {
		case <-ctx.Done():
			hctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := a.Calls.EndCall(hctx); err != nil && !errors.Is(err, domain.ErrInvalidTransition) {
				return err
			}
			fmt.Fprintln(out, "hung up")
			return nil
		case e := <-events:
			printCallEvent(out, e)
			switch e.Type {
			case domain.EventEnded, domain.EventBusy:
				return nil
			case domain.EventFailed:
				return e.Err
			}
		}
	}
}
