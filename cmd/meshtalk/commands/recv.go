package commands

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"meshtalk/internal/domain"
	"meshtalk/internal/relay"
)

// recv: fetch, decrypt and acknowledge queued messages.
func recvCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recv",
		Short: "Fetch and decrypt your queued messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			if a.Relay == nil {
				return errors.New("no relay configured. use --relay")
			}

			pkts, err := a.Relay.Fetch(cmd.Context(), limit)
			if err != nil {
				return err
			}
			inbox, cancel := a.Messages.Subscribe(len(pkts) + 1)
			defer cancel()
			for _, p := range pkts {
				a.Messages.Deliver(p.From, p.Payload)
			}
			if err := a.Relay.Ack(cmd.Context(), relay.PacketIDs(pkts)...); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			n := 0
			for drained := false; !drained; {
				select {
				case m := <-inbox:
					printMessage(out, m)
					n++
				default:
					drained = true
				}
			}
			if n == 0 {
				fmt.Fprintln(out, "no messages")
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum packets to fetch (0 = all)")
	return cmd
}

func printMessage(out io.Writer, m domain.InboundMessage) {
	at := time.UnixMilli(m.Timestamp).Format("15:04:05")
	tag := ""
	if m.Mode == domain.ModeDegraded {
		tag = " [degraded]"
	}
	switch m.Kind {
	case domain.PayloadVoice:
		fmt.Fprintf(out, "%s [%s]%s voice message, %d bytes\n", at, m.From, tag, len(m.Body))
	default:
		fmt.Fprintf(out, "%s [%s]%s %s\n", at, m.From, tag, m.Body)
	}
}
