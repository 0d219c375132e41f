package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"meshtalk/internal/domain"
)

// send <node> <text>: encrypt and send a message to <node>.
func sendCmd() *cobra.Command {
	var voice string
	cmd := &cobra.Command{
		Use:   "send <node> <text>",
		Short: "Encrypt and send a message to a node",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, body := domain.PayloadText, []byte(nil)
			switch {
			case voice != "":
				b, err := os.ReadFile(voice)
				if err != nil {
					return err
				}
				kind, body = domain.PayloadVoice, b
			case len(args) == 2:
				body = []byte(args[1])
			default:
				return fmt.Errorf("nothing to send: give <text> or --voice")
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			d, err := a.Messages.Send(cmd.Context(), domain.NodeID(args[0]), kind, body)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if d.Mode == domain.ModeDegraded {
				fmt.Fprintln(out, "warning: sent in degraded mode; anyone knowing the node id can read it")
			}
			fmt.Fprintf(out, "sent (%d chunk(s), compressed=%t)\n", d.Chunks, d.Compressed)
			return nil
		},
	}
	cmd.Flags().StringVar(&voice, "voice", "", "send the encoded audio in this file as a voice message")
	return cmd
}
