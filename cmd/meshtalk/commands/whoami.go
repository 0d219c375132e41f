package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"meshtalk/internal/crypto"
)

func whoamiCmd() *cobra.Command {
	var showKey bool
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Print the node id and key fingerprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := wire.LoadIdentity()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Node ID:     %s\nKEM:         %s\nFingerprint: %s\nCreated:     %s\n",
				id.NodeID, id.KEM, crypto.Fingerprint(id.PublicKey), id.CreatedAt.Format("2006-01-02 15:04:05"))
			if showKey {
				fmt.Fprintf(out, "Public key:  %s\n", crypto.B64(id.PublicKey))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showKey, "key", false, "also print the base64 public key")
	return cmd
}
