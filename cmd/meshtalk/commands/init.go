package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"meshtalk/internal/crypto"
	"meshtalk/internal/services/identity"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Generate the node identity and store it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Passphrase != "" {
				if err := identity.ValidatePassphrase(cfg.Passphrase); err != nil {
					return err
				}
			}
			id, err := wire.Init(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Identity ready.\nNode ID:     %s\nKEM:         %s\nFingerprint: %s\n",
				id.NodeID, id.KEM, crypto.Fingerprint(id.PublicKey))
			if cfg.Passphrase == "" {
				fmt.Fprintln(out, "warning: identity stored without a passphrase")
			}

			if cfg.RelayURL == "" {
				return nil
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Directory.Publish(cmd.Context()); err != nil {
				logger.Warn().Err(err).Msg("publish key")
				return nil
			}
			fmt.Fprintf(out, "Public key published to %s\n", cfg.RelayURL)
			return nil
		},
	}
}
