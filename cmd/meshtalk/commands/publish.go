package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"meshtalk/internal/crypto"
	"meshtalk/internal/domain"
	"meshtalk/internal/services/directory"
)

func publishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Publish our public key to the relay directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.RelayURL == "" {
				return errors.New("no relay configured. use --relay")
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Directory.Publish(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published %s\n", a.Self.NodeID)
			return nil
		},
	}
}

// pin <node> <pubkey-b64>: trust a key obtained out of band.
func pinCmd() *cobra.Command {
	var kem string
	cmd := &cobra.Command{
		Use:   "pin <node> <pubkey-b64>",
		Short: "Store a peer's public key obtained out of band",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, err := crypto.FromB64(args[1])
			if err != nil {
				return fmt.Errorf("decode public key: %w", err)
			}
			id, err := wire.LoadIdentity()
			if err != nil {
				return err
			}
			if kem == "" {
				kem = id.KEM
			}
			dir := directory.New(wire.Identity, wire.PeerKeys, nil, id.KEM, logger)
			key := domain.PeerKey{NodeID: domain.NodeID(args[0]), KEM: kem, PublicKey: pub}
			if err := dir.Pin(key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pinned %s (%s)\n", args[0], crypto.Fingerprint(pub))
			return nil
		},
	}
	cmd.Flags().StringVar(&kem, "peer-kem", "", "peer key encapsulation (default: ours)")
	return cmd
}
