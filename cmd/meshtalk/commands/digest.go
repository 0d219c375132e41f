package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"meshtalk/internal/crypto"
)

var errMACMismatch = errors.New("mac does not match")

func hashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <text>",
		Short: "Print the SHA-256 of text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), crypto.GenerateHash([]byte(args[0])))
			return nil
		},
	}
}

func macCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mac <key> <text>",
		Short: "Print the HMAC-SHA256 of text under key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), crypto.GenerateMAC([]byte(args[1]), []byte(args[0])))
			return nil
		},
	}
}

func verifyMACCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-mac <key> <text> <mac>",
		Short: "Check an HMAC-SHA256 tag",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !crypto.VerifyMAC([]byte(args[1]), []byte(args[0]), args[2]) {
				return errMACMismatch
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}
