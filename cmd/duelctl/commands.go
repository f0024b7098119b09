package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/giovanna-britto/Snake-Battle/internal/crypto"
	"github.com/giovanna-britto/Snake-Battle/internal/domain"
)

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "duelctl",
		Short:         "Escrow match client tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(
		KeygenCmd(),
		AddressCmd(),
		DeriveCmd(),
		SignCmd(),
	)
	return cmd
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// keyFlag reads --key, falling back to the SERVER_PRIVATE_KEY environment
// variable.
func keyFlag(cmd *cobra.Command) (*crypto.Signer, error) {
	key, _ := cmd.Flags().GetString("key")
	if key == "" {
		key = os.Getenv("SERVER_PRIVATE_KEY")
	}
	if key == "" {
		return nil, fmt.Errorf("--key is required")
	}
	return crypto.NewSigner(key)
}

func addKeyFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("key", "k", "", "hex private key (default $SERVER_PRIVATE_KEY)")
}

// KeygenCmd generates a fresh identity
func KeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new private key and its address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := crypto.GenerateSigner()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]string{
				"address":     s.Address().Hex(),
				"private_key": s.PrivateKeyHex(),
			})
		},
	}
}

// AddressCmd prints the address of a private key
func AddressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "address",
		Short: "Print the address of a private key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := keyFlag(cmd)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), s.Address().Hex())
			return err
		},
	}
	addKeyFlag(cmd)
	return cmd
}

// DeriveCmd groups the record address derivations
func DeriveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Derive match and bet record addresses",
		Args:  cobra.MinimumNArgs(1),
	}
	cmd.AddCommand(deriveMatchCmd(), deriveBetCmd())
	return cmd
}

func deriveMatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "match <arbiter>",
		Short: "Address of the match owned by arbiter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arbiter, err := domain.ParseAddress(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), domain.DeriveMatchAddress(arbiter).Hex())
			return err
		},
	}
}

func deriveBetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bet <match> <bettor>",
		Short: "Address of bettor's bet on match",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			match, err := domain.ParseAddress(args[0])
			if err != nil {
				return err
			}
			bettor, err := domain.ParseAddress(args[1])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), domain.DeriveBetAddress(match, bettor).Hex())
			return err
		},
	}
}

// SignCmd personal-signs a login challenge
func SignCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Personal-sign a message, e.g. a login challenge",
		Long:  "Signs --message, or standard input when --message is omitted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := keyFlag(cmd)
			if err != nil {
				return err
			}
			msg, _ := cmd.Flags().GetString("message")
			if !cmd.Flags().Changed("message") {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				msg = strings.TrimSuffix(string(raw), "\n")
			}
			sig, err := s.SignMessage([]byte(msg))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), sig)
			return err
		},
	}
	addKeyFlag(cmd)
	cmd.Flags().StringP("message", "m", "", "message to sign")
	return cmd
}
