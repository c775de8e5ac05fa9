package app

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solar-synergy/dockrelay/cmd/dockctl/app/options"
	"github.com/solar-synergy/dockrelay/internal/pkg/auth"
)

func newTokenCmd(opts *options.CtlOptions) *cobra.Command {
	var subject string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for command writes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := opts.AuthOptions
			if !a.Enabled() {
				return errors.New("--auth.jwt-secret is required to mint a token")
			}
			token, err := auth.NewAuthenticator(a.JWTSecret, a.Issuer).Mint(subject, a.TokenTTL)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "operator", "Identity recorded as updatedBy on writes.")
	return cmd
}
