package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"labelbot/internal/pkg/auth/jwt"
)

func newAdminTokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
		secret  string
	)

	cmd := &cobra.Command{
		Use:   "admin-token",
		Short: "Mint a bearer token for the admin API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				return errors.New("ADMIN_JWT_SECRET is not set (or pass --secret)")
			}

			token, err := jwt.GenerateToken(subject, secret, ttl)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "admin", "operator name recorded in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", jwt.AdminTokenExpiration, "token lifetime")
	cmd.Flags().StringVar(&secret, "secret", os.Getenv("ADMIN_JWT_SECRET"), "signing secret")

	return cmd
}
