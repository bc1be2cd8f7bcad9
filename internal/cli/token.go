package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aqiexplorer/aqiexplorer/internal/auth"
)

func newTokenCommand(env Env, root *rootOptions) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an operator token for POST /v1/runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig(env)
			if err != nil {
				return err
			}
			for _, w := range cfg.Warnings() {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
			}

			tokens, err := auth.NewTokenService(auth.TokenConfig{
				SigningKey: cfg.JWTSigningKey,
				TTL:        ttl,
			})
			if err != nil {
				return err
			}

			token, expiresAt, err := tokens.Issue(subject)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.UTC().Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "operator name recorded in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultTokenTTL, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}
