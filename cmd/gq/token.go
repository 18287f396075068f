package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/graderqueue/internal/auth"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage interface tokens",
	}

	cmd.AddCommand(newTokenIssueCmd())
	return cmd
}

func newTokenIssueCmd() *cobra.Command {
	var (
		configPath string
		ttl        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue an interface token",
		Long:  "Creates a bearer token for the operator interface. Defaults to auth.token_ttl from the config file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokenIssue(cmd, configPath, ttl)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to grader queue config file")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (overrides auth.token_ttl)")
	return cmd
}

func runTokenIssue(cmd *cobra.Command, configPath string, ttl time.Duration) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if ttl == 0 {
		ttl = cfg.Auth.TokenTTL
	}
	tok, err := auth.IssueToken(cmd.Context(), gormDB, ttl)
	if err != nil {
		return err
	}
	if !cfg.Auth.AcceptInterfaceTokens {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: auth.accept_interface_tokens is false; the server will refuse this token")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\texpires %s\n", tok.Token, tok.ExpirationTime.Format(time.RFC3339))
	return nil
}
