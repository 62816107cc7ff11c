package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ceue-certificates/certgen/internal/auth"
)

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token [subject]",
	Short: "Issue an API bearer token signed with security.jwt_secret",
	Args:  cobra.ExactArgs(1),
	RunE:  runToken,
}

func runToken(cmd *cobra.Command, args []string) error {
	ttl := tokenTTL
	if ttl <= 0 {
		ttl = cfg.Security.TokenTTL
	}
	token, err := auth.IssueToken(cfg.Security.JWTSecret, args[0], ttl, time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
