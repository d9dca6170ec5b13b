package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/upb/sessiongate/config"
	"github.com/upb/sessiongate/token"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Session token utilities",
	}
	cmd.AddCommand(tokenInspectCmd())
	return cmd
}

func tokenInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [token]",
		Short: "Validate a session token and print its claims",
		Long: `Validate a session token with the configured APP_JWT_SECRET and print its
claims as JSON. The token is read from the first argument or, when none is
given, from the first line of standard input.

Examples:
  sessiongate token inspect eyJhbGciOi...
  pbpaste | sessiongate token inspect`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readToken(cmd, args)
			if err != nil {
				return err
			}

			cfg, err := config.New(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			codec, err := token.NewCodec([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL())
			if err != nil {
				return err
			}

			claims, err := codec.Validate(raw)
			if err != nil {
				return fmt.Errorf("token rejected (%s): %w", token.KindOf(err), err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(claims)
		},
	}
}

func readToken(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return strings.TrimSpace(args[0]), nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	raw := strings.TrimSpace(line)
	if raw == "" {
		if err != nil {
			return "", fmt.Errorf("no token given: %w", err)
		}
		return "", fmt.Errorf("no token given")
	}
	return raw, nil
}
