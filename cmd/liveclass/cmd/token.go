package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"liveclass/internal/auth"
	"liveclass/internal/config"
)

var (
	tokenUser  string
	tokenAdmin bool
	tokenTTL   time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a signed bearer token for local development",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfigWithPrecedence(configPath)
		if err != nil {
			return err
		}

		token, err := auth.IssueToken(cfg.Auth.JWTSecret, tokenUser, tokenAdmin, tokenTTL)
		if err != nil {
			return fmt.Errorf("failed to issue token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().StringVarP(&tokenUser, "user", "u", "", "User id placed in the sub claim")
	tokenCmd.Flags().BoolVar(&tokenAdmin, "admin", false, "Grant the admin role")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 12*time.Hour, "Token lifetime")
	_ = tokenCmd.MarkFlagRequired("user")
}
